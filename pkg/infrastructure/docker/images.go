package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"

	"github.com/getship/shipd/pkg/domain/entities"
)

// ImageInfo is the subset of inspect data the orchestrator cares about.
type ImageInfo struct {
	ID      string
	Created time.Time
}

// Build creates an image from dir, applying all given tags. Incremental build
// output lines are passed to onOutput when non-nil. Returns the built image id.
func (c *Client) Build(ctx context.Context, dir string, tags []string, onOutput func(string)) (string, error) {
	if dir == "" {
		return "", entities.NewValidationError("build directory cannot be empty")
	}
	if len(tags) == 0 {
		return "", entities.NewValidationError("at least one image tag is required")
	}
	buildCtx, err := archive.TarWithOptions(dir, &archive.TarOptions{})
	if err != nil {
		return "", entities.NewExecutionError("create build context", err, "", "")
	}
	defer buildCtx.Close()

	resp, err := c.inner.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:        tags,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", entities.NewExecutionError("docker image build", err, "", "")
	}
	defer resp.Body.Close()

	var imageID string
	var output strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var msg buildMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return "", entities.NewExecutionError("decode build output", err, output.String(), "")
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return "", entities.NewExecutionError("docker image build", fmt.Errorf("%s", errMsg), output.String(), errMsg)
		}
		if id, ok := msg.Aux["ID"].(string); ok && id != "" {
			imageID = id
		}
		if line := msg.render(); line != "" {
			output.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				output.WriteString("\n")
			}
			if onOutput != nil {
				onOutput(line)
			}
		}
	}
	if imageID == "" {
		// Older daemons omit the aux record; fall back to inspecting the tag.
		info, err := c.Resolve(ctx, tags[0])
		if err != nil {
			return "", err
		}
		imageID = info.ID
	}
	return imageID, nil
}

// Tag applies target as an additional tag of source.
func (c *Client) Tag(ctx context.Context, source, target string) error {
	if err := c.inner.ImageTag(ctx, source, target); err != nil {
		return entities.NewExecutionError(fmt.Sprintf("tag %s as %s", source, target), err, "", "")
	}
	return nil
}

// Resolve inspects a reference, returning NotFound for unknown tags.
func (c *Client) Resolve(ctx context.Context, ref string) (ImageInfo, error) {
	inspect, _, err := c.inner.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ImageInfo{}, entities.NewNotFoundError("image %q not found", ref)
		}
		return ImageInfo{}, entities.NewExecutionError(fmt.Sprintf("inspect %s", ref), err, "", "")
	}
	created, _ := time.Parse(time.RFC3339Nano, inspect.Created)
	return ImageInfo{ID: inspect.ID, Created: created}, nil
}

// ListTags enumerates the tag names present in the given repository.
func (c *Client) ListTags(ctx context.Context, repo string) ([]string, error) {
	summaries, err := c.inner.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", repo)),
	})
	if err != nil {
		return nil, entities.NewExecutionError(fmt.Sprintf("list images for %s", repo), err, "", "")
	}
	var tags []string
	prefix := repo + ":"
	for _, s := range summaries {
		for _, rt := range s.RepoTags {
			if strings.HasPrefix(rt, prefix) {
				tags = append(tags, strings.TrimPrefix(rt, prefix))
			}
		}
	}
	return tags, nil
}

// Remove deletes one tag. Removing the last tag of an image removes the image.
func (c *Client) Remove(ctx context.Context, ref string) error {
	if _, err := c.inner.ImageRemove(ctx, ref, image.RemoveOptions{}); err != nil {
		return entities.NewExecutionError(fmt.Sprintf("remove %s", ref), err, "", "")
	}
	return nil
}

// Export streams the image as a tar archive, for remote archival.
func (c *Client) Export(ctx context.Context, ref string) (io.ReadCloser, error) {
	rc, err := c.inner.ImageSave(ctx, []string{ref})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, entities.NewNotFoundError("image %q not found", ref)
		}
		return nil, entities.NewExecutionError(fmt.Sprintf("export %s", ref), err, "", "")
	}
	return rc, nil
}

// ContainerState returns the state string of the named container ("" when no
// such container exists). Matching is exact on the container name.
func (c *Client) ContainerState(ctx context.Context, name string) (string, error) {
	containers, err := c.inner.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", entities.NewExecutionError("list containers", err, "", "")
	}
	for _, cont := range containers {
		for _, n := range cont.Names {
			if strings.TrimPrefix(n, "/") == name {
				return cont.State, nil
			}
		}
	}
	return "", nil
}

type buildMessage struct {
	Stream      string                 `json:"stream"`
	Status      string                 `json:"status"`
	ID          string                 `json:"id"`
	Progress    string                 `json:"progress"`
	Error       string                 `json:"error"`
	ErrorDetail buildErrorDetail       `json:"errorDetail"`
	Aux         map[string]interface{} `json:"aux"`
}

type buildErrorDetail struct {
	Message string `json:"message"`
}

func (m buildMessage) errorMessage() string {
	if strings.TrimSpace(m.Error) != "" {
		return strings.TrimSpace(m.Error)
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

func (m buildMessage) render() string {
	if m.Stream != "" {
		return strings.TrimRight(m.Stream, "\n")
	}
	if m.Status != "" {
		parts := make([]string, 0, 3)
		if strings.TrimSpace(m.ID) != "" {
			parts = append(parts, strings.TrimSpace(m.ID))
		}
		parts = append(parts, strings.TrimSpace(m.Status))
		if p := strings.TrimSpace(m.Progress); p != "" {
			parts = append(parts, p)
		}
		return strings.Join(parts, " ")
	}
	return ""
}
