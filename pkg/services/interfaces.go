package services

import (
	"context"
	"io"

	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/docker"
)

// ImageClient is the container-runtime surface the services need. Implemented
// by the docker client; faked in tests.
type ImageClient interface {
	Build(ctx context.Context, dir string, tags []string, onOutput func(string)) (string, error)
	Tag(ctx context.Context, source, target string) error
	Resolve(ctx context.Context, ref string) (docker.ImageInfo, error)
	ListTags(ctx context.Context, repo string) ([]string, error)
	Remove(ctx context.Context, ref string) error
	Export(ctx context.Context, ref string) (io.ReadCloser, error)
	ContainerState(ctx context.Context, name string) (string, error)
}

// StackManager drives per-instance compose stacks. Implemented by the compose
// manager.
type StackManager interface {
	WriteStackFiles(inst *entities.InstanceRecord, defaults entities.Defaults) error
	Up(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	RestartApp(ctx context.Context, name string) error
	Down(ctx context.Context, name string, removeVolumes bool) error
	DumpDatabase(ctx context.Context, name, outPath string) (int64, error)
	MergeEnv(name string, vars map[string]string) error
	RemoveStackDir(name string) error
}

// TaskManager queues fire-and-forget background work.
type TaskManager interface {
	Start()
	AddTask(task entities.Task)
	Stop()
}

// Publisher fans progress lines out to stream subscribers.
type Publisher interface {
	Broadcast(channel string, payload []byte)
}

// BuildLogChannel is the hub channel carrying build and rollback progress.
const BuildLogChannel = "builds"
