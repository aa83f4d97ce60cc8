package services

import (
	"context"
	"io"
	"os"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/getship/shipd/internal/utils"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/docker"
	"github.com/getship/shipd/pkg/infrastructure/execx"
	"github.com/getship/shipd/pkg/infrastructure/store"
)

type fakeImages struct {
	mu sync.Mutex

	buildID  string
	buildErr error
	builds   [][]string

	tagged [][2]string
	tagErr error

	present map[string]docker.ImageInfo
	tags    []string

	// onListTags runs at the top of ListTags, outside the fake's lock, so
	// tests can stall a retention sweep mid-flight.
	onListTags func()

	removed   []string
	removeErr map[string]error

	states   map[string]string
	stateErr error

	exportData string
	exportErr  error
	exported   []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{
		buildID: "sha256:abc123",
		present: map[string]docker.ImageInfo{},
		states:  map[string]string{},
	}
}

func (f *fakeImages) Build(ctx context.Context, dir string, tags []string, onOutput func(string)) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, tags)
	if onOutput != nil {
		onOutput("Step 1/1 : FROM scratch")
	}
	if f.buildErr != nil {
		return "", f.buildErr
	}
	for _, tag := range tags {
		f.present[tag] = docker.ImageInfo{ID: f.buildID}
	}
	return f.buildID, nil
}

func (f *fakeImages) Tag(ctx context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tagErr != nil {
		return f.tagErr
	}
	f.tagged = append(f.tagged, [2]string{source, target})
	if info, ok := f.present[source]; ok {
		f.present[target] = info
	}
	return nil
}

func (f *fakeImages) Resolve(ctx context.Context, ref string) (docker.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.present[ref]
	if !ok {
		return docker.ImageInfo{}, entities.NewNotFoundError("image %q not found", ref)
	}
	return info, nil
}

func (f *fakeImages) ListTags(ctx context.Context, repo string) ([]string, error) {
	if f.onListTags != nil {
		f.onListTags()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.tags...), nil
}

func (f *fakeImages) Remove(ctx context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.removeErr[ref]; ok {
		return err
	}
	f.removed = append(f.removed, ref)
	return nil
}

func (f *fakeImages) Export(ctx context.Context, ref string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	f.exported = append(f.exported, ref)
	return io.NopCloser(strings.NewReader(f.exportData)), nil
}

func (f *fakeImages) ContainerState(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return "", f.stateErr
	}
	return f.states[name], nil
}

type fakeStacks struct {
	mu sync.Mutex

	written  []string
	writeErr error

	// writeHook runs before a stack write is recorded, so tests can observe
	// the registry state at render time.
	writeHook func(inst *entities.InstanceRecord) error

	upCalls []string
	upErr   map[string]error

	stopCalls    []string
	restartCalls []string

	restartAppCalls []string
	restartAppErr   map[string]error

	downCalls   []string
	downVolumes map[string]bool

	dumpSize int64
	dumpErr  error
	dumped   []string

	merged      map[string]map[string]string
	removedDirs []string
}

func newFakeStacks() *fakeStacks {
	return &fakeStacks{
		upErr:         map[string]error{},
		restartAppErr: map[string]error{},
		downVolumes:   map[string]bool{},
		merged:        map[string]map[string]string{},
	}
}

func (f *fakeStacks) WriteStackFiles(inst *entities.InstanceRecord, defaults entities.Defaults) error {
	if f.writeHook != nil {
		if err := f.writeHook(inst); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, inst.Name)
	return nil
}

func (f *fakeStacks) Up(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upErr[name]; err != nil {
		return err
	}
	f.upCalls = append(f.upCalls, name)
	return nil
}

func (f *fakeStacks) Stop(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls = append(f.stopCalls, name)
	return nil
}

func (f *fakeStacks) Restart(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartCalls = append(f.restartCalls, name)
	return nil
}

func (f *fakeStacks) RestartApp(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.restartAppErr[name]; err != nil {
		return err
	}
	f.restartAppCalls = append(f.restartAppCalls, name)
	return nil
}

func (f *fakeStacks) Down(ctx context.Context, name string, removeVolumes bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downCalls = append(f.downCalls, name)
	f.downVolumes[name] = removeVolumes
	return nil
}

func (f *fakeStacks) DumpDatabase(ctx context.Context, name, outPath string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dumpErr != nil {
		return 0, f.dumpErr
	}
	f.dumped = append(f.dumped, outPath)
	if err := os.WriteFile(outPath, []byte("-- dump\n"), 0o600); err != nil {
		return 0, err
	}
	return f.dumpSize, nil
}

func (f *fakeStacks) MergeEnv(name string, vars map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.merged[name] == nil {
		f.merged[name] = map[string]string{}
	}
	for k, v := range vars {
		f.merged[name][k] = v
	}
	return nil
}

func (f *fakeStacks) RemoveStackDir(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedDirs = append(f.removedDirs, name)
	return nil
}

// fakeTasks collects queued tasks instead of running them, so tests control
// when background work executes.
type fakeTasks struct {
	mu    sync.Mutex
	added []entities.Task
}

func (f *fakeTasks) Start() {}

func (f *fakeTasks) Stop() {}

func (f *fakeTasks) AddTask(task entities.Task) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, task)
}

func (f *fakeTasks) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.added)
}

type fakePublisher struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakePublisher) Broadcast(channel string, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, string(payload))
}

type fakeRunner struct {
	results map[string]execx.Result
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, cmd execx.Command) (execx.Result, error) {
	if f.err != nil {
		return execx.Result{}, f.err
	}
	key := cmd.Name
	if len(cmd.Args) > 0 {
		key = cmd.Name + " " + cmd.Args[0]
	}
	if res, ok := f.results[key]; ok {
		return res, nil
	}
	return execx.Result{}, entities.NewExecutionError(cmd.Name+" failed", os.ErrNotExist, "", "")
}

func testDefaults() entities.Defaults {
	return entities.Defaults{
		Image:         "ship-app",
		SourcePath:    "/srv/ship-app",
		DomainSuffix:  "example.com",
		PostgresImage: "postgres:16-alpine",
	}
}

func newTestRegistry(t *testing.T) *store.DeploymentStore {
	t.Helper()
	dir := t.TempDir()
	deployments, err := store.NewDeploymentStore(utils.RegistryFile(dir), testDefaults())
	if err != nil {
		t.Fatalf("NewDeploymentStore: %v", err)
	}
	return deployments
}

func newTestHistory(t *testing.T) *store.HistoryLog {
	t.Helper()
	history, err := store.NewHistoryLog(path.Join(t.TempDir(), "build-history.json"))
	if err != nil {
		t.Fatalf("NewHistoryLog: %v", err)
	}
	return history
}

func registerInstance(t *testing.T, deployments *store.DeploymentStore, name string) {
	t.Helper()
	err := deployments.Update(func(cfg *entities.DeploymentConfig) error {
		cfg.Instances[name] = &entities.InstanceRecord{
			Name:   name,
			Status: entities.InstanceStatusRunning,
		}
		return nil
	})
	if err != nil {
		t.Fatalf("register instance %s: %v", name, err)
	}
}
