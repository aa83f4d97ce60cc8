package compose

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getship/shipd/internal/utils"
	"github.com/getship/shipd/pkg/domain/entities"
	"github.com/getship/shipd/pkg/infrastructure/execx"
)

// Manager drives per-instance compose stacks through the docker compose CLI.
// Every invocation is a structured argv with an explicit timeout; instance
// names are validated long before they reach this package, but they are only
// ever used as path components, never interpolated into a shell.
type Manager struct {
	runner  execx.Runner
	dataDir string
}

func NewManager(runner execx.Runner, dataDir string) *Manager {
	return &Manager{runner: runner, dataDir: dataDir}
}

// WriteStackFiles renders and persists the compose file and the secrets env
// for an instance. The secrets file is owner-only.
func (m *Manager) WriteStackFiles(inst *entities.InstanceRecord, defaults entities.Defaults) error {
	doc, err := Render(inst, defaults)
	if err != nil {
		return err
	}
	dir := utils.StackDir(m.dataDir, inst.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create stack dir: %w", err)
	}
	if err := os.WriteFile(utils.ComposeFile(m.dataDir, inst.Name), doc, 0o644); err != nil {
		return fmt.Errorf("write compose file: %w", err)
	}
	if err := os.WriteFile(utils.SecretsFile(m.dataDir, inst.Name), RenderSecrets(inst), 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	return nil
}

func (m *Manager) compose(ctx context.Context, name string, timeout time.Duration, args ...string) (execx.Result, error) {
	cmd := execx.Command{
		Name:    "docker",
		Args:    append([]string{"compose", "-f", utils.ComposeFile(m.dataDir, name)}, args...),
		Dir:     utils.StackDir(m.dataDir, name),
		Timeout: timeout,
	}
	return m.runner.Run(ctx, cmd)
}

// Up starts (or recreates as needed) the whole stack.
func (m *Manager) Up(ctx context.Context, name string) error {
	_, err := m.compose(ctx, name, execx.TimeoutRestart, "up", "-d")
	return err
}

// Stop stops the stack's containers without removing them.
func (m *Manager) Stop(ctx context.Context, name string) error {
	_, err := m.compose(ctx, name, execx.TimeoutRestart, "stop")
	return err
}

// Restart restarts both services of the stack.
func (m *Manager) Restart(ctx context.Context, name string) error {
	_, err := m.compose(ctx, name, execx.TimeoutRestart, "restart")
	return err
}

// RestartApp force-recreates only the application service so it picks up the
// retagged current image. The database service is left untouched.
func (m *Manager) RestartApp(ctx context.Context, name string) error {
	_, err := m.compose(ctx, name, execx.TimeoutRestart,
		"up", "-d", "--force-recreate", "--no-deps", appServiceName)
	return err
}

// Down tears the stack down, optionally destroying its volumes.
func (m *Manager) Down(ctx context.Context, name string, removeVolumes bool) error {
	args := []string{"down"}
	if removeVolumes {
		args = append(args, "--volumes")
	}
	_, err := m.compose(ctx, name, execx.TimeoutRestart, args...)
	return err
}

// DumpDatabase runs pg_dump inside the db service and writes the dump to
// outPath. Returns the dump size in bytes.
func (m *Manager) DumpDatabase(ctx context.Context, name, outPath string) (int64, error) {
	res, err := m.compose(ctx, name, execx.TimeoutBackup,
		"exec", "-T", dbServiceName, "pg_dump", "-U", DBUser, DBName)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(outPath, []byte(res.Stdout), 0o600); err != nil {
		return 0, fmt.Errorf("write dump file: %w", err)
	}
	return int64(len(res.Stdout)), nil
}

// MergeEnv merges vars into the instance's secrets file, preserving existing
// entries that are not overridden.
func (m *Manager) MergeEnv(name string, vars map[string]string) error {
	path := utils.SecretsFile(m.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read secrets file: %w", err)
	}
	merged := parseEnv(data)
	for k, v := range vars {
		merged[k] = v
	}
	if err := os.WriteFile(path, marshalEnv(merged), 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	return nil
}

// RemoveStackDir deletes the instance's rendered stack directory.
func (m *Manager) RemoveStackDir(name string) error {
	return os.RemoveAll(utils.StackDir(m.dataDir, name))
}
