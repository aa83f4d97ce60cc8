package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/getship/shipd/pkg/domain/entities"
)

func TestProvisionCreatesAndStartsInstance(t *testing.T) {
	deployments := newTestRegistry(t)
	images := newFakeImages()
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, images, stacks)

	result, err := svc.Provision(context.Background(), ProvisionRequest{
		Name:        "acme",
		DisplayName: "Acme Corp",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if result.URL != "https://ship-acme.example.com" {
		t.Errorf("URL = %q, want %q", result.URL, "https://ship-acme.example.com")
	}
	if result.AdminURL != result.URL+"/admin" {
		t.Errorf("AdminURL = %q", result.AdminURL)
	}
	if len(result.APIKey) != 48 {
		t.Errorf("APIKey length = %d, want 48", len(result.APIKey))
	}

	inst, err := deployments.GetInstance("acme")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.Status != entities.InstanceStatusRunning {
		t.Errorf("status = %q, want running", inst.Status)
	}
	if inst.DBPassword == "" {
		t.Error("db password not generated")
	}
	if len(stacks.written) != 1 || stacks.written[0] != "acme" {
		t.Errorf("stack files written for %v", stacks.written)
	}
	if len(stacks.upCalls) != 1 {
		t.Errorf("up calls = %v", stacks.upCalls)
	}
}

func TestProvisionRejectsInvalidNames(t *testing.T) {
	svc := NewInstanceService(newTestRegistry(t), newFakeImages(), newFakeStacks())

	for _, name := range []string{"", "Acme", "acme_app", "-acme", "acme-", "a..b"} {
		_, err := svc.Provision(context.Background(), ProvisionRequest{Name: name, DisplayName: "x"})
		if !entities.IsKind(err, entities.KindValidation) {
			t.Errorf("Provision(%q) error = %v, want validation error", name, err)
		}
	}
}

func TestProvisionDuplicateLeavesOriginalUntouched(t *testing.T) {
	deployments := newTestRegistry(t)
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	first, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"})
	if err != nil {
		t.Fatalf("first Provision: %v", err)
	}

	_, err = svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme Again"})
	if !entities.IsKind(err, entities.KindConflict) {
		t.Fatalf("second Provision error = %v, want conflict", err)
	}

	inst, err := deployments.GetInstance("acme")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.APIKey != first.APIKey {
		t.Error("duplicate provision mutated the original record")
	}
	if inst.DisplayName != "Acme" {
		t.Errorf("display name = %q, want original", inst.DisplayName)
	}
	if len(stacks.written) != 1 {
		t.Errorf("stack files written %d times, the loser must not touch them", len(stacks.written))
	}
}

// The registry claim must precede any filesystem write: of two racing
// provisions for one slug, only the claim winner may render stack files, so
// the loser can never overwrite the winner's secrets with its own generated
// password.
func TestProvisionClaimsNameBeforeWritingStackFiles(t *testing.T) {
	deployments := newTestRegistry(t)
	stacks := newFakeStacks()
	stacks.writeHook = func(inst *entities.InstanceRecord) error {
		if _, err := deployments.GetInstance(inst.Name); err != nil {
			return fmt.Errorf("stack files written before the name was claimed: %w", err)
		}
		return nil
	}
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	if _, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"}); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(stacks.written) != 1 {
		t.Errorf("stack files written %d times", len(stacks.written))
	}
}

func TestProvisionRenderFailureReleasesName(t *testing.T) {
	deployments := newTestRegistry(t)
	stacks := newFakeStacks()
	stacks.writeErr = errors.New("disk full")
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	_, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"})
	if !entities.IsKind(err, entities.KindExecution) {
		t.Fatalf("Provision error = %v, want execution error", err)
	}
	if _, err := deployments.GetInstance("acme"); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("claim not released after render failure: %v", err)
	}

	stacks.writeErr = nil
	if _, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"}); err != nil {
		t.Errorf("retry after render failure: %v", err)
	}
}

func TestProvisionConflictsWithLiveContainer(t *testing.T) {
	images := newFakeImages()
	images.states["ship-acme-app"] = "running"
	svc := NewInstanceService(newTestRegistry(t), images, newFakeStacks())

	_, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"})
	if !entities.IsKind(err, entities.KindConflict) {
		t.Fatalf("Provision error = %v, want conflict", err)
	}
}

func TestProvisionStartFailureLeavesStatusCreated(t *testing.T) {
	deployments := newTestRegistry(t)
	stacks := newFakeStacks()
	stacks.upErr["acme"] = errors.New("compose up failed")
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	result, err := svc.Provision(context.Background(), ProvisionRequest{Name: "acme", DisplayName: "Acme"})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if result == nil || result.Name != "acme" {
		t.Fatalf("result = %+v", result)
	}

	inst, err := deployments.GetInstance("acme")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if inst.Status != entities.InstanceStatusCreated {
		t.Errorf("status = %q, want created so the start can be retried", inst.Status)
	}
}

func TestProvisionHonorsSuppliedAPIKey(t *testing.T) {
	deployments := newTestRegistry(t)
	svc := NewInstanceService(deployments, newFakeImages(), newFakeStacks())

	result, err := svc.Provision(context.Background(), ProvisionRequest{
		Name:        "acme",
		DisplayName: "Acme",
		APIKey:      "preset-key",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if result.APIKey != "preset-key" {
		t.Errorf("APIKey = %q, want supplied key", result.APIKey)
	}
}

func TestLifecycleRequiresKnownInstance(t *testing.T) {
	svc := NewInstanceService(newTestRegistry(t), newFakeImages(), newFakeStacks())
	ctx := context.Background()

	if err := svc.Start(ctx, "ghost"); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("Start error = %v, want not found", err)
	}
	if err := svc.Stop(ctx, "ghost"); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("Stop error = %v, want not found", err)
	}
	if err := svc.Restart(ctx, "ghost"); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("Restart error = %v, want not found", err)
	}
	if err := svc.Remove(ctx, "ghost", false); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("Remove error = %v, want not found", err)
	}
}

func TestStopRecordsStoppedStatus(t *testing.T) {
	deployments := newTestRegistry(t)
	registerInstance(t, deployments, "acme")
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	if err := svc.Stop(context.Background(), "acme"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	inst, _ := deployments.GetInstance("acme")
	if inst.Status != entities.InstanceStatusStopped {
		t.Errorf("status = %q, want stopped", inst.Status)
	}
	if len(stacks.stopCalls) != 1 {
		t.Errorf("stop calls = %v", stacks.stopCalls)
	}
}

func TestRemoveWithDataDeletesEverything(t *testing.T) {
	deployments := newTestRegistry(t)
	registerInstance(t, deployments, "acme")
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	if err := svc.Remove(context.Background(), "acme", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !stacks.downVolumes["acme"] {
		t.Error("volumes were not removed")
	}
	if len(stacks.removedDirs) != 1 || stacks.removedDirs[0] != "acme" {
		t.Errorf("removed dirs = %v", stacks.removedDirs)
	}
	if _, err := deployments.GetInstance("acme"); !entities.IsKind(err, entities.KindNotFound) {
		t.Errorf("GetInstance after remove = %v, want not found", err)
	}
}

func TestRemoveWithoutDataKeepsVolumesAndStackDir(t *testing.T) {
	deployments := newTestRegistry(t)
	registerInstance(t, deployments, "acme")
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, newFakeImages(), stacks)

	if err := svc.Remove(context.Background(), "acme", false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if stacks.downVolumes["acme"] {
		t.Error("volumes were removed without delete_data")
	}
	if len(stacks.removedDirs) != 0 {
		t.Errorf("stack dir removed: %v", stacks.removedDirs)
	}
}

func TestUpdateEnvMergesAndOptionallyRestarts(t *testing.T) {
	deployments := newTestRegistry(t)
	registerInstance(t, deployments, "acme")
	stacks := newFakeStacks()
	svc := NewInstanceService(deployments, newFakeImages(), stacks)
	ctx := context.Background()

	if err := svc.UpdateEnv(ctx, "acme", map[string]string{"FEATURE_X": "on"}, false); err != nil {
		t.Fatalf("UpdateEnv: %v", err)
	}
	if stacks.merged["acme"]["FEATURE_X"] != "on" {
		t.Errorf("merged vars = %v", stacks.merged["acme"])
	}
	if len(stacks.restartCalls) != 0 {
		t.Errorf("restarted without being asked: %v", stacks.restartCalls)
	}

	if err := svc.UpdateEnv(ctx, "acme", map[string]string{"FEATURE_Y": "off"}, true); err != nil {
		t.Fatalf("UpdateEnv with restart: %v", err)
	}
	if len(stacks.restartCalls) != 1 {
		t.Errorf("restart calls = %v", stacks.restartCalls)
	}

	if err := svc.UpdateEnv(ctx, "acme", nil, false); !entities.IsKind(err, entities.KindValidation) {
		t.Errorf("UpdateEnv(nil) error = %v, want validation", err)
	}
}

func TestListMergesContainerState(t *testing.T) {
	deployments := newTestRegistry(t)
	registerInstance(t, deployments, "acme")
	registerInstance(t, deployments, "beta")
	images := newFakeImages()
	images.states["ship-acme-app"] = "running"
	svc := NewInstanceService(deployments, images, newFakeStacks())

	views, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("len(views) = %d, want 2", len(views))
	}
	states := map[string]string{}
	for _, v := range views {
		states[v.Name] = v.ContainerState
	}
	if states["acme"] != "running" {
		t.Errorf("acme state = %q, want running", states["acme"])
	}
	if states["beta"] != "" {
		t.Errorf("beta state = %q, want empty", states["beta"])
	}
}
