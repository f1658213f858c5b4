package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kasaio/internal/catalog"
	"kasaio/internal/generate"
	"kasaio/internal/state"
)

type fakeRuntime struct {
	containers map[string]ContainerInfo
	calls      []string
	inspects   int
	failStart  map[string]error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: map[string]ContainerInfo{}}
}

func (f *fakeRuntime) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeRuntime) ContainerInspect(_ context.Context, name string) (ContainerInfo, error) {
	f.inspects++
	return f.containers[name], nil
}

func (f *fakeRuntime) ContainerStart(_ context.Context, name string) error {
	if err := f.failStart[name]; err != nil {
		return err
	}
	f.record("start " + name)
	info := f.containers[name]
	info.Running = true
	f.containers[name] = info
	return nil
}

func (f *fakeRuntime) ContainerStop(_ context.Context, name string) error {
	f.record("stop " + name)
	info := f.containers[name]
	info.Running = false
	f.containers[name] = info
	return nil
}

func (f *fakeRuntime) ContainerRestart(_ context.Context, name string, _ time.Duration) error {
	f.record("restart " + name)
	return nil
}

func (f *fakeRuntime) ContainerRemove(_ context.Context, name string, _ bool) error {
	f.record("remove " + name)
	delete(f.containers, name)
	return nil
}

func (f *fakeRuntime) ContainerCreate(_ context.Context, cfg CreateConfig) error {
	f.record("create " + cfg.Name)
	f.containers[cfg.Name] = ContainerInfo{Exists: true}
	return nil
}

func (f *fakeRuntime) ContainerList(_ context.Context, _ map[string]string) ([]ContainerListEntry, error) {
	return nil, nil
}

func (f *fakeRuntime) ImagePull(_ context.Context, _ string) error { return nil }

func TestContainerNamesForProfilesStartupOrder(t *testing.T) {
	m := NewManager(catalog.Default, newFakeRuntime(), "", nil)

	names := m.ContainerNamesForProfiles([]string{"kaspa-explorer", "kaspa-node", "postgres"})
	want := []string{"postgres", "kaspad", "kaspa-socket", "kaspa-explorer"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestContainerNamesSkipsUnknown(t *testing.T) {
	m := NewManager(catalog.Default, newFakeRuntime(), "", nil)
	names := m.ContainerNamesForProfiles([]string{"kaspa-node", "no-such-profile"})
	if len(names) != 1 || names[0] != "kaspad" {
		t.Errorf("names = %v", names)
	}
}

func TestContainerNamesCanonicalizesAliases(t *testing.T) {
	m := NewManager(catalog.Default, newFakeRuntime(), "", nil)
	names := m.ContainerNamesForProfiles([]string{"kaspad"})
	if len(names) != 1 || names[0] != "kaspad" {
		t.Errorf("names = %v", names)
	}
}

func TestStartSkipsRunning(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers["kaspad"] = ContainerInfo{Exists: true, Running: true}
	rt.containers["postgres"] = ContainerInfo{Exists: true}
	m := NewManager(catalog.Default, rt, "", nil)

	if err := m.Start(context.Background(), []string{"kaspa-node", "postgres"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(rt.calls) != 1 || rt.calls[0] != "start postgres" {
		t.Errorf("calls = %v", rt.calls)
	}
}

func TestStartMissingContainer(t *testing.T) {
	m := NewManager(catalog.Default, newFakeRuntime(), "", nil)
	err := m.Start(context.Background(), []string{"kaspa-node"})
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Fatalf("err = %v", err)
	}
}

func TestStartContinuesPastFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers["postgres"] = ContainerInfo{Exists: true}
	rt.containers["kaspad"] = ContainerInfo{Exists: true}
	rt.failStart = map[string]error{"postgres": errors.New("boom")}
	m := NewManager(catalog.Default, rt, "", nil)

	err := m.Start(context.Background(), []string{"kaspa-node", "postgres"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(rt.calls) != 1 || rt.calls[0] != "start kaspad" {
		t.Errorf("calls = %v", rt.calls)
	}
}

func TestStopReverseOrder(t *testing.T) {
	rt := newFakeRuntime()
	for _, name := range []string{"postgres", "kaspad", "kaspa-db-filler"} {
		rt.containers[name] = ContainerInfo{Exists: true, Running: true}
	}
	m := NewManager(catalog.Default, rt, "", nil)

	if err := m.Stop(context.Background(), []string{"kaspa-node", "postgres", "kaspa-indexer"}); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := []string{"stop kaspa-db-filler", "stop kaspad", "stop postgres"}
	if len(rt.calls) != len(want) {
		t.Fatalf("calls = %v", rt.calls)
	}
	for i := range want {
		if rt.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, rt.calls[i], want[i])
		}
	}
}

func TestStatusCached(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers["kaspad"] = ContainerInfo{Exists: true, Running: true, Status: "running"}
	m := NewManager(catalog.Default, rt, "", nil)

	for i := 0; i < 3; i++ {
		statuses, err := m.Status(context.Background(), []string{"kaspa-node"})
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if len(statuses) != 1 || !statuses[0].Running || statuses[0].Profile != "kaspa-node" {
			t.Errorf("statuses = %+v", statuses)
		}
	}
	if rt.inspects != 1 {
		t.Errorf("inspect calls = %d, want 1 (cached)", rt.inspects)
	}
}

func TestStatusCacheInvalidatedByStop(t *testing.T) {
	rt := newFakeRuntime()
	rt.containers["kaspad"] = ContainerInfo{Exists: true, Running: true}
	m := NewManager(catalog.Default, rt, "", nil)
	ctx := context.Background()

	if _, err := m.Status(ctx, []string{"kaspa-node"}); err != nil {
		t.Fatal(err)
	}
	if err := m.Stop(ctx, []string{"kaspa-node"}); err != nil {
		t.Fatal(err)
	}
	statuses, err := m.Status(ctx, []string{"kaspa-node"})
	if err != nil {
		t.Fatal(err)
	}
	if statuses[0].Running {
		t.Error("status still reports running after stop")
	}
}

func TestRemoveServices(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	composePath := filepath.Join(dir, "docker-compose.yml")
	compose := `name: kasaio
services:
  kaspad:
    image: kaspanet/kaspad:latest
  postgres:
    image: postgres:16-alpine
`
	if err := os.WriteFile(composePath, []byte(compose), 0o600); err != nil {
		t.Fatal(err)
	}

	statefile := state.NewFile(filepath.Join(dir, "state.json"))
	if err := statefile.Save(state.InstallationState{
		Mode:     state.ModeReconfigure,
		Services: []string{"kaspad", "postgres"},
	}); err != nil {
		t.Fatal(err)
	}

	rt := newFakeRuntime()
	rt.containers["postgres"] = ContainerInfo{Exists: true, Running: true}
	m := NewManager(catalog.Default, rt, composePath, statefile)

	if err := m.RemoveServices(ctx, []string{"postgres"}); err != nil {
		t.Fatalf("remove: %v", err)
	}

	data, err := os.ReadFile(composePath)
	if err != nil {
		t.Fatal(err)
	}
	project, err := generate.ParseCompose(ctx, data)
	if err != nil {
		t.Fatalf("parse rewritten compose: %v", err)
	}
	if _, ok := project.Services["postgres"]; ok {
		t.Error("postgres still in compose document")
	}
	if _, ok := project.Services["kaspad"]; !ok {
		t.Error("kaspad dropped from compose document")
	}

	st, _, err := statefile.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Services) != 1 || st.Services[0] != "kaspad" {
		t.Errorf("state services = %v", st.Services)
	}

	want := []string{"stop postgres", "remove postgres"}
	if len(rt.calls) != len(want) || rt.calls[0] != want[0] || rt.calls[1] != want[1] {
		t.Errorf("calls = %v", rt.calls)
	}
}

func TestRemoveServicesReverseOrder(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	rt := newFakeRuntime()
	rt.containers["postgres"] = ContainerInfo{Exists: true, Running: true}
	rt.containers["kaspa-db-filler"] = ContainerInfo{Exists: true, Running: true}
	m := NewManager(catalog.Default, rt, filepath.Join(dir, "docker-compose.yml"), nil)

	names := m.ContainerNamesForProfiles([]string{"postgres", "kaspa-indexer"})
	if err := m.RemoveServices(ctx, names); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// The filler depends on postgres, so it has to come down first.
	want := []string{"stop kaspa-db-filler", "remove kaspa-db-filler", "stop postgres", "remove postgres"}
	if len(rt.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rt.calls, want)
	}
	for i := range want {
		if rt.calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, rt.calls[i], want[i])
		}
	}
}

func TestRemoveServicesMultiServiceProfile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	composePath := filepath.Join(dir, "docker-compose.yml")
	compose := `name: kasaio
services:
  kaspad:
    image: kaspanet/kaspad:latest
  kaspa-socket:
    image: supertypo/kaspa-socket-server:latest
  kaspa-explorer:
    image: supertypo/kaspa-explorer:latest
`
	if err := os.WriteFile(composePath, []byte(compose), 0o600); err != nil {
		t.Fatal(err)
	}

	statefile := state.NewFile(filepath.Join(dir, "state.json"))
	if err := statefile.Save(state.InstallationState{
		Mode:     state.ModeReconfigure,
		Services: []string{"kaspad", "kaspa-socket", "kaspa-explorer"},
	}); err != nil {
		t.Fatal(err)
	}

	rt := newFakeRuntime()
	rt.containers["kaspa-socket"] = ContainerInfo{Exists: true, Running: true}
	rt.containers["kaspa-explorer"] = ContainerInfo{Exists: true, Running: true}
	m := NewManager(catalog.Default, rt, composePath, statefile)

	names := m.ContainerNamesForProfiles([]string{"kaspa-explorer"})
	if len(names) != 2 {
		t.Fatalf("names = %v, want both kaspa-explorer services", names)
	}
	if err := m.RemoveServices(ctx, names); err != nil {
		t.Fatalf("remove: %v", err)
	}

	data, err := os.ReadFile(composePath)
	if err != nil {
		t.Fatal(err)
	}
	project, err := generate.ParseCompose(ctx, data)
	if err != nil {
		t.Fatalf("parse rewritten compose: %v", err)
	}
	for _, name := range names {
		if _, ok := project.Services[name]; ok {
			t.Errorf("%s still in compose document", name)
		}
		if rt.containers[name].Exists {
			t.Errorf("container %s still exists", name)
		}
	}
	if _, ok := project.Services["kaspad"]; !ok {
		t.Error("kaspad dropped from compose document")
	}

	st, _, err := statefile.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Services) != 1 || st.Services[0] != "kaspad" {
		t.Errorf("state services = %v", st.Services)
	}
}

func TestRemoveServicesMissingContainer(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(catalog.Default, newFakeRuntime(), filepath.Join(dir, "docker-compose.yml"), nil)
	if err := m.RemoveServices(context.Background(), []string{"postgres"}); err != nil {
		t.Fatalf("remove with nothing on disk: %v", err)
	}
}
