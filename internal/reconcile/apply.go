package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	compose "github.com/compose-spec/compose-go/v2/types"
	"golang.org/x/sync/errgroup"

	"kasaio/internal/catalog"
	"kasaio/internal/fsx"
	"kasaio/internal/generate"
	"kasaio/internal/lifecycle"
	"kasaio/internal/snapshot"
)

type rollbackAction struct {
	name string
	undo func(ctx context.Context) error
}

// apply writes the proposed configuration and converges the container
// engine to it. Every mutation pushes an undo action; on failure the stack
// unwinds in reverse. An undo failure escalates to manual recovery.
func (e *Engine) apply(ctx context.Context, current, proposed snapshot.Payload, services []orderedService, diff snapshot.Diff, snapshotID string) error {
	oldServices, err := parseServiceMap(ctx, current.ComposeYAML)
	if err != nil {
		return fmt.Errorf("parse current compose document: %w", err)
	}
	newServices, err := parseServiceMap(ctx, proposed.ComposeYAML)
	if err != nil {
		return fmt.Errorf("parse proposed compose document: %w", err)
	}

	added := map[string]bool{}
	removed := map[string]bool{}
	changed := map[string]bool{}
	for _, ch := range diff.Services {
		switch ch.Type {
		case snapshot.ChangeAdded:
			added[ch.Name] = true
		case snapshot.ChangeRemoved:
			removed[ch.Name] = true
		case snapshot.ChangeChanged:
			changed[ch.Name] = true
		}
	}

	var actions []rollbackAction
	fail := func(stepErr error) error {
		if undoErr := runRollback(ctx, actions); undoErr != nil {
			return manualRecoveryError(stepErr, undoErr, snapshotID)
		}
		return stepErr
	}

	// Files first. Their undo restores the captured bytes, so it is pushed
	// before any engine mutation and unwinds last.
	for _, w := range []struct {
		path    string
		data    []byte
		restore []byte
	}{
		{e.files.Compose, proposed.ComposeYAML, current.ComposeYAML},
		{e.files.Env, proposed.Env, current.Env},
	} {
		w := w
		if err := fsx.WriteAtomic(w.path, w.data, 0o600); err != nil {
			return fail(fmt.Errorf("write %s: %w", w.path, err))
		}
		actions = append(actions, rollbackAction{
			name: "restore " + w.path,
			undo: func(ctx context.Context) error {
				return fsx.WriteAtomic(w.path, w.restore, 0o600)
			},
		})
	}

	if err := e.pullImages(ctx, services, added, changed); err != nil {
		return fail(err)
	}

	// Removals go down in reverse startup order so dependents stop before
	// their dependencies.
	removedNames := make([]string, 0, len(removed))
	for name := range removed {
		removedNames = append(removedNames, name)
	}
	sortRemovals(removedNames)
	for _, name := range removedNames {
		name := name
		oldSpec, hadSpec := oldServices[name]
		if err := e.stopAndRemove(ctx, name); err != nil {
			return fail(err)
		}
		if hadSpec {
			actions = append(actions, rollbackAction{
				name: "recreate " + name,
				undo: func(ctx context.Context) error {
					return e.createAndStart(ctx, name, oldSpec)
				},
			})
		}
	}

	// Changed and added services come up in startup order.
	for _, svc := range services {
		name := svc.name
		newSpec, ok := newServices[name]
		if !ok {
			continue
		}
		switch {
		case changed[name]:
			oldSpec := oldServices[name]
			if err := e.stopAndRemove(ctx, name); err != nil {
				return fail(err)
			}
			if err := e.createAndStart(ctx, name, newSpec); err != nil {
				actions = append(actions, rollbackAction{
					name: "recreate old " + name,
					undo: func(ctx context.Context) error {
						if err := e.stopAndRemove(ctx, name); err != nil {
							return err
						}
						return e.createAndStart(ctx, name, oldSpec)
					},
				})
				return fail(err)
			}
			actions = append(actions, rollbackAction{
				name: "restore old " + name,
				undo: func(ctx context.Context) error {
					if err := e.stopAndRemove(ctx, name); err != nil {
						return err
					}
					return e.createAndStart(ctx, name, oldSpec)
				},
			})
		case added[name]:
			undo := rollbackAction{
				name: "remove new " + name,
				undo: func(ctx context.Context) error {
					return e.stopAndRemove(ctx, name)
				},
			}
			if err := e.createAndStart(ctx, name, newSpec); err != nil {
				actions = append(actions, undo)
				return fail(err)
			}
			actions = append(actions, undo)
		}
	}

	return nil
}

func runRollback(ctx context.Context, actions []rollbackAction) error {
	// Rollback must run even when the apply failed due to cancellation.
	ctx = context.WithoutCancel(ctx)
	for i := len(actions) - 1; i >= 0; i-- {
		slog.Info("rolling back", "action", actions[i].name)
		if err := actions[i].undo(ctx); err != nil {
			return fmt.Errorf("%s: %w", actions[i].name, err)
		}
	}
	return nil
}

func (e *Engine) pullImages(ctx context.Context, services []orderedService, added, changed map[string]bool) error {
	images := map[string]bool{}
	for _, svc := range services {
		if added[svc.name] || changed[svc.name] {
			images[svc.svc.Image] = true
		}
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for img := range images {
		img := img
		g.Go(func() error {
			slog.Debug("pulling image", "image", img)
			return e.runtime.ImagePull(ctx, img)
		})
	}
	return g.Wait()
}

func (e *Engine) stopAndRemove(ctx context.Context, name string) error {
	info, err := e.runtime.ContainerInspect(ctx, name)
	if err != nil {
		return err
	}
	if !info.Exists {
		return nil
	}
	if info.Running {
		if err := e.runtime.ContainerStop(ctx, name); err != nil {
			return fmt.Errorf("stop %s: %w", name, err)
		}
	}
	if err := e.runtime.ContainerRemove(ctx, name, true); err != nil {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (e *Engine) createAndStart(ctx context.Context, name string, spec compose.ServiceConfig) error {
	if err := e.runtime.ContainerCreate(ctx, createConfig(name, spec)); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := e.runtime.ContainerStart(ctx, name); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	return nil
}

func createConfig(name string, spec compose.ServiceConfig) lifecycle.CreateConfig {
	env := make([]string, 0, len(spec.Environment))
	for key, value := range spec.Environment {
		if value == nil {
			continue
		}
		env = append(env, key+"="+*value)
	}
	sort.Strings(env)

	ports := make([]lifecycle.PortBinding, 0, len(spec.Ports))
	for _, p := range spec.Ports {
		published, err := strconv.ParseUint(p.Published, 10, 16)
		if err != nil {
			published = uint64(p.Target)
		}
		ports = append(ports, lifecycle.PortBinding{
			HostPort:      uint16(published),
			ContainerPort: uint16(p.Target),
			Protocol:      p.Protocol,
		})
	}

	mounts := make([]lifecycle.MountBinding, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		if v.Type != compose.VolumeTypeBind {
			continue
		}
		mounts = append(mounts, lifecycle.MountBinding{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}

	return lifecycle.CreateConfig{
		Name:          name,
		Image:         spec.Image,
		Env:           env,
		Labels:        spec.Labels,
		Ports:         ports,
		Mounts:        mounts,
		NetworkMode:   generate.NetworkName,
		RestartPolicy: spec.Restart,
	}
}

func parseServiceMap(ctx context.Context, data []byte) (map[string]compose.ServiceConfig, error) {
	if len(data) == 0 {
		return map[string]compose.ServiceConfig{}, nil
	}
	project, err := generate.ParseCompose(ctx, data)
	if err != nil {
		return nil, err
	}
	return project.Services, nil
}

// sortRemovals orders service names so later-starting services are removed
// first. Services no longer in the catalog sort first.
func sortRemovals(names []string) {
	rank := func(name string) int {
		owner, ok := catalog.OwnerOf(name)
		if !ok {
			return int(^uint(0) >> 1)
		}
		for _, svc := range owner.Services {
			if svc.Name == name {
				return catalog.PhaseRank(svc.Phase)*1000 + svc.StartupOrder
			}
		}
		return 0
	}
	sort.Slice(names, func(i, j int) bool {
		if a, b := rank(names[i]), rank(names[j]); a != b {
			return a > b
		}
		return names[i] > names[j]
	})
}
