package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"kasaio/internal/catalog"
	"kasaio/internal/fsx"
	"kasaio/internal/generate"
	"kasaio/internal/state"
)

// Catalog is the profile lookup surface the manager needs.
type Catalog interface {
	Lookup(id string) (catalog.Profile, bool)
	Canonicalize(ids []string) ([]string, []catalog.Migration)
}

const (
	defaultStatusTTL   = 3 * time.Second
	defaultStopTimeout = 30 * time.Second
)

// ServiceStatus is the observed state of one managed service.
type ServiceStatus struct {
	Service string `json:"service"`
	Profile string `json:"profile"`
	Exists  bool   `json:"exists"`
	Running bool   `json:"running"`
	Status  string `json:"status,omitempty"`
}

type cachedStatus struct {
	info ContainerInfo
	at   time.Time
}

// Manager maps profile ids to their containers and drives start, stop,
// restart, status and removal against the engine.
type Manager struct {
	cat         Catalog
	runtime     ContainerRuntime
	composePath string
	statefile   *state.File

	statusTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedStatus
}

func NewManager(cat Catalog, runtime ContainerRuntime, composePath string, statefile *state.File) *Manager {
	return &Manager{
		cat:         cat,
		runtime:     runtime,
		composePath: composePath,
		statefile:   statefile,
		statusTTL:   defaultStatusTTL,
		cache:       map[string]cachedStatus{},
	}
}

type orderedService struct {
	name    string
	profile string
	phase   catalog.StartupPhase
	order   int
}

// servicesFor resolves profile ids to their services in startup order.
// Unknown ids are skipped with a warning so one stale profile in state does
// not block operating the rest.
func (m *Manager) servicesFor(ids []string) []orderedService {
	canonical, migrations := m.cat.Canonicalize(ids)
	for _, mig := range migrations {
		slog.Debug("legacy profile id canonicalized", "from", mig.From, "to", mig.To)
	}

	var out []orderedService
	seen := map[string]bool{}
	for _, id := range canonical {
		profile, ok := m.cat.Lookup(id)
		if !ok {
			slog.Warn("skipping unknown profile", "profile", id)
			continue
		}
		for _, svc := range profile.Services {
			if seen[svc.Name] {
				continue
			}
			seen[svc.Name] = true
			out = append(out, orderedService{
				name:    svc.Name,
				profile: id,
				phase:   svc.Phase,
				order:   svc.StartupOrder,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := catalog.PhaseRank(out[i].phase), catalog.PhaseRank(out[j].phase); a != b {
			return a < b
		}
		if out[i].order != out[j].order {
			return out[i].order < out[j].order
		}
		return out[i].name < out[j].name
	})
	return out
}

// ContainerNamesForProfiles resolves profile ids to container names in
// startup order.
func (m *Manager) ContainerNamesForProfiles(ids []string) []string {
	services := m.servicesFor(ids)
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.name)
	}
	return names
}

// Start starts the containers of the given profiles in startup order.
// Containers that do not exist yet are reported, not silently skipped.
func (m *Manager) Start(ctx context.Context, ids []string) error {
	var errs []error
	for _, svc := range m.servicesFor(ids) {
		info, err := m.runtime.ContainerInspect(ctx, svc.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Exists {
			errs = append(errs, fmt.Errorf("container %q does not exist, run apply first", svc.name))
			continue
		}
		if info.Running {
			continue
		}
		slog.Info("starting container", "container", svc.name, "profile", svc.profile)
		if err := m.runtime.ContainerStart(ctx, svc.name); err != nil {
			errs = append(errs, fmt.Errorf("start %q: %w", svc.name, err))
		}
	}
	m.invalidateStatus()
	return errors.Join(errs...)
}

// Stop stops the containers of the given profiles in reverse startup order,
// so dependents go down before their dependencies.
func (m *Manager) Stop(ctx context.Context, ids []string) error {
	services := m.servicesFor(ids)
	slices.Reverse(services)

	var errs []error
	for _, svc := range services {
		info, err := m.runtime.ContainerInspect(ctx, svc.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Exists || !info.Running {
			continue
		}
		slog.Info("stopping container", "container", svc.name, "profile", svc.profile)
		if err := m.runtime.ContainerStop(ctx, svc.name); err != nil {
			errs = append(errs, fmt.Errorf("stop %q: %w", svc.name, err))
		}
	}
	m.invalidateStatus()
	return errors.Join(errs...)
}

// Restart restarts the containers of the given profiles in startup order.
func (m *Manager) Restart(ctx context.Context, ids []string) error {
	var errs []error
	for _, svc := range m.servicesFor(ids) {
		info, err := m.runtime.ContainerInspect(ctx, svc.name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Exists {
			errs = append(errs, fmt.Errorf("container %q does not exist, run apply first", svc.name))
			continue
		}
		slog.Info("restarting container", "container", svc.name, "profile", svc.profile)
		if err := m.runtime.ContainerRestart(ctx, svc.name, defaultStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("restart %q: %w", svc.name, err))
		}
	}
	m.invalidateStatus()
	return errors.Join(errs...)
}

// Status reports the observed state of every service in the given profiles.
// Inspect results are cached for a few seconds so a burst of status calls
// does not hammer the engine.
func (m *Manager) Status(ctx context.Context, ids []string) ([]ServiceStatus, error) {
	var out []ServiceStatus
	for _, svc := range m.servicesFor(ids) {
		info, err := m.inspectCached(ctx, svc.name)
		if err != nil {
			return nil, err
		}
		out = append(out, ServiceStatus{
			Service: svc.name,
			Profile: svc.profile,
			Exists:  info.Exists,
			Running: info.Running,
			Status:  info.Status,
		})
	}
	return out, nil
}

func (m *Manager) inspectCached(ctx context.Context, name string) (ContainerInfo, error) {
	m.mu.Lock()
	if entry, ok := m.cache[name]; ok && time.Since(entry.at) < m.statusTTL {
		m.mu.Unlock()
		return entry.info, nil
	}
	m.mu.Unlock()

	info, err := m.runtime.ContainerInspect(ctx, name)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("inspect %q: %w", name, err)
	}

	m.mu.Lock()
	m.cache[name] = cachedStatus{info: info, at: time.Now()}
	m.mu.Unlock()
	return info, nil
}

func (m *Manager) invalidateStatus() {
	m.mu.Lock()
	m.cache = map[string]cachedStatus{}
	m.mu.Unlock()
}

// RemoveServices removes services as one logical unit: the compose document
// loses the service entries, the installation state drops them, and only
// then are the containers stopped and removed. A failure partway leaves the
// document and state already consistent with the intended end result, so
// rerunning converges.
func (m *Manager) RemoveServices(ctx context.Context, services []string) error {
	doomed := map[string]bool{}
	for _, name := range services {
		doomed[name] = true
	}

	data, _, err := fsx.ReadIfExists(m.composePath)
	if err != nil {
		return fmt.Errorf("read compose document: %w", err)
	}
	if len(data) > 0 {
		project, err := generate.ParseCompose(ctx, data)
		if err != nil {
			return fmt.Errorf("parse compose document: %w", err)
		}
		changed := false
		for name := range project.Services {
			if doomed[name] {
				delete(project.Services, name)
				changed = true
			}
		}
		if changed {
			out, err := project.MarshalYAML()
			if err != nil {
				return fmt.Errorf("marshal compose document: %w", err)
			}
			if err := fsx.WriteAtomic(m.composePath, out, 0o600); err != nil {
				return fmt.Errorf("write compose document: %w", err)
			}
		}
	}

	if m.statefile != nil {
		st, found, err := m.statefile.Load()
		if err != nil {
			return err
		}
		if found {
			kept := st.Services[:0]
			for _, name := range st.Services {
				if !doomed[name] {
					kept = append(kept, name)
				}
			}
			st.Services = kept
			if err := m.statefile.Save(st); err != nil {
				return err
			}
		}
	}

	// Containers come down dependents first, mirroring Stop.
	teardown := slices.Clone(services)
	slices.Reverse(teardown)

	var errs []error
	for _, name := range teardown {
		info, err := m.runtime.ContainerInspect(ctx, name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !info.Exists {
			continue
		}
		if info.Running {
			if err := m.runtime.ContainerStop(ctx, name); err != nil {
				errs = append(errs, fmt.Errorf("stop %q: %w", name, err))
				continue
			}
		}
		slog.Info("removing container", "container", name)
		if err := m.runtime.ContainerRemove(ctx, name, true); err != nil {
			errs = append(errs, fmt.Errorf("remove %q: %w", name, err))
		}
	}
	m.invalidateStatus()
	return errors.Join(errs...)
}
