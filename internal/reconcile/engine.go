// Package reconcile drives a profile selection from validated request to
// committed installation, with snapshot-backed rollback when the container
// engine rejects the change partway.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"kasaio/internal/catalog"
	"kasaio/internal/generate"
	"kasaio/internal/lifecycle"
	"kasaio/internal/resolve"
	"kasaio/internal/snapshot"
	"kasaio/internal/state"
)

// Catalog is the profile lookup surface the engine needs.
type Catalog interface {
	Lookup(id string) (catalog.Profile, bool)
	Canonicalize(ids []string) ([]string, []catalog.Migration)
}

const defaultParallelism = 4

// Config wires an Engine.
type Config struct {
	Catalog     Catalog
	Runtime     lifecycle.ContainerRuntime
	Snapshots   *snapshot.Store
	StateFile   *state.File
	Files       snapshot.Files
	Parallelism int
}

// Engine is the single writer for an installation. One Reconcile runs at a
// time; concurrent calls fail fast instead of queueing.
type Engine struct {
	mu sync.Mutex

	cat         Catalog
	validator   *resolve.Validator
	generator   *generate.Generator
	snapshots   *snapshot.Store
	runtime     lifecycle.ContainerRuntime
	statefile   *state.File
	files       snapshot.Files
	parallelism int
	tracer      trace.Tracer
}

func New(cfg Config) *Engine {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}
	return &Engine{
		cat:         cfg.Catalog,
		validator:   resolve.NewValidator(cfg.Catalog),
		generator:   generate.NewGenerator(cfg.Catalog),
		snapshots:   cfg.Snapshots,
		runtime:     cfg.Runtime,
		statefile:   cfg.StateFile,
		files:       cfg.Files,
		parallelism: parallelism,
		tracer:      otel.Tracer("kasaio/reconcile"),
	}
}

// Request describes one desired reconciliation.
type Request struct {
	Profiles []string
	Settings map[string]string
	Reason   string
	// DryRun stops after diffing. Nothing is written or applied, and no
	// snapshot row is persisted.
	DryRun bool
}

// Result reports what a reconciliation run did.
type Result struct {
	Phase            Phase          `json:"phase"`
	Validation       resolve.Result `json:"validation"`
	SnapshotID       string         `json:"snapshot_id,omitempty"`
	Diff             snapshot.Diff  `json:"diff"`
	GeneratedSecrets []string       `json:"generated_secrets,omitempty"`
	Services         []string       `json:"services,omitempty"`
	RestartRequired  bool           `json:"restart_required"`
}

// Reconcile validates the request, snapshots the current configuration,
// generates and diffs the new one, and applies the difference to the
// container engine. An engine failure rolls everything back to the
// snapshot; a rollback failure leaves the run in manual recovery.
func (e *Engine) Reconcile(ctx context.Context, req Request) (Result, error) {
	if !e.mu.TryLock() {
		return Result{}, &Error{
			Kind: KindConcurrency,
			Err:  fmt.Errorf("another reconciliation is in progress"),
			Hint: "wait for the running operation to finish and retry",
		}
	}
	defer e.mu.Unlock()

	ctx, span := e.tracer.Start(ctx, "reconcile",
		trace.WithAttributes(attribute.StringSlice("kasaio.profiles", req.Profiles)))
	defer span.End()

	result, err := e.reconcile(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(attribute.String("kasaio.phase", result.Phase.String()))
	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, req Request) (Result, error) {
	phase := PhaseIdle
	var result Result

	phase = phase.Transition(PhaseValidating)
	validation := e.validator.ValidateSelection(req.Profiles)
	result.Validation = validation
	if !validation.Valid {
		result.Phase = phase.Transition(PhaseIdle)
		return result, validationError(validation.Errors)
	}

	current, err := snapshot.CaptureFiles(e.files)
	if err != nil {
		result.Phase = phase.Transition(PhaseIdle)
		return result, storageError(err)
	}
	prior, priorFound, err := e.statefile.Load()
	if err != nil {
		result.Phase = phase.Transition(PhaseIdle)
		return result, storageError(err)
	}

	phase = phase.Transition(PhaseSnapshotting)
	var snapshotID string
	if !req.DryRun {
		reason := req.Reason
		if reason == "" {
			reason = "pre-change backup"
		}
		snap, err := e.snapshots.Create(ctx, current, reason, map[string]string{
			"profiles": fmt.Sprintf("%v", validation.Resolved),
		})
		if err != nil {
			result.Phase = phase.Transition(PhaseIdle)
			return result, storageError(err)
		}
		snapshotID = snap.ID
		result.SnapshotID = snapshotID
	}

	phase = phase.Transition(PhaseGenerating)
	settings := mergeSettings(prior.Configuration, req.Settings)
	out, fieldErrs, err := e.generator.Generate(validation.Resolved, settings)
	if len(fieldErrs) > 0 {
		result.Phase = phase.Transition(PhaseIdle)
		return result, settingsError(fieldErrs)
	}
	if err != nil {
		result.Phase = phase.Transition(PhaseIdle)
		return result, storageError(err)
	}
	result.GeneratedSecrets = out.GeneratedSecrets

	envData, err := generate.EncodeEnv(out.Env)
	if err != nil {
		result.Phase = phase.Transition(PhaseIdle)
		return result, storageError(err)
	}
	proposed := snapshot.Payload{ComposeYAML: out.ComposeYAML, Env: envData}

	phase = phase.Transition(PhaseDiffing)
	diff, err := snapshot.DiffSnapshots(ctx, current, proposed)
	if err != nil {
		result.Phase = phase.Transition(PhaseIdle)
		return result, storageError(err)
	}
	result.Diff = diff
	result.RestartRequired = diff.ChangeCount() > 0

	services := e.orderedServices(validation.Resolved)
	result.Services = serviceNames(services)

	if req.DryRun {
		result.Phase = phase.Transition(PhaseIdle)
		return result, nil
	}
	if diff.ChangeCount() == 0 && priorFound {
		result.Phase = phase.Transition(PhaseCommitted)
		return result, nil
	}

	phase = phase.Transition(PhaseApplying)
	if applyErr := e.apply(ctx, current, proposed, services, diff, snapshotID); applyErr != nil {
		if re, ok := AsError(applyErr); ok && re.Kind == KindManualRecovery {
			result.Phase = phase.Transition(PhaseManualRecovery)
			return result, applyErr
		}
		result.Phase = phase.Transition(PhaseRolledBack)
		return result, engineError(applyErr, snapshotID)
	}

	next := state.InstallationState{
		Mode:             state.ModeReconfigure,
		SelectedProfiles: validation.Resolved,
		Configuration:    out.Env,
		Services:         result.Services,
		History:          prior.History,
	}
	if !priorFound {
		next.Mode = state.ModeInitial
	}
	next.History = append(next.History, state.NewHistoryEntry("reconcile", snapshotID, diff))
	if err := e.statefile.Save(next); err != nil {
		result.Phase = phase.Transition(PhaseManualRecovery)
		return result, manualRecoveryError(err, nil, snapshotID)
	}

	if pruned, err := e.snapshots.Prune(ctx); err != nil {
		slog.Warn("snapshot prune failed", "err", err)
	} else if pruned > 0 {
		slog.Debug("pruned old snapshots", "count", pruned)
	}

	result.Phase = phase.Transition(PhaseCommitted)
	return result, nil
}

type orderedService struct {
	name    string
	profile catalog.Profile
	svc     catalog.Service
}

func (e *Engine) orderedServices(resolved []string) []orderedService {
	var out []orderedService
	seen := map[string]bool{}
	for _, id := range resolved {
		profile, ok := e.cat.Lookup(id)
		if !ok {
			continue
		}
		for _, svc := range profile.Services {
			if seen[svc.Name] {
				continue
			}
			seen[svc.Name] = true
			out = append(out, orderedService{name: svc.Name, profile: profile, svc: svc})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].svc, out[j].svc
		if ra, rb := catalog.PhaseRank(a.Phase), catalog.PhaseRank(b.Phase); ra != rb {
			return ra < rb
		}
		if a.StartupOrder != b.StartupOrder {
			return a.StartupOrder < b.StartupOrder
		}
		return a.Name < b.Name
	})
	return out
}

func serviceNames(services []orderedService) []string {
	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.name)
	}
	return names
}

func mergeSettings(prior, requested map[string]string) map[string]string {
	merged := make(map[string]string, len(prior)+len(requested))
	for k, v := range prior {
		merged[k] = v
	}
	for k, v := range requested {
		merged[k] = v
	}
	return merged
}
