package snapshot

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	compose "github.com/compose-spec/compose-go/v2/types"

	"kasaio/internal/generate"
)

// ChangeType classifies one entry of a diff.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// Change is one environment key difference between two captures. Values are
// deliberately omitted so diffs never leak secrets.
type Change struct {
	Key  string     `json:"key"`
	Type ChangeType `json:"type"`
}

// ServiceChange is one service-level difference between two compose documents.
type ServiceChange struct {
	Name string     `json:"name"`
	Type ChangeType `json:"type"`
}

// Diff is the structural difference between two configuration captures.
type Diff struct {
	Env      []Change        `json:"env,omitempty"`
	Services []ServiceChange `json:"services,omitempty"`
}

// ChangeCount is the total number of differences.
func (d Diff) ChangeCount() int {
	return len(d.Env) + len(d.Services)
}

// DiffSnapshots computes the structural difference between two captures,
// from old to new. The diff operates on parsed structures, not raw text, so
// formatting-only edits do not register.
func DiffSnapshots(ctx context.Context, old, new Payload) (Diff, error) {
	var diff Diff

	oldEnv, err := parseEnvLoose(old.Env)
	if err != nil {
		return Diff{}, fmt.Errorf("parse old env: %w", err)
	}
	newEnv, err := parseEnvLoose(new.Env)
	if err != nil {
		return Diff{}, fmt.Errorf("parse new env: %w", err)
	}
	diff.Env = diffEnv(oldEnv, newEnv)

	oldServices, err := parseServices(ctx, old.ComposeYAML)
	if err != nil {
		return Diff{}, fmt.Errorf("parse old compose: %w", err)
	}
	newServices, err := parseServices(ctx, new.ComposeYAML)
	if err != nil {
		return Diff{}, fmt.Errorf("parse new compose: %w", err)
	}
	diff.Services = diffServices(oldServices, newServices)

	return diff, nil
}

func parseEnvLoose(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return map[string]string{}, nil
	}
	return generate.ParseEnv(data)
}

func parseServices(ctx context.Context, data []byte) (map[string]compose.ServiceConfig, error) {
	if len(data) == 0 {
		return map[string]compose.ServiceConfig{}, nil
	}
	project, err := generate.ParseCompose(ctx, data)
	if err != nil {
		return nil, err
	}
	return project.Services, nil
}

func diffEnv(old, new map[string]string) []Change {
	var out []Change
	for key, oldVal := range old {
		newVal, ok := new[key]
		switch {
		case !ok:
			out = append(out, Change{Key: key, Type: ChangeRemoved})
		case oldVal != newVal:
			out = append(out, Change{Key: key, Type: ChangeChanged})
		}
	}
	for key := range new {
		if _, ok := old[key]; !ok {
			out = append(out, Change{Key: key, Type: ChangeAdded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func diffServices(old, new map[string]compose.ServiceConfig) []ServiceChange {
	var out []ServiceChange
	for name, oldSvc := range old {
		newSvc, ok := new[name]
		switch {
		case !ok:
			out = append(out, ServiceChange{Name: name, Type: ChangeRemoved})
		case !reflect.DeepEqual(oldSvc, newSvc):
			out = append(out, ServiceChange{Name: name, Type: ChangeChanged})
		}
	}
	for name := range new {
		if _, ok := old[name]; !ok {
			out = append(out, ServiceChange{Name: name, Type: ChangeAdded})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
