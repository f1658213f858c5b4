// Package cmdutil wires the storage and engine pieces subcommands share.
package cmdutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kasaio/internal/catalog"
	"kasaio/internal/infra/docker"
	"kasaio/internal/lifecycle"
	"kasaio/internal/reconcile"
	"kasaio/internal/snapshot"
	"kasaio/internal/state"
)

const (
	// EnvDataRoot overrides the default data root when the flag is unset.
	EnvDataRoot     = "KASAIO_DATA_ROOT"
	defaultDataRoot = "/var/lib/kasaio"

	composeFileName = "docker-compose.yml"
	envFileName     = ".env"
	stateFileName   = "state.json"
	snapshotDBName  = "snapshots.db"
)

// ResolveDataRoot picks the installation directory: flag, then environment,
// then the packaged default.
func ResolveDataRoot(flag string) string {
	if v := strings.TrimSpace(flag); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataRoot)); v != "" {
		return v
	}
	return defaultDataRoot
}

// Env bundles everything a subcommand needs against one data root.
type Env struct {
	DataRoot  string
	Files     snapshot.Files
	StateFile *state.File
	Snapshots *snapshot.Store

	runtime *docker.Runtime
}

// Open opens the stores under the data root. The Docker client is dialed
// lazily; commands that never touch the engine work without a daemon.
func Open(dataRoot string) (*Env, error) {
	root := ResolveDataRoot(dataRoot)
	store, err := snapshot.Open(filepath.Join(root, snapshotDBName))
	if err != nil {
		return nil, err
	}
	files := snapshot.Files{
		Compose: filepath.Join(root, composeFileName),
		Env:     filepath.Join(root, envFileName),
		State:   filepath.Join(root, stateFileName),
	}
	return &Env{
		DataRoot:  root,
		Files:     files,
		StateFile: state.NewFile(files.State),
		Snapshots: store,
	}, nil
}

func (e *Env) Close() error {
	var errs []string
	if e.runtime != nil {
		if err := e.runtime.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := e.Snapshots.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Runtime dials the Docker engine on first use.
func (e *Env) Runtime() (*docker.Runtime, error) {
	if e.runtime != nil {
		return e.runtime, nil
	}
	rt, err := docker.NewRuntime()
	if err != nil {
		return nil, err
	}
	e.runtime = rt
	return rt, nil
}

// Engine builds a reconciliation engine against the Docker runtime.
func (e *Env) Engine() (*reconcile.Engine, error) {
	rt, err := e.Runtime()
	if err != nil {
		return nil, err
	}
	return reconcile.New(reconcile.Config{
		Catalog:   catalog.Default,
		Runtime:   rt,
		Snapshots: e.Snapshots,
		StateFile: e.StateFile,
		Files:     e.Files,
	}), nil
}

// Manager builds a lifecycle manager against the Docker runtime.
func (e *Env) Manager() (*lifecycle.Manager, error) {
	rt, err := e.Runtime()
	if err != nil {
		return nil, err
	}
	return lifecycle.NewManager(catalog.Default, rt, e.Files.Compose, e.StateFile), nil
}

// ParseSettings turns repeated KEY=VALUE flags into a settings map.
func ParseSettings(pairs []string) (map[string]string, error) {
	settings := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid setting %q, expected KEY=VALUE", pair)
		}
		settings[strings.TrimSpace(key)] = value
	}
	return settings, nil
}
