// Package docker adapts the Docker Engine API to the container runtime
// surface the lifecycle manager and reconciliation engine operate on.
package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	dockerfilters "github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	dockernetwork "github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"kasaio/internal/lifecycle"
)

var _ lifecycle.ContainerRuntime = (*Runtime)(nil)

// Runtime implements lifecycle.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli *client.Client
}

// NewRuntime creates a Runtime with a new Docker client from the environment.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli *client.Client) *Runtime {
	return &Runtime{cli: cli}
}

func (r *Runtime) ContainerInspect(ctx context.Context, name string) (lifecycle.ContainerInfo, error) {
	info, err := r.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return lifecycle.ContainerInfo{Exists: false}, nil
		}
		return lifecycle.ContainerInfo{}, fmt.Errorf("inspect container %q: %w", name, err)
	}
	out := lifecycle.ContainerInfo{Exists: true}
	if info.State != nil {
		out.Running = info.State.Running
		out.Status = info.State.Status
	}
	return out, nil
}

func (r *Runtime) ContainerStart(ctx context.Context, name string) error {
	return r.cli.ContainerStart(ctx, name, container.StartOptions{})
}

func (r *Runtime) ContainerStop(ctx context.Context, name string) error {
	return r.cli.ContainerStop(ctx, name, container.StopOptions{})
}

func (r *Runtime) ContainerRestart(ctx context.Context, name string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	return r.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &seconds})
}

func (r *Runtime) ContainerRemove(ctx context.Context, name string, force bool) error {
	return r.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: force})
}

func (r *Runtime) ContainerCreate(ctx context.Context, cfg lifecycle.CreateConfig) error {
	cc := &container.Config{
		Image:  cfg.Image,
		Env:    cfg.Env,
		Labels: cfg.Labels,
	}

	hc := &container.HostConfig{
		NetworkMode:   container.NetworkMode(cfg.NetworkMode),
		RestartPolicy: parseRestartPolicy(cfg.RestartPolicy),
	}

	if len(cfg.Ports) > 0 {
		portBindings := make(nat.PortMap, len(cfg.Ports))
		exposedPorts := make(nat.PortSet, len(cfg.Ports))
		for _, p := range cfg.Ports {
			proto := strings.ToLower(strings.TrimSpace(p.Protocol))
			if proto == "" {
				proto = "tcp"
			}
			containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, proto))
			exposedPorts[containerPort] = struct{}{}
			portBindings[containerPort] = []nat.PortBinding{{HostPort: strconv.Itoa(int(p.HostPort))}}
		}
		cc.ExposedPorts = exposedPorts
		hc.PortBindings = portBindings
	}

	hc.Mounts = make([]mount.Mount, 0, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		hc.Mounts = append(hc.Mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	_, err := r.cli.ContainerCreate(ctx, cc, hc, nil, nil, cfg.Name)
	return err
}

func (r *Runtime) ContainerList(ctx context.Context, labelFilter map[string]string) ([]lifecycle.ContainerListEntry, error) {
	filters := dockerfilters.NewArgs()
	for key, value := range labelFilter {
		filters.Add("label", key+"="+value)
	}

	containers, err := r.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]lifecycle.ContainerListEntry, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		labels := make(map[string]string, len(c.Labels))
		for key, value := range c.Labels {
			labels[key] = value
		}

		out = append(out, lifecycle.ContainerListEntry{
			Name:    name,
			Image:   c.Image,
			Running: c.State == "running",
			Labels:  labels,
		})
	}

	return out, nil
}

func (r *Runtime) ImagePull(ctx context.Context, img string) error {
	pull, err := r.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %q: %w", img, err)
	}
	_, _ = io.Copy(io.Discard, pull)
	_ = pull.Close()
	return nil
}

// EnsureNetwork creates the shared bridge network if it does not exist.
func (r *Runtime) EnsureNetwork(ctx context.Context, name string) error {
	_, err := r.cli.NetworkInspect(ctx, name, dockernetwork.InspectOptions{})
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect network %q: %w", name, err)
	}
	if _, err := r.cli.NetworkCreate(ctx, name, dockernetwork.CreateOptions{
		Driver: "bridge",
		Scope:  "local",
	}); err != nil {
		return fmt.Errorf("create network %q: %w", name, err)
	}
	return nil
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}

func parseRestartPolicy(policy string) container.RestartPolicy {
	switch strings.TrimSpace(policy) {
	case "no":
		return container.RestartPolicy{Name: container.RestartPolicyDisabled}
	case "always":
		return container.RestartPolicy{Name: container.RestartPolicyAlways}
	case "on-failure":
		return container.RestartPolicy{Name: container.RestartPolicyOnFailure}
	default:
		return container.RestartPolicy{Name: container.RestartPolicyUnlessStopped}
	}
}
