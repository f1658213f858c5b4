// Package lifecycle starts, stops and inspects the containers behind
// installed profiles without regenerating configuration.
package lifecycle

import (
	"context"
	"time"
)

// ContainerInfo is the observed state of one container.
type ContainerInfo struct {
	Exists  bool
	Running bool
	Status  string
}

// PortBinding maps a host port to a container port.
type PortBinding struct {
	HostPort      uint16
	ContainerPort uint16
	Protocol      string
}

// MountBinding binds a host path into a container.
type MountBinding struct {
	Source   string
	Target   string
	ReadOnly bool
}

// CreateConfig describes a container to create.
type CreateConfig struct {
	Name          string
	Image         string
	Env           []string
	Labels        map[string]string
	Ports         []PortBinding
	Mounts        []MountBinding
	NetworkMode   string
	RestartPolicy string
}

// ContainerListEntry is one container from a filtered listing.
type ContainerListEntry struct {
	Name    string
	Image   string
	Running bool
	Labels  map[string]string
}

// ContainerRuntime is the engine surface the lifecycle manager needs.
// The production implementation talks to the Docker Engine API.
type ContainerRuntime interface {
	ContainerInspect(ctx context.Context, name string) (ContainerInfo, error)
	ContainerStart(ctx context.Context, name string) error
	ContainerStop(ctx context.Context, name string) error
	ContainerRestart(ctx context.Context, name string, timeout time.Duration) error
	ContainerRemove(ctx context.Context, name string, force bool) error
	ContainerCreate(ctx context.Context, cfg CreateConfig) error
	ContainerList(ctx context.Context, labelFilter map[string]string) ([]ContainerListEntry, error)
	ImagePull(ctx context.Context, img string) error
}
