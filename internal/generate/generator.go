package generate

import (
	"fmt"
	"sort"
	"strconv"

	compose "github.com/compose-spec/compose-go/v2/types"

	"kasaio/internal/catalog"
)

// NetworkName is the bridge network every generated service attaches to.
const NetworkName = "kasaio"

const (
	labelManaged = "kasaio.managed"
	labelProfile = "kasaio.profile"
)

// Catalog is the profile lookup the generator reads from.
type Catalog interface {
	Lookup(id string) (catalog.Profile, bool)
}

// Generator turns a validated, resolved profile set plus settings into the
// orchestration document and env map. It holds no mutable state.
type Generator struct {
	cat Catalog
}

func NewGenerator(cat Catalog) *Generator {
	return &Generator{cat: cat}
}

// Output is one generation result. ComposeYAML is byte-reproducible from
// (resolved, Settings): same inputs, identical bytes.
type Output struct {
	ComposeYAML []byte
	// Env is the flat environment map written to the env file. Identical to
	// the completed settings, including generated secrets.
	Env map[string]string
	// GeneratedSecrets names the keys that were filled with generated
	// values because the caller omitted them.
	GeneratedSecrets []string
	Warnings         []string
}

// Published-port override keys per service. Declared ports are used when the
// key is absent from settings.
var portOverrides = map[string]string{
	"kaspa-stratum-bridge": "STRATUM_PORT",
	"kaspa-rest-server":    "REST_PORT",
	"kaspa-explorer":       "EXPLORER_PORT",
	"kaspa-socket":         "SOCKET_PORT",
}

// Persistent data mounts per service, relative to KASAIO_DATA_DIR.
var dataMounts = map[string]string{
	"kaspad":         "/app/data",
	"kaspad-archive": "/app/data",
	"postgres":       "/var/lib/postgresql/data",
}

// Generate builds the compose document and env map for a resolved profile
// set. Secrets are defaulted before validation runs; on any field error no
// document is produced.
func (g *Generator) Generate(resolved []string, settings map[string]string) (Output, []FieldError, error) {
	completed, generatedSecrets, err := g.CompleteSettings(resolved, settings)
	if err != nil {
		return Output{}, nil, err
	}
	if fieldErrs := ValidateSettings(completed); len(fieldErrs) > 0 {
		return Output{}, fieldErrs, nil
	}

	ids := append([]string(nil), resolved...)
	sort.Strings(ids)

	services := compose.Services{}
	var warnings []string
	for _, id := range ids {
		p, ok := g.cat.Lookup(id)
		if !ok {
			// Resolved sets come from the validator; an unknown id here is
			// a caller bug, surfaced rather than silently skipped.
			return Output{}, nil, fmt.Errorf("generate: unknown profile %q in resolved set", id)
		}
		for _, svc := range p.Services {
			services[svc.Name] = g.serviceConfig(p, svc, completed)
		}
	}

	// Inclusion is data: depends_on may only reference services that made
	// it into this document.
	for name, cfg := range services {
		for dep := range cfg.DependsOn {
			if _, present := services[dep]; !present {
				delete(cfg.DependsOn, dep)
			}
		}
		if len(cfg.DependsOn) == 0 {
			cfg.DependsOn = nil
		}
		services[name] = cfg
	}

	project := &compose.Project{
		Name:     "kasaio",
		Services: services,
		Networks: compose.Networks{
			NetworkName: compose.NetworkConfig{
				Name:   NetworkName,
				Driver: "bridge",
			},
		},
	}

	doc, err := project.MarshalYAML()
	if err != nil {
		return Output{}, nil, fmt.Errorf("marshal compose document: %w", err)
	}

	for _, key := range generatedSecrets {
		warnings = append(warnings, fmt.Sprintf("generated value for %s; keep the env file safe", key))
	}

	return Output{
		ComposeYAML:      doc,
		Env:              completed,
		GeneratedSecrets: generatedSecrets,
		Warnings:         warnings,
	}, nil, nil
}

func (g *Generator) serviceConfig(p catalog.Profile, svc catalog.Service, settings map[string]string) compose.ServiceConfig {
	env := compose.MappingWithEquals{}
	setEnv := func(key, value string) {
		v := value
		env[key] = &v
	}

	for key, value := range svc.Env {
		setEnv(key, value)
	}
	// User settings override defaults key by key; only keys the service
	// declares (or its secrets) reach its environment.
	for key := range svc.Env {
		if override, ok := settings[key]; ok {
			setEnv(key, override)
		}
	}
	for _, key := range svc.RequiredSecrets {
		if value, ok := settings[key]; ok {
			setEnv(key, value)
		}
	}
	if network, ok := settings["KASPA_NETWORK"]; ok {
		setEnv("KASPA_NETWORK", network)
	}

	var ports []compose.ServicePortConfig
	for _, port := range svc.Ports {
		published := port
		if key, ok := portOverrides[svc.Name]; ok {
			if raw, set := settings[key]; set {
				if n, err := strconv.Atoi(raw); err == nil {
					published = n
				}
			}
		}
		ports = append(ports, compose.ServicePortConfig{
			Mode:      "ingress",
			Target:    uint32(port),
			Published: strconv.Itoa(published),
			Protocol:  "tcp",
		})
	}

	var volumes []compose.ServiceVolumeConfig
	if target, ok := dataMounts[svc.Name]; ok {
		volumes = append(volumes, compose.ServiceVolumeConfig{
			Type:   compose.VolumeTypeBind,
			Source: settings["KASAIO_DATA_DIR"] + "/" + svc.Name,
			Target: target,
		})
	}

	dependsOn := compose.DependsOnConfig{}
	for _, dep := range svc.DependsOn {
		dependsOn[dep] = compose.ServiceDependency{
			Condition: compose.ServiceConditionStarted,
			Required:  true,
		}
	}

	return compose.ServiceConfig{
		Name:          svc.Name,
		ContainerName: svc.Name,
		Image:         svc.Image,
		Environment:   env,
		Ports:         ports,
		Volumes:       volumes,
		DependsOn:     dependsOn,
		Restart:       "unless-stopped",
		Networks: map[string]*compose.ServiceNetworkConfig{
			NetworkName: nil,
		},
		Labels: compose.Labels{
			labelManaged: "true",
			labelProfile: p.ID,
		},
		// Native compose profile tags record ownership explicitly; a
		// service appears in this document only when its owning profile is
		// in the resolved set.
		Profiles: []string{p.ID},
	}
}
