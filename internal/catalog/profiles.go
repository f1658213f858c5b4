package catalog

import "sort"

// The catalog is fixed product data: it changes only when the stack gains or
// loses a bundle. Everything else in the tool derives from it.
var profiles = map[string]Profile{
	"kaspa-node": {
		ID:          "kaspa-node",
		Description: "Kaspa full node (pruning)",
		Services: []Service{{
			Name:  "kaspad",
			Image: "kaspanet/kaspad:latest",
			Env: map[string]string{
				"KASPAD_UTXOINDEX": "true",
			},
			Ports:        []int{16110, 16111},
			Phase:        PhaseInfra,
			StartupOrder: 20,
		}},
		Conflicts: []string{"kaspa-archive-node"},
		Resources: ResourceRequirements{
			MinCPU:         2,
			MinMemoryMiB:   4096,
			MinDiskMiB:     51200,
			RecommendedCPU: 4,
		},
	},

	"kaspa-archive-node": {
		ID:          "kaspa-archive-node",
		Description: "Kaspa archival node (no pruning, full history)",
		Services: []Service{{
			Name:  "kaspad-archive",
			Image: "kaspanet/kaspad:latest",
			Env: map[string]string{
				"KASPAD_UTXOINDEX": "true",
				"KASPAD_ARCHIVAL":  "true",
			},
			Ports:        []int{16110, 16111},
			Phase:        PhaseInfra,
			StartupOrder: 20,
		}},
		Conflicts: []string{"kaspa-node"},
		Resources: ResourceRequirements{
			MinCPU:         4,
			MinMemoryMiB:   8192,
			MinDiskMiB:     512000,
			RecommendedCPU: 8,
		},
	},

	"postgres": {
		ID:          "postgres",
		Description: "PostgreSQL database for the indexing stack",
		Services: []Service{{
			Name:  "postgres",
			Image: "postgres:16-alpine",
			Env: map[string]string{
				"POSTGRES_USER": "kaspa",
				"POSTGRES_DB":   "kaspa",
			},
			RequiredSecrets: []string{"POSTGRES_PASSWORD"},
			Ports:           []int{5432},
			Phase:           PhaseInfra,
			StartupOrder:    10,
		}},
		Resources: ResourceRequirements{
			MinCPU:       1,
			MinMemoryMiB: 2048,
			MinDiskMiB:   102400,
		},
	},

	"kaspa-indexer": {
		ID:          "kaspa-indexer",
		Description: "Block/transaction indexer filling PostgreSQL",
		Services: []Service{{
			Name:  "kaspa-db-filler",
			Image: "supertypo/kaspa-db-filler:latest",
			Env: map[string]string{
				"DB_HOST": "postgres",
				"DB_PORT": "5432",
			},
			Phase:        PhaseIndexers,
			StartupOrder: 30,
			DependsOn:    []string{"postgres"},
		}},
		Dependencies:  []string{"postgres"},
		Prerequisites: []string{"kaspa-node", "kaspa-archive-node"},
		Resources: ResourceRequirements{
			MinCPU:       1,
			MinMemoryMiB: 2048,
			MinDiskMiB:   10240,
		},
	},

	"kaspa-rest-server": {
		ID:          "kaspa-rest-server",
		Description: "REST API over the indexed chain data",
		Services: []Service{{
			Name:  "kaspa-rest-server",
			Image: "supertypo/kaspa-rest-server:latest",
			Env: map[string]string{
				"DB_HOST": "postgres",
				"DB_PORT": "5432",
			},
			Ports:        []int{8000},
			Phase:        PhaseApplications,
			StartupOrder: 40,
			DependsOn:    []string{"postgres"},
		}},
		Dependencies:  []string{"postgres"},
		Prerequisites: []string{"kaspa-indexer"},
		Resources: ResourceRequirements{
			MinCPU:       1,
			MinMemoryMiB: 1024,
			MinDiskMiB:   1024,
		},
	},

	"kaspa-explorer": {
		ID:          "kaspa-explorer",
		Description: "Block explorer web UI with live update gateway",
		Services: []Service{
			{
				Name:  "kaspa-explorer",
				Image: "supertypo/kaspa-explorer:latest",
				Env: map[string]string{
					"API_URI": "http://kaspa-rest-server:8000",
				},
				Ports:        []int{8080},
				Phase:        PhaseApplications,
				StartupOrder: 50,
				DependsOn:    []string{"kaspa-rest-server"},
			},
			{
				Name:            "kaspa-socket",
				Image:           "supertypo/kaspa-socket-server:latest",
				RequiredSecrets: []string{"SOCKET_AUTH_TOKEN"},
				Ports:           []int{8081},
				Phase:           PhaseApplications,
				StartupOrder:    45,
				DependsOn:       []string{"kaspa-rest-server"},
			},
		},
		Dependencies: []string{"kaspa-rest-server"},
		Resources: ResourceRequirements{
			MinCPU:       1,
			MinMemoryMiB: 1024,
			MinDiskMiB:   1024,
		},
	},

	"kaspa-stratum": {
		ID:          "kaspa-stratum",
		Description: "Stratum mining bridge for solo miners",
		Services: []Service{{
			Name:  "kaspa-stratum-bridge",
			Image: "onemorebsmith/kaspa-stratum-bridge:latest",
			Env: map[string]string{
				"STRATUM_LISTEN": ":5555",
			},
			Ports:        []int{5555},
			Phase:        PhaseApplications,
			StartupOrder: 60,
		}},
		Prerequisites: []string{"kaspa-node", "kaspa-archive-node"},
		Resources: ResourceRequirements{
			MinCPU:       1,
			MinMemoryMiB: 512,
			MinDiskMiB:   512,
		},
	},
}

// Lookup returns the profile for a canonical id.
func Lookup(id string) (Profile, bool) {
	p, ok := profiles[id]
	return p, ok
}

// IDs returns all canonical profile ids, sorted.
func IDs() []string {
	out := make([]string, 0, len(profiles))
	for id := range profiles {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// All returns every profile sorted by id.
func All() []Profile {
	ids := IDs()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		out = append(out, profiles[id])
	}
	return out
}

// OwnerOf returns the profile owning a service (container) name.
func OwnerOf(serviceName string) (Profile, bool) {
	for _, id := range IDs() {
		p := profiles[id]
		for _, svc := range p.Services {
			if svc.Name == serviceName {
				return p, true
			}
		}
	}
	return Profile{}, false
}
