package generate

import (
	"context"
	"fmt"

	"github.com/compose-spec/compose-go/v2/loader"
	compose "github.com/compose-spec/compose-go/v2/types"
)

const composeFilename = "compose.yaml"

// ParseCompose parses a generated orchestration document back into a
// compose Project, e.g. when rewriting it on service removal or when
// diffing snapshots.
func ParseCompose(ctx context.Context, data []byte) (*compose.Project, error) {
	details := compose.ConfigDetails{
		ConfigFiles: []compose.ConfigFile{
			{Filename: composeFilename, Content: data},
		},
	}

	project, err := loader.LoadWithContext(ctx, details, func(o *loader.Options) {
		o.SkipValidation = false
		o.Profiles = []string{"*"}
		// A name in the document wins; the fallback covers hand-edited
		// files that dropped it.
		o.SetProjectName("kasaio", false)
	})
	if err != nil {
		return nil, fmt.Errorf("parse compose document: %w", err)
	}
	return project, nil
}

// ServiceNames lists the services of a parsed document, sorted.
func ServiceNames(project *compose.Project) []string {
	return project.ServiceNames()
}
