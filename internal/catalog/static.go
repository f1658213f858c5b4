package catalog

// Static is the product catalog as a value, for callers that take the
// catalog as a dependency instead of reaching for package-level lookups.
// The zero value is ready to use.
type Static struct{}

func (Static) Lookup(id string) (Profile, bool) { return Lookup(id) }

func (Static) Canonicalize(ids []string) ([]string, []Migration) { return Canonicalize(ids) }

func (Static) IDs() []string { return IDs() }

// Default is the catalog handle used throughout the tool.
var Default = Static{}
