package contextual

import "encoding/json"

// KeyDescriptor describes one declared key for diagnostics and tooling.
type KeyDescriptor struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	HasDefault bool   `json:"has_default"`
	Doc        string `json:"doc,omitempty"`
}

// Catalog enumerates every declared key sorted by name. Configuration
// tooling uses it to render the available settings and services.
func Catalog() []KeyDescriptor {
	keys := registry.snapshot()
	out := make([]KeyDescriptor, 0, len(keys))
	for _, key := range keys {
		out = append(out, KeyDescriptor{
			Name:       key.name,
			Kind:       key.kind.String(),
			HasDefault: key.hasDefault,
			Doc:        key.doc,
		})
	}
	return out
}

// CatalogJSON encodes the catalog for transport or logging.
func CatalogJSON() ([]byte, error) {
	return json.Marshal(Catalog())
}
