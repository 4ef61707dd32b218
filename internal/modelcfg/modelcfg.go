// Package modelcfg loads and validates the models.json catalog that the
// deployment scaffolding feeds to the managed process. Downloading model
// weights and rendering config templates are handled elsewhere; this package
// only answers "is the catalog well-formed" and "what is in it".
package modelcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ModelType distinguishes catalog entry formats.
type ModelType string

const (
	TypeGGUF        ModelType = "gguf"
	TypeSafetensors ModelType = "safetensors"
)

// GGUFModel is one GGUF catalog entry. URL points at the weight file; MMProj
// optionally points at a multimodal projector.
type GGUFModel struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	URL           string            `json:"url"`
	MMProj        string            `json:"mmproj,omitempty"`
	RuntimeKwargs map[string]string `json:"runtime_kwargs,omitempty"`
}

// SafetensorsModel is one safetensors catalog entry.
type SafetensorsModel struct {
	Name          string            `json:"name"`
	Description   string            `json:"description,omitempty"`
	RuntimeKwargs map[string]string `json:"runtime_kwargs,omitempty"`
}

// Catalog is the parsed models.json document.
type Catalog struct {
	GGUFs       []GGUFModel        `json:"ggufs"`
	Safetensors []SafetensorsModel `json:"safetensors"`
}

// Entry is the flattened, type-tagged view of one catalog model.
type Entry struct {
	Name        string    `json:"name"`
	Type        ModelType `json:"model_type"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	MMProj      string    `json:"mmproj,omitempty"`
}

// Load reads and parses a models.json catalog.
func Load(path string) (Catalog, error) {
	var c Catalog
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Validate checks required fields and name uniqueness across both lists.
func (c Catalog) Validate() error {
	seen := map[string]bool{}
	for i, m := range c.GGUFs {
		if m.Name == "" {
			return fmt.Errorf("ggufs[%d]: name is required", i)
		}
		if m.URL == "" {
			return fmt.Errorf("gguf model %q: url is required", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name: %q", m.Name)
		}
		seen[m.Name] = true
	}
	for i, m := range c.Safetensors {
		if m.Name == "" {
			return fmt.Errorf("safetensors[%d]: name is required", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name: %q", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}

// Flatten returns name-sorted entries across both model types.
func (c Catalog) Flatten() []Entry {
	out := make([]Entry, 0, len(c.GGUFs)+len(c.Safetensors))
	for _, m := range c.GGUFs {
		out = append(out, Entry{Name: m.Name, Type: TypeGGUF, Description: m.Description, URL: m.URL, MMProj: m.MMProj})
	}
	for _, m := range c.Safetensors {
		out = append(out, Entry{Name: m.Name, Type: TypeSafetensors, Description: m.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
