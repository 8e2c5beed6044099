package tools

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MarshalYAML renders the manifest as YAML. Schemas only carry JSON
// struct tags, so each tool is round-tripped through JSON first.
func MarshalYAML(manifest []Tool) ([]byte, error) {
	items := make([]map[string]any, 0, len(manifest))
	for _, t := range manifest {
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("marshal tool %s: %w", t.Name, err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("unmarshal tool %s: %w", t.Name, err)
		}
		items = append(items, m)
	}
	return yaml.Marshal(map[string]any{"tools": items})
}
