package cli

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseExtraVars merges launch-time variables from repeated
// --extra-vars values. Each value is inline YAML (JSON is a subset) or
// "@path" to read a file; later values override earlier keys.
func ParseExtraVars(values []string) (map[string]interface{}, error) {
	if len(values) == 0 {
		return nil, nil
	}
	merged := map[string]interface{}{}
	for _, value := range values {
		raw := value
		if strings.HasPrefix(value, "@") {
			data, err := os.ReadFile(strings.TrimPrefix(value, "@"))
			if err != nil {
				return nil, fmt.Errorf("reading extra vars file: %w", err)
			}
			raw = string(data)
		}
		var vars map[string]interface{}
		if err := yaml.Unmarshal([]byte(raw), &vars); err != nil {
			return nil, fmt.Errorf("parsing extra vars %q: %w", value, err)
		}
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged, nil
}
