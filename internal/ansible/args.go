package ansible

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// checkModeKey is injected by Ansible when the play runs with --check.
const checkModeKey = "_ansible_check_mode"

// Args is a decoded module args file.
type Args struct {
	// Raw holds every key of the args file, internal Ansible keys included.
	Raw map[string]any

	// CheckMode is true when the play asked for a dry run.
	CheckMode bool
}

// ReadArgs loads and parses the args file Ansible passed as argv[1].
func ReadArgs(path string) (*Args, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read args file: %w", err)
	}
	return ParseArgs(data)
}

// ParseArgs decodes module args from JSON, falling back to YAML so the
// binaries can be driven by hand-written files during development.
func ParseArgs(data []byte) (*Args, error) {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		if yerr := yaml.Unmarshal(data, &raw); yerr != nil {
			return nil, fmt.Errorf("parse args: %w", err)
		}
	}

	checkMode := false
	switch v := raw[checkModeKey].(type) {
	case bool:
		checkMode = v
	case string:
		checkMode = v == "True" || v == "true"
	}

	return &Args{Raw: raw, CheckMode: checkMode}, nil
}

// Decode unmarshals the args into a struct with json tags. Internal Ansible
// keys ("_ansible_*") are dropped first.
func (a *Args) Decode(v any) error {
	filtered := make(map[string]any, len(a.Raw))
	for k, val := range a.Raw {
		if strings.HasPrefix(k, "_ansible_") {
			continue
		}
		filtered[k] = val
	}
	data, err := json.Marshal(filtered)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode args: %w", err)
	}
	return nil
}

// secretKeyFragments marks arg names whose values must never be echoed.
var secretKeyFragments = []string{"password", "secret", "token"}

// Redact returns a copy of the map with sensitive values masked, recursing
// into nested maps.
func Redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSecretKey(k) {
			out[k] = "VALUE_SPECIFIED_IN_NO_LOG_PARAMETER"
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = Redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, fragment := range secretKeyFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
