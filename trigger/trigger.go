// Package trigger executes and discovers trigger programs.
//
// A trigger is an external executable whose exit code encodes a boolean
// condition: exit 0 means the condition holds (stdout optionally carries a
// JSON payload), any other exit means "still waiting". Triggers live in a
// single directory and may carry an optional metadata sidecar
// (<name>.yaml, <name>.yml or <name>.json).
package trigger

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/example/vigil/errors"
)

// Trigger is a discovered trigger program: the canonical (extension-stripped)
// name plus optional sidecar metadata.
type Trigger struct {
	Name string    `json:"name"`
	Meta *Metadata `json:"meta,omitempty"`
}

// Metadata is the optional descriptive sidecar for a trigger program.
type Metadata struct {
	Name            string    `json:"name" yaml:"name"`
	Description     string    `json:"description,omitempty" yaml:"description"`
	Args            []ArgSpec `json:"args,omitempty" yaml:"args"`
	DefaultInterval string    `json:"default_interval,omitempty" yaml:"default_interval"`
}

// ArgSpec documents one positional trigger argument.
type ArgSpec struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// sidecarExtensions in probe order. These files are also excluded from
// executable discovery.
var sidecarExtensions = []string{".yaml", ".yml", ".json"}

// loadSidecar reads metadata for a trigger name from the given directory.
// Returns nil with no error when no sidecar exists.
func loadSidecar(dir, name string) (*Metadata, error) {
	for _, ext := range sidecarExtensions {
		path := filepath.Join(dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrapf(err, "failed to read sidecar %s", path)
		}

		var meta Metadata
		if ext == ".json" {
			if err := json.Unmarshal(data, &meta); err != nil {
				return nil, errors.Wrapf(err, "failed to parse sidecar %s", path)
			}
		} else {
			if err := yaml.Unmarshal(data, &meta); err != nil {
				return nil, errors.Wrapf(err, "failed to parse sidecar %s", path)
			}
		}

		if meta.Name == "" {
			meta.Name = name
		}
		return &meta, nil
	}

	return nil, nil
}
