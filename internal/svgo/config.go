// Package svgo models the optimizer plugin configuration in svgo's own
// shape: an ordered list of plugins, each either a bare name (default
// options) or a name with a parameter mapping.
package svgo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// Plugin names used by the default configuration.
const (
	ConvertPathData   = "convertPathData"
	RemoveUselessDefs = "removeUselessDefs"
	MergePaths        = "mergePaths"
)

// Params is a plugin parameter mapping. Values are JSON scalars.
type Params map[string]any

// Plugin is one named transformation rule. A nil Params means the plugin
// runs with its defaults and is serialized as a bare name.
type Plugin struct {
	Name   string
	Params Params
}

// Config is the ordered plugin list handed to the optimizer for every file.
type Config struct {
	Plugins []Plugin
}

// DefaultConfig returns the built-in plugin list:
// convertPathData, removeUselessDefs, mergePaths, in that order.
func DefaultConfig() Config {
	return Config{Plugins: []Plugin{
		{Name: ConvertPathData, Params: Params{"noSpaceAfterFlags": false}},
		{Name: RemoveUselessDefs},
		{Name: MergePaths, Params: Params{
			"force":             true,
			"floatPrecision":    10,
			"noSpaceAfterFlags": false,
		}},
	}}
}

// LoadFile reads a plugin list from a JSON file. Both a bare array and an
// object with a "plugins" key are accepted, mirroring svgo config files.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read plugin file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a plugin list from JSON. See [LoadFile].
func Parse(data []byte) (Config, error) {
	data = bytes.TrimSpace(data)
	var cfg Config
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &cfg.Plugins); err != nil {
			return Config{}, fmt.Errorf("parse plugin list: %w", err)
		}
	} else {
		var wrapped struct {
			Plugins []Plugin `json:"plugins"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return Config{}, fmt.Errorf("parse plugin list: %w", err)
		}
		cfg.Plugins = wrapped.Plugins
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects empty lists and unnamed plugins.
func (c Config) Validate() error {
	if len(c.Plugins) == 0 {
		return errors.New("plugin list is empty")
	}
	for i, p := range c.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugin %d has no name", i)
		}
	}
	return nil
}

// Names returns the plugin names in order.
func (c Config) Names() []string {
	names := make([]string, len(c.Plugins))
	for i, p := range c.Plugins {
		names[i] = p.Name
	}
	return names
}

// FloatPrecision returns the largest numeric floatPrecision parameter of
// any plugin, and whether one was set.
func (c Config) FloatPrecision() (int, bool) {
	best, found := 0, false
	for _, p := range c.Plugins {
		n, ok := intParam(p.Params["floatPrecision"])
		if !ok {
			continue
		}
		if !found || n > best {
			best, found = n, true
		}
	}
	return best, found
}

// Module renders the configuration as an ES module svgo can load with
// --config. JSON is valid JavaScript, so the plugin list is emitted verbatim.
func (c Config) Module() ([]byte, error) {
	body, err := json.MarshalIndent(struct {
		Plugins []Plugin `json:"plugins"`
	}{c.Plugins}, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString("export default ")
	buf.Write(body)
	buf.WriteString(";\n")
	return buf.Bytes(), nil
}

// MarshalJSON emits a bare name when the plugin has no params.
func (p Plugin) MarshalJSON() ([]byte, error) {
	if p.Params == nil {
		return json.Marshal(p.Name)
	}
	return json.Marshal(struct {
		Name   string `json:"name"`
		Params Params `json:"params"`
	}{p.Name, p.Params})
}

// UnmarshalJSON accepts either a bare name or a {"name","params"} object.
func (p *Plugin) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*p = Plugin{Name: name}
		return nil
	}
	var obj struct {
		Name   string `json:"name"`
		Params Params `json:"params"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("plugin must be a name or an object with name and params: %w", err)
	}
	*p = Plugin{Name: obj.Name, Params: obj.Params}
	return nil
}

func intParam(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}
