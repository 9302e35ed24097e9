package svgo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig_Order(t *testing.T) {
	got := DefaultConfig().Names()
	want := []string{"convertPathData", "removeUselessDefs", "mergePaths"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestDefaultConfig_Params(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.Plugins[0].Params["noSpaceAfterFlags"]; got != false {
		t.Errorf("convertPathData noSpaceAfterFlags = %v, want false", got)
	}
	if cfg.Plugins[1].Params != nil {
		t.Errorf("removeUselessDefs should have no params, got %v", cfg.Plugins[1].Params)
	}
	merge := cfg.Plugins[2].Params
	if merge["force"] != true || merge["floatPrecision"] != 10 || merge["noSpaceAfterFlags"] != false {
		t.Errorf("mergePaths params = %v", merge)
	}
}

func TestDefaultConfig_FreshEachCall(t *testing.T) {
	a := DefaultConfig()
	a.Plugins[0].Params["noSpaceAfterFlags"] = true
	b := DefaultConfig()
	if b.Plugins[0].Params["noSpaceAfterFlags"] != false {
		t.Error("DefaultConfig shares params between calls")
	}
}

func TestPluginJSON_MixesNamesAndObjects(t *testing.T) {
	data, err := json.Marshal(DefaultConfig().Plugins)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"name":"convertPathData","params":{"noSpaceAfterFlags":false}},` +
		`"removeUselessDefs",` +
		`{"name":"mergePaths","params":{"floatPrecision":10,"force":true,"noSpaceAfterFlags":false}}]`
	if string(data) != want {
		t.Errorf("JSON =\n%s\nwant\n%s", data, want)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"bare array", `["removeComments", {"name": "cleanupIds", "params": {"minify": true}}]`, []string{"removeComments", "cleanupIds"}, false},
		{"plugins object", `{"plugins": ["removeDimensions"]}`, []string{"removeDimensions"}, false},
		{"empty list", `[]`, nil, true},
		{"unnamed object", `[{"params": {}}]`, nil, true},
		{"not json", `export default {}`, nil, true},
		{"wrong element type", `[42]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !reflect.DeepEqual(cfg.Names(), tt.want) {
				t.Errorf("Names() = %v, want %v", cfg.Names(), tt.want)
			}
		})
	}
}

func TestParse_RoundTripsDefault(t *testing.T) {
	data, err := json.Marshal(DefaultConfig().Plugins)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := cfg.FloatPrecision(); !ok || p != 10 {
		t.Errorf("FloatPrecision() = %d, %v; want 10, true", p, ok)
	}
	if cfg.Plugins[1].Params != nil {
		t.Error("bare plugin name decoded with params")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.json")
	if err := os.WriteFile(path, []byte(`["removeUselessDefs"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(cfg.Plugins) != 1 || cfg.Plugins[0].Name != RemoveUselessDefs {
		t.Errorf("plugins = %+v", cfg.Plugins)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile should fail for a missing file")
	}
}

func TestFloatPrecision(t *testing.T) {
	cfg := Config{Plugins: []Plugin{
		{Name: "a", Params: Params{"floatPrecision": 3}},
		{Name: "b"},
		{Name: "c", Params: Params{"floatPrecision": 5.0}},
		{Name: "d", Params: Params{"floatPrecision": 2.5}},
	}}
	if p, ok := cfg.FloatPrecision(); !ok || p != 5 {
		t.Errorf("FloatPrecision() = %d, %v; want 5, true", p, ok)
	}

	if _, ok := (Config{Plugins: []Plugin{{Name: "x"}}}).FloatPrecision(); ok {
		t.Error("FloatPrecision() should report unset")
	}
}

func TestModule(t *testing.T) {
	mod, err := DefaultConfig().Module()
	if err != nil {
		t.Fatal(err)
	}
	s := string(mod)
	if !strings.HasPrefix(s, "export default {") || !strings.HasSuffix(s, "};\n") {
		t.Errorf("unexpected module framing:\n%s", s)
	}
	for _, want := range []string{`"removeUselessDefs"`, `"name": "mergePaths"`, `"floatPrecision": 10`} {
		if !strings.Contains(s, want) {
			t.Errorf("module missing %s:\n%s", want, s)
		}
	}
}
