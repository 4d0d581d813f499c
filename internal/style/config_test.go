package style

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default style invalid: %v", err)
	}
	if !slices.Equal(cfg.Index, []string{"building", "highway", "water"}) {
		t.Errorf("Index = %v", cfg.Index)
	}
}

func TestParseConfigFillsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
lines:
  - type: railway
    stroke: "#808080"
    width: 2
materials:
  line: minecraft:rail
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if len(cfg.Lines) != 1 || cfg.Lines[0].Type != "railway" || cfg.Lines[0].Width != 2 {
		t.Errorf("Lines = %+v", cfg.Lines)
	}
	if len(cfg.Areas) != 1 || cfg.Areas[0].Type != "building" {
		t.Errorf("Areas should default to buildings, got %+v", cfg.Areas)
	}
	if cfg.Materials.Line != "minecraft:rail" {
		t.Errorf("Materials.Line = %q", cfg.Materials.Line)
	}
	if cfg.Materials.Area != "minecraft:oak_planks" {
		t.Errorf("Materials.Area = %q, want default", cfg.Materials.Area)
	}
	if cfg.Background != "#000000" {
		t.Errorf("Background = %q", cfg.Background)
	}
}

func TestParseConfigRejectsColorClash(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "fill equals background",
			yaml: "background: \"#ff0000\"\n",
		},
		{
			name: "stroke equals fill",
			yaml: "lines:\n  - type: highway\n    stroke: \"#ff0000\"\n",
		},
		{
			name: "bad hex",
			yaml: "background: \"#zzzzzz\"\n",
		},
		{
			name: "missing type",
			yaml: "lines:\n  - stroke: \"#123456\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOutlineMayShareLineColor(t *testing.T) {
	_, err := ParseConfig([]byte(`
areas:
  - type: building
    fill: "#ff0000"
    outline: "#ffffff"
lines:
  - type: highway
    stroke: "#ffffff"
`))
	if err != nil {
		t.Errorf("outline and line stroke quantize to the same class: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "style.yaml")
	if err := os.WriteFile(path, []byte("index: [building]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !slices.Equal(cfg.Index, []string{"building"}) {
		t.Errorf("Index = %v", cfg.Index)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestTypes(t *testing.T) {
	cfg := DefaultConfig()
	tags := map[string]string{"highway": "residential", "building": "yes", "name": "Rue"}
	if got := cfg.Types(tags); !slices.Equal(got, []string{"building", "highway"}) {
		t.Errorf("Types = %v", got)
	}
	if got := cfg.Types(map[string]string{"name": "x"}); got != nil {
		t.Errorf("Types = %v, want none", got)
	}
}

func TestFilterMatch(t *testing.T) {
	f := NewFilter(&FilterConfig{
		Include:    map[string][]string{"highway": {"primary", "residential"}, "building": nil},
		Exclude:    map[string][]string{"access": {"private"}},
		RequireAny: []string{"highway", "building"},
	})

	tests := []struct {
		name string
		tags map[string]string
		want bool
	}{
		{"included highway", map[string]string{"highway": "primary"}, true},
		{"other highway value", map[string]string{"highway": "footway"}, false},
		{"any building", map[string]string{"building": "house"}, true},
		{"excluded access", map[string]string{"highway": "residential", "access": "private"}, false},
		{"missing required", map[string]string{"water": "lake"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Match(tt.tags); got != tt.want {
				t.Errorf("Match(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}

	if !f.HasFilter() {
		t.Error("HasFilter should be true")
	}
	if NewFilter(nil).HasFilter() {
		t.Error("nil config should not filter")
	}
	if !NewFilter(nil).Match(map[string]string{}) {
		t.Error("nil config should match everything")
	}
}
