package style

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wegman-software/osm2voxel-go/internal/raster"
)

// Config describes which ways are indexed and how each class is drawn
type Config struct {
	// Index lists the tag keys ways are indexed under (e.g. building, highway)
	Index []string `yaml:"index,omitempty"`
	// Background is the canvas color before any feature is drawn
	Background string `yaml:"background,omitempty"`
	// Areas are drawn first, as filled polygons with an outline
	Areas []AreaClass `yaml:"areas,omitempty"`
	// Lines are drawn over areas as strokes
	Lines []LineClass `yaml:"lines,omitempty"`
	// Materials names the block used for each quantized class
	Materials Materials `yaml:"materials,omitempty"`
	// Filter restricts which ways are ingested at all
	Filter *FilterConfig `yaml:"filter,omitempty"`
}

// AreaClass is a filled feature type
type AreaClass struct {
	Type         string  `yaml:"type"`
	Fill         string  `yaml:"fill"`
	Outline      string  `yaml:"outline"`
	OutlineWidth float64 `yaml:"outline_width,omitempty"`
}

// LineClass is a stroked feature type
type LineClass struct {
	Type   string `yaml:"type"`
	Stroke string `yaml:"stroke"`
	// Width in pixels; 0 uses the line width given on the command line
	Width float64 `yaml:"width,omitempty"`
}

// Materials are Minecraft block ids per quantized class
type Materials struct {
	Background string `yaml:"background,omitempty"`
	Area       string `yaml:"area,omitempty"`
	Line       string `yaml:"line,omitempty"`
	Fallback   string `yaml:"fallback,omitempty"`
}

// FilterConfig defines tag rules a way must satisfy to be ingested
type FilterConfig struct {
	// Include specifies which tag keys/values to include
	// If empty, all tags are included (no filtering)
	Include map[string][]string `yaml:"include,omitempty"`
	// Exclude specifies which tag keys/values to exclude
	// Applied after include rules
	Exclude map[string][]string `yaml:"exclude,omitempty"`
	// RequireAny specifies that at least one of these tags must be present
	RequireAny []string `yaml:"require_any,omitempty"`
}

// DefaultConfig returns the classic palette: red buildings with a green
// outline and white roads on black
func DefaultConfig() *Config {
	return &Config{
		Index:      []string{"building", "highway", "water"},
		Background: "#000000",
		Areas: []AreaClass{
			{Type: "building", Fill: "#ff0000", Outline: "#00ff00", OutlineWidth: 1},
		},
		Lines: []LineClass{
			{Type: "highway", Stroke: "#ffffff"},
		},
		Materials: Materials{
			Background: "minecraft:grass_block",
			Area:       "minecraft:oak_planks",
			Line:       "minecraft:coal_block",
			Fallback:   "minecraft:cobblestone",
		},
	}
}

// LoadConfig loads a style file, filling unset fields from the defaults
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read style file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses style YAML, filling unset fields from the defaults
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse style YAML: %w", err)
	}

	def := DefaultConfig()
	if len(cfg.Index) == 0 {
		cfg.Index = def.Index
	}
	if cfg.Background == "" {
		cfg.Background = def.Background
	}
	if cfg.Areas == nil {
		cfg.Areas = def.Areas
	}
	if cfg.Lines == nil {
		cfg.Lines = def.Lines
	}
	if cfg.Materials.Background == "" {
		cfg.Materials.Background = def.Materials.Background
	}
	if cfg.Materials.Area == "" {
		cfg.Materials.Area = def.Materials.Area
	}
	if cfg.Materials.Line == "" {
		cfg.Materials.Line = def.Materials.Line
	}
	if cfg.Materials.Fallback == "" {
		cfg.Materials.Fallback = def.Materials.Fallback
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks colors parse and that no color serves two classes,
// since the quantizer matches colors exactly
func (c *Config) Validate() error {
	roles := make(map[raster.Color]string)
	claim := func(hex, role string) error {
		col, err := raster.ParseColor(hex)
		if err != nil {
			return fmt.Errorf("%s: %w", role, err)
		}
		if prev, ok := roles[col]; ok && classOf(prev) != classOf(role) {
			return fmt.Errorf("color %s used by both %s and %s", col, prev, role)
		}
		roles[col] = role
		return nil
	}

	if err := claim(c.Background, "background"); err != nil {
		return err
	}
	for _, a := range c.Areas {
		if a.Type == "" {
			return fmt.Errorf("area class without type")
		}
		if err := claim(a.Fill, "area "+a.Type+" fill"); err != nil {
			return err
		}
		if err := claim(a.Outline, "line "+a.Type+" outline"); err != nil {
			return err
		}
	}
	for _, l := range c.Lines {
		if l.Type == "" {
			return fmt.Errorf("line class without type")
		}
		if err := claim(l.Stroke, "line "+l.Type+" stroke"); err != nil {
			return err
		}
	}
	return nil
}

// classOf returns the first word of a role: background, area or line
func classOf(role string) string {
	for i := 0; i < len(role); i++ {
		if role[i] == ' ' {
			return role[:i]
		}
	}
	return role
}

// Types returns the type tags a way with these tags is indexed under,
// in the order of the Index list
func (c *Config) Types(tags map[string]string) []string {
	var types []string
	for _, key := range c.Index {
		if _, ok := tags[key]; ok {
			types = append(types, key)
		}
	}
	return types
}

// Filter checks if tags match the filter configuration
type Filter struct {
	cfg *FilterConfig
}

// NewFilter creates a filter from configuration
func NewFilter(cfg *FilterConfig) *Filter {
	if cfg == nil {
		return &Filter{cfg: &FilterConfig{}}
	}
	return &Filter{cfg: cfg}
}

// Match checks if the given tags match the filter rules
// Returns true if the way should be ingested
func (f *Filter) Match(tags map[string]string) bool {
	if len(f.cfg.RequireAny) > 0 {
		found := false
		for _, key := range f.cfg.RequireAny {
			if _, ok := tags[key]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(f.cfg.Include) > 0 && !matchesAny(tags, f.cfg.Include) {
		return false
	}

	if len(f.cfg.Exclude) > 0 && matchesAny(tags, f.cfg.Exclude) {
		return false
	}

	return true
}

// matchesAny reports whether any rule matches; a rule with no values matches any value
func matchesAny(tags map[string]string, rules map[string][]string) bool {
	for key, values := range rules {
		tagValue, ok := tags[key]
		if !ok {
			continue
		}
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == tagValue || v == "*" {
				return true
			}
		}
	}
	return false
}

// HasFilter returns true if filtering is enabled
func (f *Filter) HasFilter() bool {
	return len(f.cfg.Include) > 0 || len(f.cfg.Exclude) > 0 || len(f.cfg.RequireAny) > 0
}
