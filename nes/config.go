// ABOUTME: Tunable configuration for the next-edit pipeline, loadable from YAML.
// ABOUTME: DefaultConfig carries the constants the rest of the package assumes.

package nes

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// like "75ms" as well as integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*d = Duration(n)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultCursorMarker is the sentinel inserted into prompt text to mark the
// cursor position. It is stripped back out of model output unless the
// document itself already contained the literal sequence.
const DefaultCursorMarker = "<|cursor|>"

// Config holds the tuning knobs for edit-window planning, convergence, and
// retry behavior. Zero values are not usable; start from DefaultConfig.
type Config struct {
	// Model and Provider select the completion backend. An unknown model
	// resolves through the catalog to the provider's default.
	Model    string `yaml:"model"`
	Provider string `yaml:"provider"`

	// AreaRadius is the symmetric line radius of the area-around context
	// window. The edit window never extends past it.
	AreaRadius int `yaml:"area_radius"`

	// LinesAbove is the fixed number of lines above the cursor included in
	// the edit window when UseNonBlankAbove is off.
	LinesAbove int `yaml:"lines_above"`

	// UseNonBlankAbove switches the lines-above computation to the nearest
	// non-blank line heuristic.
	UseNonBlankAbove bool `yaml:"use_non_blank_above"`

	// LinesBelow is the fixed number of lines below the cursor included in
	// the edit window.
	LinesBelow int `yaml:"lines_below"`

	// RetryExpansion is added to LinesBelow on the expanded-window retry.
	RetryExpansion int `yaml:"retry_expansion"`

	// ExpandedRetryEnabled gates the zero-edit expanded-window retry.
	ExpandedRetryEnabled bool `yaml:"expanded_retry_enabled"`

	// NLinesToConverge closes an open edit region after this many
	// consecutive lines match the original. 0 disables the policy.
	NLinesToConverge int `yaml:"n_lines_to_converge"`

	// NSignificantLinesToConverge closes an open edit region after this
	// many consecutive non-blank matching lines. 0 disables the policy.
	NSignificantLinesToConverge int `yaml:"n_significant_lines_to_converge"`

	// EmitFastCursorLineChange emits a single-line edit at the cursor
	// immediately, before convergence evidence, when the first divergence
	// is on the cursor's own line.
	EmitFastCursorLineChange bool `yaml:"emit_fast_cursor_line_change"`

	// CursorMarker overrides DefaultCursorMarker.
	CursorMarker string `yaml:"cursor_marker"`

	// Debounce is awaited before issuing the network request.
	Debounce Duration `yaml:"debounce"`

	// ArtificialDelay is awaited before forwarding the first edit.
	ArtificialDelay Duration `yaml:"artificial_delay"`

	// Simulation skips debounce and artificial delay entirely. Set in tests.
	Simulation bool `yaml:"simulation"`
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		AreaRadius:                  50,
		UseNonBlankAbove:            true,
		LinesBelow:                  15,
		RetryExpansion:              15,
		ExpandedRetryEnabled:        true,
		NLinesToConverge:            3,
		NSignificantLinesToConverge: 2,
		EmitFastCursorLineChange:    true,
		CursorMarker:                DefaultCursorMarker,
		Debounce:                    Duration(75 * time.Millisecond),
		ArtificialDelay:             Duration(25 * time.Millisecond),
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig, so partial
// files override only the keys they name.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Marker returns the effective cursor marker.
func (c Config) Marker() string {
	if c.CursorMarker != "" {
		return c.CursorMarker
	}
	return DefaultCursorMarker
}
