package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Preset is a named scene variant overriding a subset of the build and
// timing configuration. Zero-valued fields leave the base config
// untouched, so a preset only has to spell out what it changes.
type Preset struct {
	NodeCount         int     `yaml:"node_count"`
	CanvasWidth       float64 `yaml:"canvas_width"`
	CanvasHeight      float64 `yaml:"canvas_height"`
	Seed              int64   `yaml:"seed"`
	NetworkSpeed      float64 `yaml:"network_speed"`
	PacketSpeed       float64 `yaml:"packet_speed"`
	MaxDiscoveryEdges int     `yaml:"max_discovery_edges"`
	ReducedMotion     bool    `yaml:"reduced_motion"`
}

type presetFile struct {
	Presets map[string]Preset `yaml:"presets"`
}

// LoadPresets parses the scene presets file
func LoadPresets(path string) (map[string]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}

	var pf presetFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse presets file: %w", err)
	}
	if len(pf.Presets) == 0 {
		return nil, fmt.Errorf("presets file %s defines no presets", path)
	}
	return pf.Presets, nil
}

// applyTo overlays the preset's populated fields onto the config.
// Reduced motion can only be switched on by a preset, never off.
func (p Preset) applyTo(cfg *Config) {
	if p.NodeCount != 0 {
		cfg.NodeCount = p.NodeCount
	}
	if p.CanvasWidth != 0 {
		cfg.CanvasWidth = p.CanvasWidth
	}
	if p.CanvasHeight != 0 {
		cfg.CanvasHeight = p.CanvasHeight
	}
	if p.Seed != 0 {
		cfg.Seed = p.Seed
	}
	if p.NetworkSpeed != 0 {
		cfg.NetworkSpeed = p.NetworkSpeed
	}
	if p.PacketSpeed != 0 {
		cfg.PacketSpeed = p.PacketSpeed
	}
	if p.MaxDiscoveryEdges != 0 {
		cfg.MaxDiscoveryEdges = p.MaxDiscoveryEdges
	}
	if p.ReducedMotion {
		cfg.ReducedMotion = true
	}
}
