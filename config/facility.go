package config

import (
	"fmt"
	"os"

	"coopwatch/models"

	"gopkg.in/yaml.v3"
)

// FacilityFile seeds the in-memory store for local runs
type FacilityFile struct {
	LotStart   string                                    `yaml:"lot_start"`
	Devices    []models.Device                           `yaml:"devices"`
	Thresholds map[models.AlertKind]models.ThresholdTable `yaml:"thresholds"`
	// Daily water totals in litres keyed by day (2006-01-02)
	Water map[string]float64 `yaml:"water"`
}

// LoadFacilityFile reads and validates a YAML facility description
func LoadFacilityFile(path string) (*FacilityFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read facility file: %w", err)
	}
	return ParseFacility(raw)
}

// ParseFacility decodes a facility description
func ParseFacility(raw []byte) (*FacilityFile, error) {
	var f FacilityFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse facility file: %w", err)
	}
	if f.LotStart != "" {
		if _, err := models.ParseDayKey(f.LotStart); err != nil {
			return nil, fmt.Errorf("lot_start: %w", err)
		}
	}
	for day := range f.Water {
		if _, err := models.ParseDayKey(day); err != nil {
			return nil, fmt.Errorf("water: %w", err)
		}
	}
	seen := make(map[string]bool, len(f.Devices))
	for _, d := range f.Devices {
		if d.ID == "" {
			return nil, fmt.Errorf("device without id")
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("duplicate device id %q", d.ID)
		}
		seen[d.ID] = true
	}
	return &f, nil
}
