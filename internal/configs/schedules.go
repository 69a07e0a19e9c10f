package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Schedule struct {
	Name     string         `yaml:"name"`
	Cron     string         `yaml:"cron"`
	Type     string         `yaml:"type"`
	Priority *int           `yaml:"priority"`
	Approved bool           `yaml:"approved"`
	Run      bool           `yaml:"run"`
	Config   map[string]any `yaml:"config"`
}

type scheduleFile struct {
	Schedules []Schedule `yaml:"schedules"`
}

func LoadSchedules(path string) ([]Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedules file: %w", err)
	}
	return ParseSchedules(raw)
}

func ParseSchedules(raw []byte) ([]Schedule, error) {
	var file scheduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schedules: %w", err)
	}

	for i, s := range file.Schedules {
		if s.Name == "" || s.Type == "" || s.Cron == "" {
			return nil, fmt.Errorf("schedule #%d: name, type and cron are required", i+1)
		}
	}
	return file.Schedules, nil
}
