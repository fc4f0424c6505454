package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tbxark/formfiller/types"
)

type Config struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	Lang    string `yaml:"lang"`
	// SubmissionsDir receives one JSON file per completed registration.
	SubmissionsDir string `yaml:"submissions_dir"`
	// Fields replaces the built-in registration form when set.
	Fields []types.FieldSpec `yaml:"fields"`
}

func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(file))
	dec.KnownFields(true)
	var conf Config
	if err := dec.Decode(&conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if conf.Model == "" {
		conf.Model = "gpt-4o-mini"
	}
	if conf.SubmissionsDir == "" {
		conf.SubmissionsDir = "registrations"
	}
	if len(conf.Fields) == 0 {
		conf.Fields = registrationFields
	}
	return &conf, nil
}
