// Package config loads the gateway's YAML configuration. Scalar values
// support ${env://NAME} and ${file://path} interpolation so credentials can
// stay in the environment or in mounted secret files instead of the YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one gateway instance: where to listen, which origin
// bucket to expose, and the credentials used to sign origin requests.
type Config struct {
	Host Interpolated[string] `yaml:"host"`
	Port Interpolated[string] `yaml:"port"`

	Endpoint  Interpolated[string] `yaml:"endpoint"`
	Bucket    Interpolated[string] `yaml:"bucket"`
	AccessKey Interpolated[string] `yaml:"accessKey"`
	SecretKey Interpolated[string] `yaml:"secretKey"`
	Region    Interpolated[string] `yaml:"region"`

	Policy Interpolated[string] `yaml:"policy"`
	CAFile Interpolated[string] `yaml:"caFile"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
