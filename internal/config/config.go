package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.01
	DefaultSteps      = 300
	DefaultActors     = 256
	DefaultRadius     = 0.5
	DefaultSpread     = 50.0
	DefaultDamping    = 0.01
	DefaultSleepSpeed = 0.05
	DefaultChunkSize  = 64
)

type Config struct {
	Workers     int         `yaml:"workers"`
	Diagnostics bool        `yaml:"diagnostics"`
	Dt          float64     `yaml:"dt"`
	Steps       int         `yaml:"steps"`
	Scene       SceneConfig `yaml:"scene"`
}

type SceneConfig struct {
	Actors     int        `yaml:"actors"`
	Radius     float64    `yaml:"radius"`
	Spread     float64    `yaml:"spread"`
	Gravity    [3]float64 `yaml:"gravity"`
	Damping    float64    `yaml:"damping"`
	SleepSpeed float64    `yaml:"sleep_speed"`
	ChunkSize  int        `yaml:"chunk_size"`
	Seed       int64      `yaml:"seed"`
}

func DefaultConfig() *Config {
	return &Config{
		Workers: 0, // 0 selects GOMAXPROCS
		Dt:      DefaultDt,
		Steps:   DefaultSteps,
		Scene: SceneConfig{
			Actors:     DefaultActors,
			Radius:     DefaultRadius,
			Spread:     DefaultSpread,
			Gravity:    [3]float64{0, -9.81, 0},
			Damping:    DefaultDamping,
			SleepSpeed: DefaultSleepSpeed,
			ChunkSize:  DefaultChunkSize,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %f", c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Steps)
	}
	if c.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", c.Workers)
	}
	if c.Scene.Actors < 0 {
		return fmt.Errorf("config: actors must not be negative, got %d", c.Scene.Actors)
	}
	if c.Scene.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Scene.ChunkSize)
	}
	return nil
}
