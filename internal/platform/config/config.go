package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SourceSysfs  = "sysfs"
	SourceStream = "stream"

	DefaultSavePeriod   = time.Minute
	DefaultPollInterval = time.Second
	DefaultSysfsPath    = "/sys/bus/iio/devices/iio:device0/in_steps_input"
	FileName            = "stepcounter.yaml"
)

type Config struct {
	DataDir    string
	DBPath     string
	LogPath    string
	SavePeriod time.Duration
	LogLevel   string
	Source     Source
}

type Source struct {
	Kind         string
	Path         string
	PollInterval time.Duration
}

type fileConfig struct {
	SavePeriod time.Duration `yaml:"save_period"`
	LogLevel   string        `yaml:"log_level"`
	Source     struct {
		Kind         string        `yaml:"kind"`
		Path         string        `yaml:"path"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"source"`
}

func New(dataDir string) (Config, error) {
	if dataDir == "" {
		return Config{}, fmt.Errorf("data dir is required")
	}
	return Config{
		DataDir:    dataDir,
		DBPath:     filepath.Join(dataDir, ".stepcounter", "steps.db"),
		LogPath:    filepath.Join(dataDir, ".stepcounter", "logs", "stepcounter.log"),
		SavePeriod: DefaultSavePeriod,
		LogLevel:   "info",
		Source: Source{
			Kind:         SourceSysfs,
			Path:         DefaultSysfsPath,
			PollInterval: DefaultPollInterval,
		},
	}, nil
}

// Load returns the defaults for dataDir overlaid with stepcounter.yaml
// when that file exists.
func Load(dataDir string) (Config, error) {
	cfg, err := New(dataDir)
	if err != nil {
		return Config{}, err
	}
	raw, err := os.ReadFile(filepath.Join(dataDir, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	file := fileConfig{}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if file.SavePeriod > 0 {
		cfg.SavePeriod = file.SavePeriod
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
	if file.Source.Kind != "" {
		cfg.Source.Kind = file.Source.Kind
		if file.Source.Kind == SourceStream {
			cfg.Source.Path = ""
		}
	}
	if file.Source.Path != "" {
		cfg.Source.Path = file.Source.Path
	}
	if file.Source.PollInterval > 0 {
		cfg.Source.PollInterval = file.Source.PollInterval
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Source.Kind {
	case SourceSysfs:
		if c.Source.Path == "" {
			return fmt.Errorf("sysfs source requires a path")
		}
	case SourceStream:
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.SavePeriod <= 0 {
		return fmt.Errorf("save period must be positive")
	}
	if c.Source.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	return nil
}
