// Package config loads runtime settings from the environment and deck
// presets from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sky-flux/cardsched"
	"gopkg.in/yaml.v3"
)

// Config is read from CARDSCHED_-prefixed environment variables.
type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"collection.db"`
	PresetsFile string `envconfig:"PRESETS_FILE"`

	LogMode  string `envconfig:"LOG_MODE" default:"dev"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	// Created is when the collection was created; day numbers count from it.
	Created      time.Time `envconfig:"CREATED" default:"2024-01-01T00:00:00Z"`
	RolloverHour int       `envconfig:"ROLLOVER_HOUR" default:"4"`

	FSRS                   bool `envconfig:"FSRS" default:"true"`
	FSRSShortTermWithSteps bool `envconfig:"FSRS_SHORT_TERM_WITH_STEPS" default:"false"`
	DisableFuzzing         bool `envconfig:"DISABLE_FUZZING" default:"false"`

	TrainEpochs    int `envconfig:"TRAIN_EPOCHS" default:"5"`
	TrainBatchSize int `envconfig:"TRAIN_BATCH_SIZE" default:"512"`

	// MetricsAddr, when set, serves Prometheus metrics on this address.
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// Load reads the environment.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("CARDSCHED", &c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks value ranges envconfig can't express.
func (c *Config) Validate() error {
	if c.RolloverHour < 0 || c.RolloverHour > 23 {
		return fmt.Errorf("config: ROLLOVER_HOUR %d out of range 0-23", c.RolloverHour)
	}
	if c.TrainEpochs < 1 || c.TrainBatchSize < 1 {
		return fmt.Errorf("config: TRAIN_EPOCHS and TRAIN_BATCH_SIZE must be positive")
	}
	return nil
}

// Presets is the content of a presets file.
type Presets struct {
	Configs []cardsched.DeckConfig
	Decks   []cardsched.Deck
}

type presetsFile struct {
	Presets []yaml.Node      `yaml:"presets"`
	Decks   []cardsched.Deck `yaml:"decks"`
}

// LoadPresets reads deck configs and decks from a YAML file. Fields a
// preset leaves out keep the values of cardsched.DefaultDeckConfig.
func LoadPresets(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePresets(data)
}

// ParsePresets is LoadPresets on in-memory YAML.
func ParsePresets(data []byte) (*Presets, error) {
	var f presetsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("presets: %w", err)
	}
	out := &Presets{Decks: f.Decks}
	ids := make(map[int64]bool, len(f.Presets))
	for i := range f.Presets {
		conf := cardsched.DefaultDeckConfig()
		if err := f.Presets[i].Decode(&conf); err != nil {
			return nil, fmt.Errorf("presets: line %d: %w", f.Presets[i].Line, err)
		}
		conf.Normalize()
		if err := conf.Validate(); err != nil {
			return nil, fmt.Errorf("presets: %q: %w", conf.Name, err)
		}
		if ids[conf.ID] {
			return nil, fmt.Errorf("presets: duplicate id %d", conf.ID)
		}
		ids[conf.ID] = true
		out.Configs = append(out.Configs, conf)
	}
	for _, d := range out.Decks {
		if !d.IsFiltered() && !ids[d.ConfigID] {
			return nil, fmt.Errorf("presets: deck %q uses unknown preset %d", d.Name, d.ConfigID)
		}
	}
	return out, nil
}
