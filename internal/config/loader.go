package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// API key environment variables, in lookup order.
const (
	EnvAPIKey         = "GEMINI_API_KEY"
	EnvFallbackAPIKey = "API_KEY"
)

// Load reads the YAML configuration file at path, applies defaults and
// validates the result. An empty path yields the defaults. The API key is
// taken from the environment.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
		if err := Validate(cfg); err != nil {
			return nil, err
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()

		cfg, err = LoadFromReader(f)
		if err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	cfg.APIKey = LoadAPIKey()
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. An empty document is a valid config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadAPIKey loads .env from the working directory if there is one and
// returns GEMINI_API_KEY, falling back to API_KEY. Variables already set in
// the environment win over .env.
func LoadAPIKey() string {
	_ = godotenv.Load()

	if key := os.Getenv(EnvAPIKey); key != "" {
		return key
	}
	return os.Getenv(EnvFallbackAPIKey)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Audio.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audio.backend %q is invalid; valid values: miniaudio, portaudio", cfg.Audio.Backend))
	}
	if cfg.Audio.FrameSize < 0 || cfg.Audio.FrameSize&(cfg.Audio.FrameSize-1) != 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be a positive power of two", cfg.Audio.FrameSize))
	}
	if g := cfg.Audio.InputGain; g != nil && (*g < 0 || *g > 4) {
		errs = append(errs, fmt.Errorf("audio.input_gain %.2f is out of range [0, 4]", *g))
	}
	if g := cfg.Audio.OutputGain; g != nil && (*g < 0 || *g > 4) {
		errs = append(errs, fmt.Errorf("audio.output_gain %.2f is out of range [0, 4]", *g))
	}

	return errors.Join(errs...)
}
