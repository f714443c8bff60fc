package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/cwbudde/ssimgo/internal/ssim"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Log    LogConfig
}

type ServerConfig struct {
	Addr        string // defaults to :8080
	MaxUploadMB int    // defaults to 32
}

type StoreConfig struct {
	DataDir string // defaults to ./data
}

type LogConfig struct {
	Level string // debug, info, warn, error; defaults to info
}

// LoadDotEnv loads a .env file if present. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        envString("SSIM_ADDR", ":8080"),
			MaxUploadMB: envInt("SSIM_MAX_UPLOAD_MB", 32),
		},
		Store: StoreConfig{
			DataDir: envString("SSIM_DATA_DIR", "./data"),
		},
		Log: LogConfig{
			Level: envString("SSIM_LOG_LEVEL", "info"),
		},
	}
}

// Preset is the YAML form of ssim.Options. Absent keys stay unset.
type Preset struct {
	Exponents []float64 `yaml:"exponents"`
	Constants []float64 `yaml:"constants"`
	Radius    *float64  `yaml:"radius"`
}

// LoadPreset reads a YAML parameter preset from path.
func LoadPreset(path string) (ssim.Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ssim.Options{}, fmt.Errorf("failed to read preset: %w", err)
	}
	return ParsePreset(data)
}

// ParsePreset decodes YAML preset bytes and validates the values.
func ParsePreset(data []byte) (ssim.Options, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return ssim.Options{}, fmt.Errorf("failed to parse preset: %w", err)
	}
	return p.Options()
}

// Options converts the preset into engine options.
func (p Preset) Options() (ssim.Options, error) {
	var opts ssim.Options
	var err error
	if opts.Exponents, err = Triple("exponents", p.Exponents); err != nil {
		return ssim.Options{}, err
	}
	if opts.Constants, err = Triple("constants", p.Constants); err != nil {
		return ssim.Options{}, err
	}
	opts.Radius = p.Radius
	if err := opts.Validate(); err != nil {
		return ssim.Options{}, err
	}
	return opts, nil
}

// Triple converts a 3-element list into the fixed-size form used by
// ssim.Options. A nil list yields nil.
func Triple(name string, v []float64) (*[3]float64, error) {
	if v == nil {
		return nil, nil
	}
	if len(v) != 3 {
		return nil, fmt.Errorf("%s: expected 3 values, got %d", name, len(v))
	}
	return &[3]float64{v[0], v[1], v[2]}, nil
}

// Merge overlays the non-nil fields of override onto base.
func Merge(base, override ssim.Options) ssim.Options {
	if override.Exponents != nil {
		base.Exponents = override.Exponents
	}
	if override.Constants != nil {
		base.Constants = override.Constants
	}
	if override.Radius != nil {
		base.Radius = override.Radius
	}
	return base
}
