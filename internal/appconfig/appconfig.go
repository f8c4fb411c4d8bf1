// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"
	// DefaultAPIURL is the backend base URL used when neither config nor environment set one.
	DefaultAPIURL = "http://localhost:8000"
	// DefaultCloudModel names the fixed cloud pane. The backend always streams this model.
	DefaultCloudModel = "OpenAI GPT-4.1"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	// defaultLogFile is used when logFile is left empty.
	defaultLogFile = "medgen.log"
)

// ErrNoConfig is returned by Load when no configuration file exists.
var ErrNoConfig = errors.New("no configuration file found")

// DefaultUploadExtensions mirrors the extensions the backend's /api/upload accepts.
var DefaultUploadExtensions = []string{".txt", ".md", ".csv"}

// Config represents the top-level application configuration.
type Config struct {
	APIURL             string   `json:"apiURL,omitempty" mapstructure:"apiURL"`
	CloudModel         string   `json:"cloudModel,omitempty" mapstructure:"cloudModel"`
	LocalModels        []string `json:"localModels,omitempty" mapstructure:"localModels"`
	Backend            string   `json:"backend,omitempty" mapstructure:"backend"`
	TimeoutSeconds     int      `json:"timeout,omitempty" mapstructure:"timeout"`
	UploadExtensions   []string `json:"uploadExtensions,omitempty" mapstructure:"uploadExtensions"`
	Evaluate           *bool    `json:"evaluate,omitempty" mapstructure:"evaluate"`
	Debug              bool     `json:"debug" mapstructure:"debug"`
	JSONMode           bool     `json:"jsonMode" mapstructure:"jsonMode"`
	LogFile            string   `json:"logFile,omitempty" mapstructure:"logFile"`
	ExportPath         string   `json:"export,omitempty" mapstructure:"export"`
	ExportMarkdownPath string   `json:"exportMarkdown,omitempty" mapstructure:"exportMarkdown"`
	ExportYAMLPath     string   `json:"exportYAML,omitempty" mapstructure:"exportYAML"`
	ConfigPath         string   `json:"-" mapstructure:"-"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BaseURL returns the backend base URL without a trailing slash.
func (c Config) BaseURL() string {
	url := strings.TrimSpace(c.APIURL)
	if url == "" {
		url = DefaultAPIURL
	}
	return strings.TrimRight(url, "/")
}

// CloudModelName returns the identifier of the fixed cloud pane.
func (c Config) CloudModelName() string {
	if name := strings.TrimSpace(c.CloudModel); name != "" {
		return name
	}
	return DefaultCloudModel
}

// AllowedExtensions returns the lower-cased upload whitelist, each entry starting with a dot.
func (c Config) AllowedExtensions() []string {
	if len(c.UploadExtensions) == 0 {
		return append([]string(nil), DefaultUploadExtensions...)
	}
	out := make([]string, 0, len(c.UploadExtensions))
	for _, ext := range c.UploadExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

// EvaluationEnabled reports whether the evaluation request should follow a finished run.
func (c Config) EvaluationEnabled() bool {
	if c.Evaluate == nil {
		return true
	}
	return *c.Evaluate
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return defaultLogFile
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("%w (searched %q and %q)", ErrNoConfig, DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("%w at %q", ErrNoConfig, path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	if err := validateDocument(data); err != nil {
		return Config{}, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}

	return config, nil
}
