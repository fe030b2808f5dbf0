package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-docstore/internal/layering"
	"github.com/goliatone/go-docstore/pkg/storage"
)

// Config is the file form of the adapter options. Capabilities that cannot
// be expressed in a file (ciphers, validators, hooks) stay functional
// options.
type Config struct {
	Security SecurityConfig `yaml:"security" json:"security"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Activity ActivityConfig `yaml:"activity" json:"activity"`
}

// SecurityConfig mirrors the security option block.
type SecurityConfig struct {
	EnforceEncryption       bool  `yaml:"enforce_encryption" json:"enforce_encryption"`
	AllowPlaintextFallback  bool  `yaml:"allow_plaintext_fallback" json:"allow_plaintext_fallback"`
	ValidateData            *bool `yaml:"validate_data" json:"validate_data"`
	StrictPlaintext         bool  `yaml:"strict_plaintext" json:"strict_plaintext"`
	DisallowUnknownFields   bool  `yaml:"disallow_unknown_fields" json:"disallow_unknown_fields"`
	StructValidation        bool  `yaml:"struct_validation" json:"struct_validation"`
	PropagateCallbackErrors bool  `yaml:"propagate_callback_errors" json:"propagate_callback_errors"`
	CreateBackups           bool  `yaml:"create_backups" json:"create_backups"`
	MaxBackups              int   `yaml:"max_backups" json:"max_backups"`
}

// StorageConfig selects the OS storage root. Path wins over Directory.
type StorageConfig struct {
	Directory    string `yaml:"directory" json:"directory"`
	Path         string `yaml:"path" json:"path"`
	Subdirectory string `yaml:"subdirectory" json:"subdirectory"`
}

// ActivityConfig sets the defaults stamped on activity events.
type ActivityConfig struct {
	Channel  string `yaml:"channel" json:"channel"`
	ActorID  string `yaml:"actor_id" json:"actor_id"`
	TenantID string `yaml:"tenant_id" json:"tenant_id"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	validate := true
	return Config{
		Security: SecurityConfig{
			ValidateData: &validate,
			MaxBackups:   DefaultMaxBackups,
		},
		Storage: StorageConfig{
			Directory: string(storage.DirectoryData),
		},
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON (.json, .jsonc; comments and
// trailing commas allowed) file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("docstore: read config %s: %w", path, err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return Config{}, fmt.Errorf("docstore: parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes data in the given format ("yaml", "yml", "json" or
// "jsonc") on top of DefaultConfig. Unknown keys are rejected.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	case "json", "jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", format)
	}
	if cfg.Security.MaxBackups < 0 {
		return Config{}, fmt.Errorf("max_backups must not be negative, got %d", cfg.Security.MaxBackups)
	}
	if _, err := storage.ParseDirectory(cfg.Storage.Directory); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigLayers merges several config files, later paths overriding
// earlier ones key by key (for example a system policy followed by a project
// override), and decodes the result on top of DefaultConfig.
func LoadConfigLayers(paths ...string) (Config, error) {
	layers := make([]map[string]any, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		doc, err := readConfigDocument(paths[i])
		if err != nil {
			return Config{}, err
		}
		layers = append(layers, doc)
	}
	merged, err := json.Marshal(layering.Maps(layers...))
	if err != nil {
		return Config{}, fmt.Errorf("docstore: merge config layers: %w", err)
	}
	cfg, err := ParseConfig(merged, "json")
	if err != nil {
		return Config{}, fmt.Errorf("docstore: parse merged config: %w", err)
	}
	return cfg, nil
}

// readConfigDocument decodes a config file into a generic document.
func readConfigDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: read config %s: %w", path, err)
	}
	doc := map[string]any{}
	switch format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."); format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("docstore: parse config %s: %w", path, err)
		}
	case "json", "jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return nil, fmt.Errorf("docstore: parse config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("docstore: parse config %s: unsupported config format %q", path, format)
	}
	return doc, nil
}

// FileSystem opens the OS filesystem described by the storage block.
func (c StorageConfig) FileSystem() (*storage.OS, error) {
	var opts []storage.OSOption
	if c.Subdirectory != "" {
		opts = append(opts, storage.WithSubdirectory(c.Subdirectory))
	}
	if path := strings.TrimSpace(c.Path); path != "" {
		return storage.NewOSAt(path, opts...)
	}
	dir, err := storage.ParseDirectory(c.Directory)
	if err != nil {
		return nil, err
	}
	return storage.NewOS(dir, opts...)
}

// WithConfig applies the file configuration. Later options override it.
func WithConfig(c Config) Option {
	return func(cfg *config) {
		sec := c.Security
		cfg.enforceEncryption = sec.EnforceEncryption
		cfg.allowPlaintextFallback = sec.AllowPlaintextFallback
		if sec.ValidateData != nil {
			cfg.validateData = *sec.ValidateData
		}
		cfg.strictPlaintext = sec.StrictPlaintext
		cfg.disallowUnknownFields = sec.DisallowUnknownFields
		if sec.StructValidation && cfg.structValidator == nil {
			WithStructValidation()(cfg)
		}
		cfg.propagateCallbackErrors = sec.PropagateCallbackErrors
		cfg.createBackups = sec.CreateBackups
		if sec.MaxBackups > 0 {
			cfg.maxBackups = sec.MaxBackups
		}

		if c.Activity.Channel != "" {
			cfg.activity.Channel = c.Activity.Channel
		}
		if c.Activity.ActorID != "" {
			cfg.activity.ActorID = c.Activity.ActorID
		}
		if c.Activity.TenantID != "" {
			cfg.activity.TenantID = c.Activity.TenantID
		}
	}
}
