package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// maxConfigSize caps the size of a config file.
const maxConfigSize = 1 * 1024 * 1024

// Load reads a JSON or JSONC (comments and trailing commas allowed) config file.
// Fields omitted from the file keep their Default values; unknown fields are rejected.
//
// Parameters:
//   - path: a .json, .jsonc or .hujson file
//
// Returns:
//   - Config: the loaded and validated config
//   - error: error if the file cannot be read, parsed or validated
func Load(path string) (Config, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".json", ".jsonc", ".hujson":
	default:
		return Config{}, fmt.Errorf("config file must have a .json, .jsonc or .hujson extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigSize {
		return Config{}, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSONC config data on top of Default and validates the result.
//
// Parameters:
//   - data: the JSON or JSONC document
//
// Returns:
//   - Config: the decoded config
//   - error: error if the document is malformed or fails validation
func Parse(data []byte) (Config, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(std))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the config as indented JSON.
//
// Returns:
//   - []byte: the JSON document
//   - error: error if encoding fails
func (c *Config) Marshal() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
