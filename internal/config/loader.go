package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix is stripped from environment variables before mapping.
	EnvPrefix = "ASSESSD_"
)

// nestedGroups are config keys whose children are themselves structs.
// Env vars for these split one level deeper:
//
//	ASSESSD_RERANKER_WEIGHTS_TRAINING -> reranker.weights.training
var nestedGroups = map[string]struct{}{
	"reranker.weights": {},
	"catalog.qdrant":   {},
}

// Load loads configuration from a YAML file, then overrides with environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ASSESSD_SERVER_PORT, ASSESSD_EMBEDDINGS_API_KEY, etc.)
//  2. YAML config file
//  3. Default()
//
// Layers merge per key, so an explicit zero in the file or environment
// overrides a non-zero default.
//
// When configPath is empty, ~/.config/assessd/config.yaml is used if it exists.
// A missing default file is not an error; a missing explicit file is.
//
// Config files larger than 1MB, or writable by group or others, are rejected.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	explicit := configPath != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			configPath = filepath.Join(home, ".config", "assessd", "config.yaml")
		}
	}

	if configPath != "" {
		content, err := readConfigFile(configPath)
		switch {
		case err == nil:
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
			}
		case os.IsNotExist(err) && !explicit:
		default:
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps an environment variable name to a koanf key.
//
//	ASSESSD_SERVER_PORT          -> server.port
//	ASSESSD_EMBEDDINGS_API_KEY   -> embeddings.api_key
//	ASSESSD_RERANKER_WEIGHTS_TYPE -> reranker.weights.type
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	key := parts[0] + "." + parts[1]

	for group := range nestedGroups {
		if strings.HasPrefix(key, group+"_") {
			return group + "." + strings.TrimPrefix(key, group+"_")
		}
	}
	return key
}

// readConfigFile opens the file once and validates it through the open
// descriptor to avoid a stat/read race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

func validateConfigFileProperties(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path is not a regular file")
	}

	// The embedding API key may live here.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0022 != 0 {
		return fmt.Errorf("insecure config file permissions: %v (must not be group or world writable)", info.Mode().Perm())
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
