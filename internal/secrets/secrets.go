// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and credentials from a directory of
// plain-text files and an optional dotenv file. Each file in the directory
// represents one secret: the filename is the key name and the file contents
// (trimmed) are the value. Dotenv keys are normalized to the same form, so
// ANTHROPIC_API_KEY and a file named anthropic-api-key are one secret.
//
// Known keys: anthropic-api-key, openai-api-key, semantic-scholar-api-key,
// slack-bot-token, postgres-dsn.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Key names.
const (
	AnthropicAPIKey       = "anthropic-api-key"
	OpenAIAPIKey          = "openai-api-key"
	SemanticScholarAPIKey = "semantic-scholar-api-key"
	SlackBotToken         = "slack-bot-token"
	PostgresDSN           = "postgres-dsn"
)

// Known lists every key the pipeline reads.
var Known = []string{AnthropicAPIKey, OpenAIAPIKey, SemanticScholarAPIKey, SlackBotToken, PostgresDSN}

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files produce a warning but do not abort.
func Load(dir string, logger zerolog.Logger) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn().Err(err).Str("secret", name).Msg("could not read secret")
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnvFile reads a dotenv file without touching the process
// environment. A missing file yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	out := make(map[string]string, len(vars))
	for k, v := range vars {
		if v = strings.TrimSpace(v); v != "" {
			out[Normalize(k)] = v
		}
	}
	return out, nil
}

// FromEnv returns the known keys set in the process environment, looked up
// by their upper-case underscore form (ANTHROPIC_API_KEY).
func FromEnv() map[string]string {
	out := make(map[string]string)
	for _, key := range Known {
		if v := strings.TrimSpace(os.Getenv(envName(key))); v != "" {
			out[key] = v
		}
	}
	return out
}

// Normalize maps ANTHROPIC_API_KEY to anthropic-api-key.
func Normalize(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "_", "-")
}

func envName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Merge layers sources left to right; later sources win.
func Merge(sources ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, src := range sources {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

// Names returns the key names of s without their values, for logging.
func Names(s map[string]string) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	return keys
}
