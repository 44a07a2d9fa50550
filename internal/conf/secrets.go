package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// maxSecretFileSize caps secret file reads; secrets are tokens, not documents
	maxSecretFileSize = 64 * 1024

	// secretFilePrefix marks a value that names a file holding the secret,
	// e.g. "file:/run/secrets/weather_key"
	secretFilePrefix = "file:"
)

// ExpandSecret resolves a credential value. Supported forms:
//
//	"literal"                 returned as is
//	"${VAR}" / "${VAR:-def}"  environment expansion, def used when VAR is unset
//	"file:/path/to/secret"    file contents with trailing newlines trimmed
func ExpandSecret(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if path, ok := strings.CutPrefix(value, secretFilePrefix); ok {
		return readSecretFile(path)
	}

	var missing []string
	expanded := os.Expand(value, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if v := os.Getenv(name); v != "" {
			return v
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}

func readSecretFile(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret file not found: %s", cleanPath)
		}
		return "", fmt.Errorf("failed to stat secret file %s: %w", cleanPath, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret path is not a regular file: %s", cleanPath)
	}
	if info.Size() > maxSecretFileSize {
		return "", fmt.Errorf("secret file too large (max %d bytes): %s", maxSecretFileSize, cleanPath)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return "", fmt.Errorf("failed to read secret file %s: %w", cleanPath, err)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fmt.Errorf("secret file is empty: %s", cleanPath)
	}
	return secret, nil
}

// expandSecrets resolves every credential field in place. A value that fails
// to resolve is left as written so validation can report it.
func expandSecrets(s *Settings) {
	fields := []*string{
		&s.Weather.APIKey,
		&s.Database.MySQL.Password,
		&s.MQTT.Password,
		&s.Telemetry.SentryDSN,
	}
	for _, f := range fields {
		if resolved, err := ExpandSecret(*f); err == nil {
			*f = resolved
		}
	}
	for i := range s.Backup.Targets {
		for _, key := range []string{"password", "secret_key", "access_key"} {
			if v, ok := s.Backup.Targets[i].Settings[key]; ok {
				if resolved, err := ExpandSecret(v); err == nil {
					s.Backup.Targets[i].Settings[key] = resolved
				}
			}
		}
	}
}
