// Package targets provides backup target implementations: a local
// directory, FTP, SFTP and S3-compatible object storage.
package targets

import (
	"encoding/json"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// Target type names used in backup.targets[].type.
const (
	TypeLocal = "local"
	TypeFTP   = "ftp"
	TypeSFTP  = "sftp"
	TypeS3    = "s3"
)

const defaultTimeout = 30 * time.Second

// FromSettings builds every enabled target in settings.Backup.Targets.
func FromSettings(settings *conf.Settings, log logger.Logger) ([]backup.Target, error) {
	var out []backup.Target
	for i, cfg := range settings.Backup.Targets {
		if !cfg.Enabled {
			continue
		}
		t, err := New(cfg, log)
		if err != nil {
			return nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryConfiguration).
				Context("target_index", i).
				Context("target_type", cfg.Type).
				Build()
		}
		out = append(out, t)
	}
	return out, nil
}

// New builds one target from its configuration.
func New(cfg conf.BackupTarget, log logger.Logger) (backup.Target, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	log = log.Module("backup")

	switch strings.ToLower(cfg.Type) {
	case TypeLocal:
		return NewLocalTargetFromMap(cfg.Settings, log)
	case TypeFTP:
		return NewFTPTargetFromMap(cfg.Settings, log)
	case TypeSFTP:
		return NewSFTPTargetFromMap(cfg.Settings, log)
	case TypeS3:
		return NewS3TargetFromMap(cfg.Settings, log)
	default:
		return nil, errors.Newf("unknown backup target type %q", cfg.Type).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// SettingsParser extracts typed values from a target's string settings. It
// collects errors so a constructor can report every problem at once.
type SettingsParser struct {
	component string
	settings  map[string]string
	errors    []string
}

// NewSettingsParser creates a parser; component prefixes error messages.
func NewSettingsParser(component string, settings map[string]string) *SettingsParser {
	return &SettingsParser{component: component, settings: settings}
}

func (p *SettingsParser) value(key string) (string, bool) {
	v, ok := p.settings[key]
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// RequireString extracts a required string value.
func (p *SettingsParser) RequireString(key string) string {
	if v, ok := p.value(key); ok {
		return v
	}
	p.errors = append(p.errors, p.component+": "+key+" is required")
	return ""
}

// OptionalString extracts an optional string value with a default.
func (p *SettingsParser) OptionalString(key, defaultVal string) string {
	if v, ok := p.value(key); ok {
		return v
	}
	return defaultVal
}

// OptionalInt extracts an optional int value with a default.
func (p *SettingsParser) OptionalInt(key string, defaultVal int) int {
	v, ok := p.value(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errors = append(p.errors, p.component+": "+key+" must be a number")
		return defaultVal
	}
	return n
}

// OptionalBool extracts an optional bool value with a default.
func (p *SettingsParser) OptionalBool(key string, defaultVal bool) bool {
	v, ok := p.value(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errors = append(p.errors, p.component+": "+key+" must be true or false")
		return defaultVal
	}
	return b
}

// OptionalDuration extracts an optional duration with a default.
func (p *SettingsParser) OptionalDuration(key string, defaultVal time.Duration) time.Duration {
	v, ok := p.value(key)
	if !ok {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errors = append(p.errors, p.component+": invalid "+key+" format")
		return defaultVal
	}
	return d
}

// OptionalPath extracts a slash separated path without trailing slashes.
func (p *SettingsParser) OptionalPath(key, defaultVal string) string {
	v, ok := p.value(key)
	if !ok {
		return defaultVal
	}
	if v == "/" {
		return v
	}
	return strings.TrimRight(v, "/")
}

// Error returns the collected problems, or nil.
func (p *SettingsParser) Error() error {
	if len(p.errors) == 0 {
		return nil
	}
	return errors.Newf("%s", strings.Join(p.errors, "; ")).
		Component("backup").
		Category(errors.CategoryConfiguration).
		Build()
}

func encodeMetadata(meta *backup.Metadata) ([]byte, error) {
	return json.MarshalIndent(meta, "", "  ")
}

func decodeMetadata(data []byte, target string) (backup.BackupInfo, error) {
	var meta backup.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return backup.BackupInfo{}, err
	}
	return backup.BackupInfo{Metadata: meta, Target: target}, nil
}

// remotePath joins slash separated remote path elements.
func remotePath(base, name string) string {
	if base == "" {
		return name
	}
	return path.Join(base, name)
}

func targetError(err error, target, op string) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryConnectivity).
		Context("target", target).
		Context("operation", op).
		Build()
}

func notFound(target, id string) error {
	return errors.Newf("backup %s not found on %s", id, target).
		Component("backup").
		Category(errors.CategoryNotFound).
		Context("target", target).
		Build()
}

// findByID returns the backup with the given metadata ID.
func findByID(infos []backup.BackupInfo, id string) (backup.BackupInfo, bool) {
	for _, info := range infos {
		if info.ID == id {
			return info, true
		}
	}
	return backup.BackupInfo{}, false
}
