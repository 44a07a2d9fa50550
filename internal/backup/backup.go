// Package backup copies the catch log to one or more storage targets. The
// datastore writes a consistent snapshot file; the Manager checks disk
// space, stamps metadata and hands the file to every configured Target.
package backup

import (
	"context"
	"strings"
	"time"
)

// MetadataVersion is the version of the sidecar metadata format.
const MetadataVersion = 1

// MetadataSuffix is appended to a backup file name for its metadata sidecar.
const MetadataSuffix = ".meta.json"

// Target represents a destination where backups are stored
type Target interface {
	// Name returns the name of the target
	Name() string
	// Store copies the backup file at sourcePath with its metadata
	Store(ctx context.Context, sourcePath string, metadata *Metadata) error
	// List returns the stored backups, newest first
	List(ctx context.Context) ([]BackupInfo, error)
	// Delete removes the backup with the given metadata ID
	Delete(ctx context.Context, id string) error
	// Validate checks the target configuration without touching storage
	Validate() error
}

// Metadata describes one backup file.
type Metadata struct {
	Version    int       `json:"version"`
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	Timestamp  time.Time `json:"timestamp"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum"` // sha256, hex
	Database   string    `json:"database"` // sqlite or mysql
	AppVersion string    `json:"app_version,omitempty"`
}

// BackupInfo is a stored backup as reported by a target.
type BackupInfo struct {
	Metadata
	Target string `json:"target"`
}

// MetadataName returns the sidecar file name for a backup file.
func MetadataName(fileName string) string {
	return fileName + MetadataSuffix
}

// IsMetadataName reports whether name is a metadata sidecar.
func IsMetadataName(name string) bool {
	return strings.HasSuffix(name, MetadataSuffix)
}
