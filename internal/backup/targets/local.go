package targets

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

const (
	dirPermissions  = 0o700
	filePermissions = 0o600
)

// LocalTarget copies backups into a directory, e.g. a mounted USB drive or
// network share.
type LocalTarget struct {
	path string
	log  logger.Logger
}

// NewLocalTarget stores backups under dir.
func NewLocalTarget(dir string, log logger.Logger) (*LocalTarget, error) {
	t := &LocalTarget{path: dir, log: log}
	if t.log == nil {
		t.log = logger.NewDiscardLogger()
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewLocalTargetFromMap reads the "path" setting.
func NewLocalTargetFromMap(settings map[string]string, log logger.Logger) (*LocalTarget, error) {
	p := NewSettingsParser(TypeLocal, settings)
	dir := p.RequireString("path")
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewLocalTarget(dir, log)
}

func (t *LocalTarget) Name() string { return TypeLocal }

func (t *LocalTarget) Validate() error {
	if t.path == "" {
		return errors.Newf("local: path is required").
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if !filepath.IsAbs(t.path) {
		return errors.Newf("local: path must be absolute, got %q", t.path).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Store copies the file and then writes its metadata sidecar. Both writes
// go through a temp file and rename so a crash never leaves a partial copy
// under the final name.
func (t *LocalTarget) Store(ctx context.Context, sourcePath string, meta *backup.Metadata) error {
	if err := os.MkdirAll(t.path, dirPermissions); err != nil {
		return t.fileError(err, "create_dir")
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return t.fileError(err, "open_source")
	}
	defer src.Close()

	dest := filepath.Join(t.path, meta.FileName)
	err = atomicWriteFile(dest, func(f *os.File) error {
		_, err := io.Copy(f, &ctxReader{ctx: ctx, r: src})
		return err
	})
	if err != nil {
		return t.fileError(err, "copy")
	}

	data, err := encodeMetadata(meta)
	if err != nil {
		return t.fileError(err, "encode_metadata")
	}
	err = atomicWriteFile(filepath.Join(t.path, backup.MetadataName(meta.FileName)), func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
	if err != nil {
		_ = os.Remove(dest)
		return t.fileError(err, "write_metadata")
	}

	t.log.Debug("backup copied", logger.String("path", dest))
	return nil
}

// List reads every metadata sidecar in the directory. Sidecars that do not
// parse are skipped.
func (t *LocalTarget) List(ctx context.Context) ([]backup.BackupInfo, error) {
	entries, err := os.ReadDir(t.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, t.fileError(err, "list")
	}

	var infos []backup.BackupInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !backup.IsMetadataName(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.path, e.Name()))
		if err != nil {
			continue
		}
		info, err := decodeMetadata(data, t.Name())
		if err != nil {
			t.log.Warn("skipping unreadable backup metadata", logger.String("file", e.Name()), logger.Error(err))
			continue
		}
		infos = append(infos, info)
	}
	backup.SortNewestFirst(infos)
	return infos, nil
}

// Delete removes a backup and its sidecar.
func (t *LocalTarget) Delete(ctx context.Context, id string) error {
	infos, err := t.List(ctx)
	if err != nil {
		return err
	}
	info, ok := findByID(infos, id)
	if !ok {
		return notFound(t.Name(), id)
	}
	if err := os.Remove(filepath.Join(t.path, info.FileName)); err != nil && !os.IsNotExist(err) {
		return t.fileError(err, "delete")
	}
	if err := os.Remove(filepath.Join(t.path, backup.MetadataName(info.FileName))); err != nil && !os.IsNotExist(err) {
		return t.fileError(err, "delete_metadata")
	}
	return nil
}

func (t *LocalTarget) fileError(err error, op string) error {
	return errors.New(err).
		Component("backup").
		Category(errors.CategoryFileIO).
		Context("target", t.Name()).
		Context("operation", op).
		Context("path", t.path).
		Build()
}

// atomicWriteFile writes through a temp file in the target directory and
// renames it into place.
func atomicWriteFile(targetPath string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".tmp-"+filepath.Base(targetPath)+"-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(filePermissions); err != nil {
		return err
	}
	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, targetPath); err != nil {
		return err
	}
	success = true
	return nil
}

// ctxReader stops a copy once the context ends.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
