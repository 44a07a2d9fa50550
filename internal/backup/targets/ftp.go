package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

const ftpTempPrefix = ".upload-"

// FTPTargetConfig holds the FTP connection settings.
type FTPTargetConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
	Timeout  time.Duration
}

// FTPTarget stores backups on an FTP server. Each operation opens its own
// connection.
type FTPTarget struct {
	config FTPTargetConfig
	log    logger.Logger
}

// NewFTPTarget creates an FTP target.
func NewFTPTarget(cfg FTPTargetConfig, log logger.Logger) (*FTPTarget, error) {
	if cfg.Port == 0 {
		cfg.Port = 21
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	t := &FTPTarget{config: cfg, log: log}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewFTPTargetFromMap reads host, port, username, password, path and timeout.
func NewFTPTargetFromMap(settings map[string]string, log logger.Logger) (*FTPTarget, error) {
	p := NewSettingsParser(TypeFTP, settings)
	cfg := FTPTargetConfig{
		Host:     p.RequireString("host"),
		Port:     p.OptionalInt("port", 21),
		Username: p.OptionalString("username", "anonymous"),
		Password: p.OptionalString("password", ""),
		BasePath: p.OptionalPath("path", "trolltrack"),
		Timeout:  p.OptionalDuration("timeout", defaultTimeout),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewFTPTarget(cfg, log)
}

func (t *FTPTarget) Name() string { return TypeFTP }

func (t *FTPTarget) Validate() error {
	var problems []string
	if t.config.Host == "" {
		problems = append(problems, "host is required")
	}
	if t.config.Port < 1 || t.config.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d", t.config.Port))
	}
	if len(problems) > 0 {
		return errors.Newf("ftp: %s", strings.Join(problems, "; ")).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func (t *FTPTarget) connect(ctx context.Context) (*ftp.ServerConn, error) {
	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	conn, err := ftp.Dial(addr,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(t.config.Timeout))
	if err != nil {
		return nil, targetError(err, t.Name(), "connect")
	}
	if err := conn.Login(t.config.Username, t.config.Password); err != nil {
		_ = conn.Quit()
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryUnauthorized).
			Context("target", t.Name()).
			Context("operation", "login").
			Build()
	}
	return conn, nil
}

func (t *FTPTarget) withConn(ctx context.Context, op func(*ftp.ServerConn) error) error {
	conn, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			t.log.Debug("ftp quit failed", logger.Error(err))
		}
	}()
	return op(conn)
}

// Store uploads the backup and its metadata, each to a temp name first.
func (t *FTPTarget) Store(ctx context.Context, sourcePath string, meta *backup.Metadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return targetError(err, t.Name(), "encode_metadata")
	}

	return t.withConn(ctx, func(conn *ftp.ServerConn) error {
		if err := t.makeDirs(conn, t.config.BasePath); err != nil {
			return err
		}

		f, err := os.Open(sourcePath)
		if err != nil {
			return targetError(err, t.Name(), "open_source")
		}
		defer f.Close()

		backupPath := remotePath(t.config.BasePath, meta.FileName)
		if err := t.atomicUpload(ctx, conn, &ctxReader{ctx: ctx, r: f}, backupPath); err != nil {
			return err
		}
		if err := t.atomicUpload(ctx, conn, bytes.NewReader(data), backup.MetadataName(backupPath)); err != nil {
			_ = conn.Delete(backupPath)
			return err
		}
		t.log.Debug("backup uploaded", logger.String("target", t.Name()), logger.String("path", backupPath))
		return nil
	})
}

func (t *FTPTarget) atomicUpload(ctx context.Context, conn *ftp.ServerConn, r io.Reader, dest string) error {
	tmp := path.Join(path.Dir(dest), fmt.Sprintf("%s%d", ftpTempPrefix, time.Now().UnixNano()))
	if err := conn.Stor(tmp, r); err != nil {
		_ = conn.Delete(tmp)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return targetError(err, t.Name(), "upload")
	}
	if err := conn.Rename(tmp, dest); err != nil {
		_ = conn.Delete(tmp)
		return targetError(err, t.Name(), "rename")
	}
	return nil
}

// makeDirs creates each element of dir, ignoring "already exists" replies.
func (t *FTPTarget) makeDirs(conn *ftp.ServerConn, dir string) error {
	if dir == "" || dir == "/" || dir == "." {
		return nil
	}
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for part := range strings.SplitSeq(strings.Trim(dir, "/"), "/") {
		current = path.Join(current, part)
		if err := conn.MakeDir(current); err != nil && !isExistsError(err) {
			return targetError(err, t.Name(), "mkdir")
		}
	}
	return nil
}

func isExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "exists") || strings.HasPrefix(msg, "550")
}

// List reads the metadata sidecars in the base directory.
func (t *FTPTarget) List(ctx context.Context) ([]backup.BackupInfo, error) {
	var infos []backup.BackupInfo
	err := t.withConn(ctx, func(conn *ftp.ServerConn) error {
		entries, err := conn.List(t.config.BasePath)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "no such file") {
				return nil
			}
			return targetError(err, t.Name(), "list")
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if e.Type != ftp.EntryTypeFile || !backup.IsMetadataName(e.Name) {
				continue
			}
			info, err := t.readMetadata(conn, remotePath(t.config.BasePath, e.Name))
			if err != nil {
				t.log.Warn("skipping unreadable backup metadata", logger.String("file", e.Name), logger.Error(err))
				continue
			}
			infos = append(infos, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	backup.SortNewestFirst(infos)
	return infos, nil
}

func (t *FTPTarget) readMetadata(conn *ftp.ServerConn, p string) (backup.BackupInfo, error) {
	resp, err := conn.Retr(p)
	if err != nil {
		return backup.BackupInfo{}, err
	}
	defer resp.Close()
	data, err := io.ReadAll(io.LimitReader(resp, 1<<20))
	if err != nil {
		return backup.BackupInfo{}, err
	}
	return decodeMetadata(data, t.Name())
}

// Delete removes a backup and its sidecar.
func (t *FTPTarget) Delete(ctx context.Context, id string) error {
	infos, err := t.List(ctx)
	if err != nil {
		return err
	}
	info, ok := findByID(infos, id)
	if !ok {
		return notFound(t.Name(), id)
	}
	return t.withConn(ctx, func(conn *ftp.ServerConn) error {
		backupPath := remotePath(t.config.BasePath, info.FileName)
		if err := conn.Delete(backupPath); err != nil {
			return targetError(err, t.Name(), "delete")
		}
		if err := conn.Delete(backup.MetadataName(backupPath)); err != nil {
			return targetError(err, t.Name(), "delete_metadata")
		}
		return nil
	})
}
