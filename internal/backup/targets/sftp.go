package targets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// SFTPTargetConfig holds the SFTP connection settings.
type SFTPTargetConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	KeyFile        string
	KnownHostsFile string
	BasePath       string
	Timeout        time.Duration
}

// SFTPTarget stores backups over SFTP. Host keys are checked against a
// known_hosts file.
type SFTPTarget struct {
	config SFTPTargetConfig
	log    logger.Logger
}

// NewSFTPTarget creates an SFTP target.
func NewSFTPTarget(cfg SFTPTargetConfig, log logger.Logger) (*SFTPTarget, error) {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.KnownHostsFile == "" {
		cfg.KnownHostsFile = DefaultKnownHostsFile()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	t := &SFTPTarget{config: cfg, log: log}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewSFTPTargetFromMap reads host, port, username, password, key_file,
// known_hosts, path and timeout.
func NewSFTPTargetFromMap(settings map[string]string, log logger.Logger) (*SFTPTarget, error) {
	p := NewSettingsParser(TypeSFTP, settings)
	cfg := SFTPTargetConfig{
		Host:           p.RequireString("host"),
		Port:           p.OptionalInt("port", 22),
		Username:       p.RequireString("username"),
		Password:       p.OptionalString("password", ""),
		KeyFile:        p.OptionalString("key_file", ""),
		KnownHostsFile: p.OptionalString("known_hosts", ""),
		BasePath:       p.OptionalPath("path", "trolltrack"),
		Timeout:        p.OptionalDuration("timeout", defaultTimeout),
	}
	if err := p.Error(); err != nil {
		return nil, err
	}
	return NewSFTPTarget(cfg, log)
}

// DefaultKnownHostsFile returns ~/.ssh/known_hosts, or "" without a home.
func DefaultKnownHostsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

func (t *SFTPTarget) Name() string { return TypeSFTP }

func (t *SFTPTarget) Validate() error {
	var problems []string
	if t.config.Host == "" {
		problems = append(problems, "host is required")
	}
	if t.config.Username == "" {
		problems = append(problems, "username is required")
	}
	if t.config.Password == "" && t.config.KeyFile == "" {
		problems = append(problems, "password or key_file is required")
	}
	if t.config.Port < 1 || t.config.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d", t.config.Port))
	}
	if t.config.KnownHostsFile == "" {
		problems = append(problems, "known_hosts file is required")
	}
	if len(problems) > 0 {
		return errors.Newf("sftp: %s", strings.Join(problems, "; ")).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func (t *SFTPTarget) clientConfig() (*ssh.ClientConfig, error) {
	hostKeys, err := knownhosts.New(t.config.KnownHostsFile)
	if err != nil {
		return nil, errors.New(err).
			Component("backup").
			Category(errors.CategoryConfiguration).
			Context("target", t.Name()).
			Context("known_hosts", t.config.KnownHostsFile).
			Build()
	}

	cfg := &ssh.ClientConfig{
		User:            t.config.Username,
		HostKeyCallback: hostKeys,
		Timeout:         t.config.Timeout,
	}
	if t.config.KeyFile != "" {
		key, err := os.ReadFile(t.config.KeyFile)
		if err != nil {
			return nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryFileIO).
				Context("target", t.Name()).
				Build()
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.New(err).
				Component("backup").
				Category(errors.CategoryConfiguration).
				Context("target", t.Name()).
				Build()
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if t.config.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(t.config.Password))
	}
	return cfg, nil
}

func (t *SFTPTarget) connect(ctx context.Context) (*sftp.Client, func(), error) {
	cfg, err := t.clientConfig()
	if err != nil {
		return nil, nil, err
	}

	addr := net.JoinHostPort(t.config.Host, strconv.Itoa(t.config.Port))
	dialer := net.Dialer{Timeout: t.config.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, targetError(err, t.Name(), "connect")
	}
	// The SSH handshake has no context; the deadline bounds it instead.
	_ = netConn.SetDeadline(time.Now().Add(t.config.Timeout))

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		_ = netConn.Close()
		return nil, nil, targetError(err, t.Name(), "handshake")
	}
	_ = netConn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, nil, targetError(err, t.Name(), "sftp_session")
	}

	stop := context.AfterFunc(ctx, func() { _ = sshClient.Close() })
	closeAll := func() {
		stop()
		_ = client.Close()
		_ = sshClient.Close()
	}
	return client, closeAll, nil
}

// Store uploads the backup and its metadata to temp names and renames them.
func (t *SFTPTarget) Store(ctx context.Context, sourcePath string, meta *backup.Metadata) error {
	data, err := encodeMetadata(meta)
	if err != nil {
		return targetError(err, t.Name(), "encode_metadata")
	}

	client, closeAll, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	if err := client.MkdirAll(t.config.BasePath); err != nil {
		return targetError(err, t.Name(), "mkdir")
	}

	src, err := os.Open(sourcePath)
	if err != nil {
		return targetError(err, t.Name(), "open_source")
	}
	defer src.Close()

	backupPath := remotePath(t.config.BasePath, meta.FileName)
	if err := t.upload(client, src, backupPath); err != nil {
		return err
	}
	if err := t.upload(client, bytes.NewReader(data), backup.MetadataName(backupPath)); err != nil {
		_ = client.Remove(backupPath)
		return err
	}
	return nil
}

func (t *SFTPTarget) upload(client *sftp.Client, r io.Reader, dest string) error {
	tmp := dest + ".tmp"
	f, err := client.Create(tmp)
	if err != nil {
		return targetError(err, t.Name(), "create")
	}
	if _, err := f.ReadFrom(r); err != nil {
		_ = f.Close()
		_ = client.Remove(tmp)
		return targetError(err, t.Name(), "upload")
	}
	if err := f.Close(); err != nil {
		_ = client.Remove(tmp)
		return targetError(err, t.Name(), "upload")
	}
	// PosixRename replaces an existing file where the server supports it.
	if err := client.PosixRename(tmp, dest); err != nil {
		if err := client.Rename(tmp, dest); err != nil {
			_ = client.Remove(tmp)
			return targetError(err, t.Name(), "rename")
		}
	}
	return nil
}

// List reads the metadata sidecars in the base directory.
func (t *SFTPTarget) List(ctx context.Context) ([]backup.BackupInfo, error) {
	client, closeAll, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer closeAll()

	entries, err := client.ReadDir(t.config.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, targetError(err, t.Name(), "list")
	}

	var infos []backup.BackupInfo
	for _, e := range entries {
		if e.IsDir() || !backup.IsMetadataName(e.Name()) {
			continue
		}
		f, err := client.Open(remotePath(t.config.BasePath, e.Name()))
		if err != nil {
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, 1<<20))
		_ = f.Close()
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
func (t *SFTPTarget) Delete(ctx context.Context, id string) error {
	infos, err := t.List(ctx)
	if err != nil {
		return err
	}
	info, ok := findByID(infos, id)
	if !ok {
		return notFound(t.Name(), id)
	}

	client, closeAll, err := t.connect(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	backupPath := remotePath(t.config.BasePath, info.FileName)
	if err := client.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return targetError(err, t.Name(), "delete")
	}
	if err := client.Remove(backup.MetadataName(backupPath)); err != nil && !os.IsNotExist(err) {
		return targetError(err, t.Name(), "delete_metadata")
	}
	return nil
}
