package targets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trolltrack/trolltrack/internal/backup"
	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "trolltrack_backup.db")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func testMetadata(id, name string, ts time.Time) *backup.Metadata {
	return &backup.Metadata{
		Version:   backup.MetadataVersion,
		ID:        id,
		FileName:  name,
		Timestamp: ts,
		Size:      2,
		Database:  "sqlite",
	}
}

func TestLocalTargetStoreListDelete(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "usb")
	target, err := NewLocalTarget(dir, nil)
	require.NoError(t, err)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src := writeSource(t, "db")
	require.NoError(t, target.Store(t.Context(), src, testMetadata("old", "a.db", base)))
	require.NoError(t, target.Store(t.Context(), src, testMetadata("new", "b.db", base.Add(time.Hour))))

	data, err := os.ReadFile(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.Equal(t, "db", string(data))
	assert.FileExists(t, filepath.Join(dir, "a.db.meta.json"))

	info, err := os.Stat(filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePermissions), info.Mode().Perm())

	infos, err := target.List(t.Context())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "new", infos[0].ID)
	assert.Equal(t, TypeLocal, infos[0].Target)

	require.NoError(t, target.Delete(t.Context(), "old"))
	assert.NoFileExists(t, filepath.Join(dir, "a.db"))
	assert.NoFileExists(t, filepath.Join(dir, "a.db.meta.json"))

	err = target.Delete(t.Context(), "old")
	assert.True(t, errors.IsNotFound(err))
}

func TestLocalTargetSkipsBrokenMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.db.meta.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	target, err := NewLocalTarget(dir, nil)
	require.NoError(t, err)
	infos, err := target.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestLocalTargetMissingDirListsNothing(t *testing.T) {
	t.Parallel()

	target, err := NewLocalTarget(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	infos, err := target.List(t.Context())
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestLocalTargetRequiresAbsolutePath(t *testing.T) {
	t.Parallel()

	_, err := NewLocalTarget("relative/dir", nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = NewLocalTargetFromMap(map[string]string{}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestSettingsParser(t *testing.T) {
	t.Parallel()

	p := NewSettingsParser("ftp", map[string]string{
		"host":    " ftp.example.com ",
		"port":    "twenty-one",
		"passive": "yes please",
		"timeout": "-1s",
		"path":    "/backups/",
		"retries": "3",
	})
	assert.Equal(t, "ftp.example.com", p.RequireString("host"))
	assert.Equal(t, 21, p.OptionalInt("port", 21))
	assert.Equal(t, 3, p.OptionalInt("retries", 1))
	assert.True(t, p.OptionalBool("passive", true))
	assert.Equal(t, time.Minute, p.OptionalDuration("timeout", time.Minute))
	assert.Equal(t, "/backups", p.OptionalPath("path", ""))
	assert.Equal(t, "fallback", p.OptionalString("missing", "fallback"))
	assert.Empty(t, p.RequireString("username"))

	err := p.Error()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
	for _, want := range []string{"port must be a number", "passive must be true or false", "invalid timeout format", "username is required"} {
		assert.Contains(t, err.Error(), want)
	}

	assert.NoError(t, NewSettingsParser("s3", nil).Error())
}

func TestNewUnknownType(t *testing.T) {
	t.Parallel()

	_, err := New(conf.BackupTarget{Type: "tape"}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestFromSettingsSkipsDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	settings := &conf.Settings{Backup: conf.BackupSettings{Targets: []conf.BackupTarget{
		{Type: "LOCAL", Enabled: true, Settings: map[string]string{"path": dir}},
		{Type: TypeFTP, Enabled: false},
	}}}
	got, err := FromSettings(settings, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TypeLocal, got[0].Name())

	settings.Backup.Targets[1].Enabled = true
	_, err = FromSettings(settings, nil)
	require.Error(t, err)
	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.GetContext()["target_index"])
}

func TestRemoteTargetValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      conf.BackupTarget
		wantErr  bool
		contains string
	}{
		{"ftp defaults", conf.BackupTarget{Type: TypeFTP, Settings: map[string]string{"host": "nas.local"}}, false, ""},
		{"ftp bad port", conf.BackupTarget{Type: TypeFTP, Settings: map[string]string{"host": "nas.local", "port": "70000"}}, true, "invalid port"},
		{"sftp needs credentials", conf.BackupTarget{Type: TypeSFTP, Settings: map[string]string{"host": "nas.local", "username": "pi", "known_hosts": "/tmp/kh"}}, true, "password or key_file"},
		{"sftp ok", conf.BackupTarget{Type: TypeSFTP, Settings: map[string]string{"host": "nas.local", "username": "pi", "password": "pw", "known_hosts": "/tmp/kh"}}, false, ""},
		{"s3 missing bucket", conf.BackupTarget{Type: TypeS3, Settings: map[string]string{"endpoint": "s3.example.com", "access_key": "a", "secret_key": "b"}}, true, "bucket is required"},
		{"s3 ok", conf.BackupTarget{Type: TypeS3, Settings: map[string]string{"endpoint": "https://s3.example.com", "bucket": "catches", "access_key": "a", "secret_key": "b"}}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			target, err := New(tt.cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.contains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Type, target.Name())
			assert.NoError(t, target.Validate())
		})
	}
}

func TestSanitizeEndpoint(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "s3.example.com:9000", sanitizeEndpoint("https://s3.example.com:9000/"))
	assert.Equal(t, "minio:9000", sanitizeEndpoint("minio:9000"))
}

func TestS3TargetSchemeSelectsTLS(t *testing.T) {
	t.Parallel()

	target, err := NewS3Target(S3TargetConfig{Endpoint: "http://minio:9000", Bucket: "b", AccessKey: "a", SecretKey: "s", UseSSL: true}, nil)
	require.NoError(t, err)
	assert.False(t, target.config.UseSSL)
	assert.Equal(t, "minio:9000", target.config.Endpoint)
}
