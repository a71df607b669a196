package mediactl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/dmitrijs2005/miloc/internal/server/config"
	"github.com/dmitrijs2005/miloc/internal/server/keyvault"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/miloc/internal/server/services"
	"github.com/dmitrijs2005/miloc/internal/server/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")

type fixture struct {
	env   *Env
	repos *repomanager.InMemoryRepositoryManager
	root  string
	cfg   *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxUploadBytes = 1 << 20

	root := t.TempDir()
	store, err := storage.NewFileStore(root)
	require.NoError(t, err)

	repos := repomanager.NewInMemoryRepositoryManager()
	env := NewEnv(nil, repos, store, &cryptox.Codec{}, cfg, logging.Nop{})

	return &fixture{env: env, repos: repos, root: root}
}

func (f *fixture) addUser(t *testing.T, name, key string) string {
	t.Helper()
	u, err := f.repos.Users(nil).Create(context.Background(), &models.User{UserName: name, Email: name + "@example.com", EncryptionKey: key})
	require.NoError(t, err)
	return u.ID
}

// run executes args against the fixture and returns stdout.
func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd(func(_ context.Context, cfg *config.Config, _ logging.Logger) (*Env, error) {
		f.cfg = cfg
		return f.env, nil
	})

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := keyvault.NewKeyText()
	require.NoError(t, err)

	keyed := f.addUser(t, "keyed", existing)
	var legacy []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		legacy = append(legacy, f.addUser(t, name, ""))
	}

	n, err := Backfill(ctx, f.env, 2)
	require.NoError(t, err)
	assert.Equal(t, len(legacy), n)

	left, err := f.repos.Users(nil).ListWithoutKey(ctx, 100)
	require.NoError(t, err)
	assert.Empty(t, left)

	for _, id := range legacy {
		text, err := f.repos.Users(nil).GetEncryptionKey(ctx, id)
		require.NoError(t, err)
		_, err = cryptox.DecodeKey(text)
		assert.NoError(t, err, id)
	}

	text, err := f.repos.Users(nil).GetEncryptionKey(ctx, keyed)
	require.NoError(t, err)
	assert.Equal(t, existing, text, "an existing key is never replaced")

	n, err = Backfill(ctx, f.env, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBackfill_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "legacy", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := Backfill(ctx, f.env, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}

func TestBackfillCommand(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "legacy1", "")
	f.addUser(t, "legacy2", "")

	out, err := f.run(t, "backfill-keys", "--batch", "1")
	require.NoError(t, err)
	assert.Equal(t, "backfilled 2 user(s)\n", out)
}

func TestVerifyCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.addUser(t, "alice", "")

	good, err := f.env.Media.Upload(ctx, owner, services.UploadRequest{Kind: models.ContentKindImage, Payload: services.RawBytes(pngBytes)})
	require.NoError(t, err)

	out, err := f.run(t, "verify", "--user", owner)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, good.StoragePath)
	assert.Contains(t, out, "1 asset(s), 0 failed")

	tampered, err := f.env.Media.Upload(ctx, owner, services.UploadRequest{Kind: models.ContentKindImage, Payload: services.RawBytes(pngBytes)})
	require.NoError(t, err)
	p := filepath.Join(f.root, filepath.FromSlash(tampered.StoragePath))
	blob, err := os.ReadFile(p)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, os.WriteFile(p, blob, 0o600))

	missing, err := f.env.Media.Upload(ctx, owner, services.UploadRequest{Kind: models.ContentKindImage, Payload: services.RawBytes(pngBytes)})
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.root, filepath.FromSlash(missing.StoragePath))))

	out, err = f.run(t, "verify", "--user", owner)
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.Contains(t, out, "3 asset(s), 2 failed")
	assert.Regexp(t, "FAILED +"+tampered.ID+" .* authentication_failed", out)
	assert.Regexp(t, "FAILED +"+missing.ID+" .* blob_missing", out)
	assert.NotContains(t, out, "PNG")
}

func TestVerifyCommand_UnknownUser(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "verify", "--user", "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotContains(t, out, "asset(s)")
}

func TestVerifyCommand_LeavesKeylessUserAlone(t *testing.T) {
	f := newFixture(t)
	legacy := f.addUser(t, "legacy", "")

	out, err := f.run(t, "verify", "--user", legacy)
	require.NoError(t, err)
	assert.Contains(t, out, "0 asset(s), 0 failed")

	text, err := f.repos.Users(nil).GetEncryptionKey(context.Background(), legacy)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestVerifyCommand_RequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(t, "verify")
	assert.Error(t, err)
}

func TestPurgeTokensCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := f.repos.RefreshTokens(nil)

	require.NoError(t, tokens.Create(ctx, "u1", "expired", -time.Minute))
	require.NoError(t, tokens.Create(ctx, "u1", "live", time.Hour))

	out, err := f.run(t, "purge-tokens")
	require.NoError(t, err)
	assert.Equal(t, "purged 1 token(s)\n", out)

	_, err = tokens.Find(ctx, "live")
	assert.NoError(t, err)
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	f := newFixture(t)

	cfgPath := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"database_dsn":"from-file","media_root":"/srv/file"}`), 0o600))

	_, err := f.run(t, "purge-tokens", "-c", cfgPath, "--media-root", "/srv/flag", "--log-level", "debug")
	require.NoError(t, err)

	require.NotNil(t, f.cfg)
	assert.Equal(t, "from-file", f.cfg.DatabaseDSN)
	assert.Equal(t, "/srv/flag", f.cfg.MediaRoot)
	assert.Equal(t, "debug", f.cfg.LogLevel)
	assert.Equal(t, "text", f.cfg.LogFormat)
}

func TestRootCmd_OpenFailure(t *testing.T) {
	cmd := NewRootCmd(func(context.Context, *config.Config, logging.Logger) (*Env, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"purge-tokens"})

	err := cmd.ExecuteContext(context.Background())
	assert.ErrorContains(t, err, "open: dial tcp")
}
