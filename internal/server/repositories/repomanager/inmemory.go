package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/dbx"
	"github.com/dmitrijs2005/miloc/internal/server/models"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/media"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/users"
	"github.com/google/uuid"
)

// InMemoryRepositoryManager keeps everything in process memory. It ignores
// the DBTX it is given, so transactions are not isolated; it backs handler
// and tooling tests that need real repository behavior without Postgres.
type InMemoryRepositoryManager struct {
	users   *memUsers
	refresh *memRefreshTokens
	media   *memMedia
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:   &memUsers{rows: map[string]*models.User{}},
		refresh: &memRefreshTokens{rows: map[string]*models.RefreshToken{}},
		media:   &memMedia{rows: map[string]*models.MediaAsset{}},
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return m.refresh
}

func (m *InMemoryRepositoryManager) Media(dbx.DBTX) media.Repository {
	return m.media
}

type memUsers struct {
	mu   sync.Mutex
	rows map[string]*models.User
}

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.UserName == u.UserName || existing.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now()
	cp := *u
	r.rows[u.ID] = &cp
	return u, nil
}

func (r *memUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.rows {
		if u.UserName == login {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) GetEncryptionKey(ctx context.Context, id string) (string, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return u.EncryptionKey, nil
}

func (r *memUsers) StoreEncryptionKeyIfAbsent(_ context.Context, id string, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.rows[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	if u.EncryptionKey == "" {
		u.EncryptionKey = key
	}
	return u.EncryptionKey, nil
}

func (r *memUsers) ListWithoutKey(_ context.Context, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var missing []*models.User
	for _, u := range r.rows {
		if u.EncryptionKey == "" {
			missing = append(missing, u)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].CreatedAt.Before(missing[j].CreatedAt) })

	ids := make([]string, 0, len(missing))
	for _, u := range missing {
		if len(ids) == limit {
			break
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

type memRefreshTokens struct {
	mu   sync.Mutex
	rows map[string]*models.RefreshToken
}

func (r *memRefreshTokens) Create(_ context.Context, userID string, token string, validity time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[token]; ok {
		return fmt.Errorf("db error: %w", common.ErrorAlreadyExists)
	}
	now := time.Now()
	r.rows[token] = &models.RefreshToken{ID: uuid.NewString(), UserID: userID, Token: token, Expires: now.Add(validity), CreatedAt: now}
	return nil
}

func (r *memRefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *rt
	return &cp, nil
}

func (r *memRefreshTokens) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.rows, token)
	return nil
}

func (r *memRefreshTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for token, rt := range r.rows {
		if rt.Expired(now) {
			delete(r.rows, token)
			n++
		}
	}
	return n, nil
}

type memMedia struct {
	mu   sync.Mutex
	rows map[string]*models.MediaAsset
	last time.Time
}

func (r *memMedia) Create(_ context.Context, a *models.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.rows {
		if existing.StoragePath == a.StoragePath || existing.ID == a.ID {
			return common.ErrorAlreadyExists
		}
	}
	// strictly increasing, so newest-first ordering is stable
	now := time.Now().UTC()
	if !now.After(r.last) {
		now = r.last.Add(time.Microsecond)
	}
	r.last = now
	a.CreatedAt = now
	cp := *a
	r.rows[a.ID] = &cp
	return nil
}

func (r *memMedia) GetByID(_ context.Context, id string) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memMedia) GetByStoragePath(_ context.Context, storagePath string) (*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.rows {
		if a.StoragePath == storagePath {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memMedia) ListByOwner(_ context.Context, ownerID string) ([]*models.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*models.MediaAsset{}
	for _, a := range r.rows {
		if a.OwnerID == ownerID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *memMedia) Delete(_ context.Context, id string, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok || a.OwnerID != ownerID {
		return common.ErrorNotFound
	}
	delete(r.rows, id)
	return nil
}
