package keyvault

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/cryptox"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mimics the single-statement insert-if-absent of the users table.
type memStore struct {
	mu       sync.Mutex
	keys     map[string]string
	getErr   error
	storeErr error
	stores   int
}

func newMemStore(users ...string) *memStore {
	s := &memStore{keys: map[string]string{}}
	for _, u := range users {
		s.keys[u] = ""
	}
	return s
}

func (s *memStore) GetEncryptionKey(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	k, ok := s.keys[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return k, nil
}

func (s *memStore) StoreEncryptionKeyIfAbsent(_ context.Context, id, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storeErr != nil {
		return "", s.storeErr
	}
	cur, ok := s.keys[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	s.stores++
	if cur == "" {
		s.keys[id] = key
		return key, nil
	}
	return cur, nil
}

func TestGetOrCreateKey_ExistingKey(t *testing.T) {
	key, err := cryptox.GenerateKey()
	require.NoError(t, err)

	store := newMemStore()
	store.keys["u1"] = cryptox.EncodeKey(key)

	got, err := New(store, logging.Nop{}).GetOrCreateKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, key, got)
	assert.Zero(t, store.stores)
}

func TestGetOrCreateKey_CreatesOnceAndIsStable(t *testing.T) {
	store := newMemStore("u1")
	v := New(store, logging.Nop{})

	first, err := v.GetOrCreateKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, first, cryptox.KeySize)
	assert.NotEmpty(t, store.keys["u1"])

	second, err := v.GetOrCreateKey(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.stores)
}

func TestGetOrCreateKey_ConcurrentFirstAccess(t *testing.T) {
	store := newMemStore("u1")
	v := New(store, logging.Nop{})

	const n = 16
	keys := make([][]byte, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			keys[i], errs[i] = v.GetOrCreateKey(context.Background(), "u1")
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, keys[0], keys[i])
	}

	stored, err := cryptox.DecodeKey(store.keys["u1"])
	require.NoError(t, err)
	assert.Equal(t, stored, keys[0])
}

func TestGetOrCreateKey_UnknownUser(t *testing.T) {
	_, err := New(newMemStore(), logging.Nop{}).GetOrCreateKey(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.NotErrorIs(t, err, ErrKeyPersistence)
}

func TestGetOrCreateKey_StoreFailures(t *testing.T) {
	t.Run("read", func(t *testing.T) {
		store := newMemStore("u1")
		store.getErr = errors.New("conn reset")

		_, err := New(store, logging.Nop{}).GetOrCreateKey(context.Background(), "u1")
		assert.ErrorIs(t, err, ErrKeyPersistence)
		assert.ErrorContains(t, err, "conn reset")
	})

	t.Run("write", func(t *testing.T) {
		store := newMemStore("u1")
		store.storeErr = errors.New("read-only")

		_, err := New(store, logging.Nop{}).GetOrCreateKey(context.Background(), "u1")
		assert.ErrorIs(t, err, ErrKeyPersistence)
	})

	t.Run("generator", func(t *testing.T) {
		orig := generateKey
		t.Cleanup(func() { generateKey = orig })
		generateKey = func() ([]byte, error) { return nil, errors.New("no entropy") }

		_, err := New(newMemStore("u1"), logging.Nop{}).GetOrCreateKey(context.Background(), "u1")
		assert.ErrorIs(t, err, ErrKeyPersistence)
	})
}

func TestGetOrCreateKey_CorruptStoredKey(t *testing.T) {
	store := newMemStore()
	store.keys["u1"] = "not-a-key"

	_, err := New(store, logging.Nop{}).GetOrCreateKey(context.Background(), "u1")
	assert.ErrorIs(t, err, cryptox.ErrInvalidKey)
}

func TestNewKeyText(t *testing.T) {
	a, err := NewKeyText()
	require.NoError(t, err)
	b, err := NewKeyText()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	key, err := cryptox.DecodeKey(a)
	require.NoError(t, err)
	assert.Len(t, key, cryptox.KeySize)
}

func TestGetKey(t *testing.T) {
	key, err := cryptox.GenerateKey()
	require.NoError(t, err)

	store := newMemStore("legacy")
	store.keys["keyed"] = cryptox.EncodeKey(key)
	store.keys["broken"] = "not-a-key"
	v := New(store, logging.Nop{})
	ctx := context.Background()

	got, err := v.GetKey(ctx, "keyed")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = v.GetKey(ctx, "legacy")
	assert.ErrorIs(t, err, ErrNoKey)
	assert.Equal(t, "", store.keys["legacy"], "a read never writes a key")
	assert.Zero(t, store.stores)

	_, err = v.GetKey(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = v.GetKey(ctx, "broken")
	assert.ErrorIs(t, err, cryptox.ErrInvalidKey)

	store.getErr = errors.New("conn reset")
	_, err = v.GetKey(ctx, "keyed")
	assert.ErrorIs(t, err, ErrKeyPersistence)
}
