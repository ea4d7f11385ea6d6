package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravitas-games/craftd/internal/config"
	"github.com/gravitas-games/craftd/internal/inventory"
	"github.com/gravitas-games/craftd/internal/pkg/logger"
	"github.com/gravitas-games/craftd/internal/resource"
)

func sampleSnapshot(owner inventory.OwnerID) inventory.Snapshot {
	return inventory.Snapshot{
		Owner:    owner,
		Category: inventory.CategoryGeneral,
		Bags: []inventory.BagSnapshot{
			{ID: string(owner) + "/general#0", Capacity: 3, Slots: []resource.Quantity{{ID: 1, Amount: 5}, {}, {ID: 2, Amount: 1}}},
			{ID: string(owner) + "/general#1", Capacity: 2, Slots: []resource.Quantity{{}, {}}},
		},
	}
}

// exerciseStore runs the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Load(ctx, "nobody", inventory.CategoryGeneral)
	require.ErrorIs(t, err, ErrNotFound)

	snap := sampleSnapshot("alice/1")
	require.NoError(t, s.Save(ctx, "alice/1", inventory.CategoryGeneral, snap))

	got, err := s.Load(ctx, "alice/1", inventory.CategoryGeneral)
	require.NoError(t, err)
	assert.Equal(t, snap, got)

	_, err = s.Load(ctx, "alice/1", inventory.CategoryCharacter)
	assert.ErrorIs(t, err, ErrNotFound, "categories are separate records")

	// Overwrite.
	snap.Bags[0].Slots[0].Amount = 2
	require.NoError(t, s.Save(ctx, "alice/1", inventory.CategoryGeneral, snap))
	got, err = s.Load(ctx, "alice/1", inventory.CategoryGeneral)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Bags[0].Slots[0].Amount)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)

	// Stored snapshots are isolated from the caller's slices.
	ctx := context.Background()
	snap := sampleSnapshot("bob")
	require.NoError(t, s.Save(ctx, "bob", inventory.CategoryGeneral, snap))
	snap.Bags[0].Slots[0].Amount = 99
	got, err := s.Load(ctx, "bob", inventory.CategoryGeneral)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Bags[0].Slots[0].Amount)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Load(cancelled, "bob", inventory.CategoryGeneral)
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	exerciseStore(t, s)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
	assert.Equal(t, "alice%2F1.general.json.zst", entries[0].Name())

	_, err = NewFileStore("")
	assert.Error(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eve.general.json.zst"), []byte("not zstd"), 0o644))

	_, err = s.Load(context.Background(), "eve", inventory.CategoryGeneral)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "inventory.db"), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	s, err := OpenPostgres(dsn, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.db.Exec(`DELETE FROM inventories WHERE owner = 'alice/1';`)
		_ = s.Close()
	})
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "craftd-test:" + t.Name() + ":"
	s := NewRedisStore(client, prefix)
	t.Cleanup(func() {
		client.Del(context.Background(), prefix+"alice/1:general")
	})
	exerciseStore(t, s)
	require.NoError(t, s.Close())
	require.NoError(t, client.Ping(context.Background()).Err(), "borrowed client stays open")
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	testCases := []struct {
		name    string
		storage config.Storage
		want    any
		wantErr bool
	}{
		{name: "memory", storage: config.Storage{Backend: config.BackendMemory}, want: &Memory{}},
		{name: "file", storage: config.Storage{Backend: config.BackendFile, Path: filepath.Join(dir, "files")}, want: &FileStore{}},
		{name: "sqlite", storage: config.Storage{Backend: config.BackendSQLite, Path: filepath.Join(dir, "inv.db")}, want: &SQLStore{}},
		{name: "unknown", storage: config.Storage{Backend: "tape"}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Open(&config.Config{Storage: tc.storage}, logger.Nop())
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			assert.IsType(t, tc.want, s)
		})
	}
}
