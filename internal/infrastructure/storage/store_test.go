package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
)

func openStores(t *testing.T) map[string]domain.CorrelationRepository {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "signals.db"))
	require.NoError(t, err)
	jsonStore, err := NewJSONStore(filepath.Join(dir, "data.json"))
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlite.Close()
		jsonStore.Close()
	})
	return map[string]domain.CorrelationRepository{
		"sqlite": sqlite,
		"json":   jsonStore,
	}
}

func TestCorrelationStores(t *testing.T) {
	for name, store := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Lookup(ctx, 1)
			assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)

			require.NoError(t, store.Record(ctx, 1, []string{"a", "b"}))
			ids, err := store.Lookup(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			// appends keep order
			require.NoError(t, store.Record(ctx, 1, []string{"c"}))
			ids, err = store.Lookup(ctx, 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids)

			require.NoError(t, store.Record(ctx, 2, nil))
			_, err = store.Lookup(ctx, 2)
			assert.ErrorIs(t, err, domain.ErrCorrelationNotFound)

			require.NoError(t, store.Record(ctx, 3, []string{"x"}))
			all, err := store.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, map[int64][]string{1: {"a", "b", "c"}, 3: {"x"}}, all)
		})
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signals.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, 42, []string{"1001", "1002"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	ids, err := s.Lookup(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002"}, ids)
}

func TestJSONStore_LegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1207": ["5001", "5002"]}`), 0o644))
	ctx := context.Background()

	s, err := NewJSONStore(path)
	require.NoError(t, err)
	ids, err := s.Lookup(ctx, 1207)
	require.NoError(t, err)
	assert.Equal(t, []string{"5001", "5002"}, ids)

	require.NoError(t, s.Record(ctx, 1300, []string{"6001"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"1207": ["5001", "5002"], "1300": ["6001"]}`, string(data))

	leftovers, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReadLegacyFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadLegacyFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"abc": ["1"]}`), 0o644))
	_, err = ReadLegacyFile(bad)
	assert.Error(t, err)

	_, err = NewJSONStore(bad)
	assert.Error(t, err)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	dst, err := NewSQLiteStore(filepath.Join(t.TempDir(), "signals.db"))
	require.NoError(t, err)
	defer dst.Close()

	n, err := Import(ctx, dst, map[int64][]string{20: {"b"}, 10: {"a1", "a2"}})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	all, err := dst.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]string{10: {"a1", "a2"}, 20: {"b"}}, all)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	repo, err := Open(config.StorageConfig{Driver: "json", DSN: filepath.Join(dir, "data.json")})
	require.NoError(t, err)
	assert.IsType(t, &JSONStore{}, repo)

	repo, err = Open(config.StorageConfig{Driver: "sqlite", DSN: filepath.Join(dir, "s.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, repo)
	repo.Close()

	_, err = Open(config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	q := `INSERT INTO correlations (message_id, leg) VALUES (?, ?)`
	assert.Equal(t, q, dialectSQLite.rebind(q))
	assert.Equal(t, `INSERT INTO correlations (message_id, leg) VALUES ($1, $2)`, dialectPostgres.rebind(q))
}
