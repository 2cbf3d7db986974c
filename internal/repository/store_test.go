package repository

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spellingbee/internal/db"
	"spellingbee/internal/domain"
	"spellingbee/internal/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitWriter(io.Discard, "error", false)
}

// testDocumentStore checks the behaviour every STORE_DRIVER backend shares.
func testDocumentStore(t *testing.T, store DocumentStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))

	_, err := store.GetSession(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	alice := domain.User{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	bob := domain.User{ID: "bob", DisplayName: "Bob"}
	require.NoError(t, store.PutUser(ctx, alice))
	require.NoError(t, store.PutUser(ctx, bob))

	got, err := store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, got)

	alice.DisplayName = "Alice B."
	require.NoError(t, store.PutUser(ctx, alice))
	got, err = store.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice B.", got.DisplayName)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	s := domain.NewSession("alice", []string{"bob"}, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.PutSession(ctx, s))

	loaded, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, []string{"alice", "bob"}, loaded.ParticipantIDs)
	assert.Empty(t, loaded.Words)
	assert.False(t, loaded.IsStarted)
	assert.True(t, s.CreatedAt.Equal(loaded.CreatedAt))

	// a put replaces the whole record
	s.Words = append(s.Words, domain.NewWordEntry(s.ID, "bob", "apple", "recordings/x/apple.m4a", 3))
	s.IsStarted = true
	require.NoError(t, store.PutSession(ctx, s))

	loaded, err = store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Words, 1)
	assert.True(t, loaded.IsStarted)
	w := loaded.Words[0]
	assert.Equal(t, "apple", w.Text)
	assert.Equal(t, 3, w.Level)
	assert.Equal(t, "bob", w.AuthorID)
	assert.Equal(t, s.ID, w.SessionID)
	require.NotNil(t, w.AudioRef)
	assert.Equal(t, "recordings/x/apple.m4a", *w.AudioRef)

	other := domain.NewSession("bob", nil, time.Now())
	require.NoError(t, store.PutSession(ctx, other))

	sessions, err := store.ListSessions(ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{s.ID, other.ID}, ids)
}

func TestMemStore(t *testing.T) {
	testDocumentStore(t, NewMemStore())
}

func TestMemStoreClonesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	s := domain.NewSession("alice", []string{"bob"}, time.Now())
	require.NoError(t, store.PutSession(ctx, s))

	s.ParticipantIDs[0] = "mallory"
	loaded, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.ParticipantIDs[0])

	loaded.Words = append(loaded.Words, domain.WordEntry{Text: "leak"})
	again, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Words)
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	sqlDB, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := NewSQLiteStore(context.Background(), sqlDB)
	require.NoError(t, err)
	return store
}

func TestSQLiteStore(t *testing.T) {
	testDocumentStore(t, openTestSQLite(t))
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	sqlDB, err := db.OpenSQLite(path)
	require.NoError(t, err)
	store, err := NewSQLiteStore(ctx, sqlDB)
	require.NoError(t, err)

	s := domain.NewSession("alice", nil, time.Now())
	require.NoError(t, store.PutSession(ctx, s))
	require.NoError(t, sqlDB.Close())

	sqlDB, err = db.OpenSQLite(path)
	require.NoError(t, err)
	defer sqlDB.Close()
	store, err = NewSQLiteStore(ctx, sqlDB)
	require.NoError(t, err)

	loaded, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.CreatorID, loaded.CreatorID)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	prefix := "test:" + uuid.NewString() + ":"
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
	})

	testDocumentStore(t, NewRedisStore(client, prefix))
}

func openTestPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migDir := filepath.Join("..", "migrations")
	files, err := os.ReadDir(migDir)
	require.NoError(t, err)
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(migDir, f.Name()))
		require.NoError(t, err)
		_, err = pool.Exec(context.Background(), string(b))
		require.NoError(t, err, "apply migration %s", f.Name())
	}

	_, err = pool.Exec(context.Background(), `TRUNCATE games, users, credentials, play_results`)
	require.NoError(t, err)
	return pool
}

func TestPostgresStore(t *testing.T) {
	pool := openTestPostgres(t)
	testDocumentStore(t, NewPostgresStore(pool))
}

func TestGameRepositoryListByUser(t *testing.T) {
	pool := openTestPostgres(t)
	ctx := context.Background()
	repo := NewGameRepository(pool)

	mine := domain.NewSession("alice", []string{"bob"}, time.Now().Add(-time.Hour))
	newer := domain.NewSession("carol", []string{"alice"}, time.Now())
	foreign := domain.NewSession("carol", []string{"bob"}, time.Now())
	for _, s := range []domain.Session{mine, newer, foreign} {
		require.NoError(t, repo.Put(ctx, s))
	}

	sessions, err := repo.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, newer.ID, sessions[0].ID)
	assert.Equal(t, mine.ID, sessions[1].ID)
}
