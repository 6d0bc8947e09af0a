package idempotency

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"commitvault/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, migrations.Migrate(db))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()

	key := "test-key-" + time.Now().Format(time.RFC3339Nano)
	rec := Record{
		Fingerprint: "fp",
		StatusCode:  201,
		Response:    []byte("payload"),
		CreatedAt:   time.Now().UTC(),
		ExpiresAt:   time.Now().Add(time.Minute).UTC(),
	}
	require.NoError(t, store.Save(ctx, key, rec))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.StatusCode, got.StatusCode)
	assert.Equal(t, "fp", got.Fingerprint)

	missing, err := store.Get(ctx, "absent-"+key)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestNewPostgresStoreRequiresDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), "")
	assert.Error(t, err)
}
