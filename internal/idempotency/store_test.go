package idempotency

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Unix(1_700_000_000, 0).UTC()

func record(body string) Record {
	return Record{
		Fingerprint: "fp",
		StatusCode:  200,
		Response:    []byte(body),
		CreatedAt:   epoch,
		ExpiresAt:   epoch.Add(time.Minute),
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	store.now = func() time.Time { return epoch }
	ctx := context.Background()

	rec, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Save(ctx, "abc", record("ok")))
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ok", string(got.Response))
	assert.Equal(t, "fp", got.Fingerprint)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "abc", record("ok")))

	store.now = func() time.Time { return epoch.Add(2 * time.Minute) }
	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "idem.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	store.now = func() time.Time { return epoch }
	require.NoError(t, store.Save(ctx, "key", record("resp")))

	_, err = os.Stat(path)
	require.NoError(t, err, "expected file on disk")
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	reopened.now = func() time.Time { return epoch }
	got, err := reopened.Get(ctx, "key")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "resp", string(got.Response))
}

func TestFileStoreDropsExpiredOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idem.json")
	ctx := context.Background()

	store, err := NewFileStore(path)
	require.NoError(t, err)
	store.now = func() time.Time { return epoch }
	require.NoError(t, store.Save(ctx, "old", record("a")))

	store.now = func() time.Time { return epoch.Add(time.Hour) }
	fresh := record("b")
	fresh.ExpiresAt = epoch.Add(2 * time.Hour)
	require.NoError(t, store.Save(ctx, "new", fresh))

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(blob), `"old"`)
	assert.Contains(t, string(blob), `"new"`)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("POST", "/api/v1/dispatch", []byte(`{"a":1}`))
	assert.Equal(t, a, Fingerprint("POST", "/api/v1/dispatch", []byte(`{"a":1}`)))
	assert.NotEqual(t, a, Fingerprint("POST", "/api/v1/dispatch", []byte(`{"a":2}`)))
	assert.NotEqual(t, a, Fingerprint("POST", "/api/v1/executions", []byte(`{"a":1}`)))
}
