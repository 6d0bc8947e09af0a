package deadletter

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueWriteAndList(t *testing.T) {
	q := NewQueue(filepath.Join(t.TempDir(), "dlq"))

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)

	at := time.Unix(1_700_000_000, 0).UTC()
	require.NoError(t, q.Write(Letter{Timestamp: at.Add(time.Second), VaultID: "0xBB", Action: "executeDissolution", Kind: "SubmissionFailed", Error: "boom"}))
	require.NoError(t, q.Write(Letter{Timestamp: at, VaultID: "0xAA", Action: "executeRedemption", Kind: "SubmissionFailed", Error: "boom"}))

	depth, err = q.Depth()
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	letters, err := q.List()
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "0xAA", letters[0].VaultID)
	assert.Equal(t, "executeDissolution", letters[1].Action)
}

func TestDisabledQueue(t *testing.T) {
	q := NewQueue("")
	require.NoError(t, q.Write(Letter{VaultID: "0xAA"}))
	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)
}
