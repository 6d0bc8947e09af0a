package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")

func entry(seq uint64) Entry {
	return Entry{
		Seq:    seq,
		TxRef:  fmt.Sprintf("0xref%d", seq),
		Caller: admin,
		Target: "MatchData",
		Method: "recordInteraction",
		Args:   json.RawMessage(`[1]`),
		At:     time.Unix(1_700_000_000+int64(seq), 0).UTC(),
	}
}

func TestMemoryJournalOrdering(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal()

	require.NoError(t, j.Append(ctx, entry(1)))
	require.NoError(t, j.Append(ctx, entry(2)))
	assert.ErrorIs(t, j.Append(ctx, entry(2)), ErrSequenceConflict)
	assert.ErrorIs(t, j.Append(ctx, entry(5)), ErrSequenceConflict)

	got, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[1].Seq)
}

func TestFileJournalPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger", "journal.jsonl")

	j, err := NewFileJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry(1)))
	require.NoError(t, j.Append(ctx, entry(2)))
	require.NoError(t, j.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reopened, err := NewFileJournal(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entry(1), got[0])

	assert.ErrorIs(t, reopened.Append(ctx, entry(2)), ErrSequenceConflict)
	require.NoError(t, reopened.Append(ctx, entry(3)))
}

func TestFileJournalClosed(t *testing.T) {
	j, err := NewFileJournal(filepath.Join(t.TempDir(), "j.jsonl"))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.ErrorIs(t, j.Append(context.Background(), entry(1)), ErrClosed)
}

func TestFileJournalTruncatesTornTail(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.jsonl")

	j, err := NewFileJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(ctx, entry(1)))
	require.NoError(t, j.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)
	complete := info.Size()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":2,"txRef":"0xab`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := NewFileJournal(path)
	require.NoError(t, err)
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, complete, info.Size())

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)

	require.NoError(t, reopened.Append(ctx, entry(2)))
	require.NoError(t, reopened.Close())

	again, err := NewFileJournal(path)
	require.NoError(t, err)
	defer again.Close()
	got, err = again.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, entry(2), got[1])
}

func TestFileJournalRejectsCorruptEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"seq\":1}\nnot json\n{\"seq\":3}\n"), 0o600))

	_, err := NewFileJournal(path)
	assert.ErrorContains(t, err, "decode journal line 2")
}

func newMockJournal(t *testing.T) (*PostgresJournal, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewPostgresJournal(db), mock, db
}

func TestPostgresJournalAppend(t *testing.T) {
	j, mock, db := newMockJournal(t)
	defer db.Close()

	e := entry(1)
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(int64(1), e.TxRef, admin.Hex(), "MatchData", common.Address{}.Hex(), "recordInteraction", []byte(`[1]`), e.At).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, j.Append(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJournalAppendConflict(t *testing.T) {
	j, mock, db := newMockJournal(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

	err := j.Append(context.Background(), entry(1))
	assert.ErrorIs(t, err, ErrSequenceConflict)
}

func TestPostgresJournalAppendUnexpected(t *testing.T) {
	j, mock, db := newMockJournal(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO ledger_entries").
		WillReturnError(errors.New("db network error"))

	err := j.Append(context.Background(), entry(1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSequenceConflict)
	assert.Contains(t, err.Error(), "unexpected DB error")
}

func TestPostgresJournalLoad(t *testing.T) {
	j, mock, db := newMockJournal(t)
	defer db.Close()

	e := entry(1)
	rows := sqlmock.NewRows([]string{"seq", "tx_ref", "caller", "target", "address", "method", "args", "created_at"}).
		AddRow(int64(1), e.TxRef, admin.Hex(), e.Target, common.Address{}.Hex(), e.Method, []byte(`[1]`), e.At)
	mock.ExpectQuery("SELECT (.+) FROM ledger_entries ORDER BY seq ASC").WillReturnRows(rows)

	got, err := j.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresJournalLive(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))

	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE ledger_entries (
		seq BIGINT PRIMARY KEY, tx_ref TEXT NOT NULL, caller TEXT NOT NULL, target TEXT NOT NULL,
		address TEXT NOT NULL, method TEXT NOT NULL, args JSONB NOT NULL, created_at TIMESTAMPTZ NOT NULL)`)
	require.NoError(t, err)

	j := NewPostgresJournal(db)
	require.NoError(t, j.Append(ctx, entry(1)))
	assert.ErrorIs(t, j.Append(ctx, entry(1)), ErrSequenceConflict)

	got, err := j.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
