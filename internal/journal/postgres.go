package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

const entriesTable = "ledger_entries"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresJournal stores entries in the ledger_entries table created by the
// migrations package. The primary key on seq makes a concurrent writer fail
// with ErrSequenceConflict instead of forking the log.
type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (p *PostgresJournal) Append(ctx context.Context, e Entry) error {
	query, args, err := psql.Insert(entriesTable).
		Columns("seq", "tx_ref", "caller", "target", "address", "method", "args", "created_at").
		Values(int64(e.Seq), e.TxRef, e.Caller.Hex(), e.Target, e.Address.Hex(), e.Method, []byte(e.Args), e.At.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("append seq %d: %w", e.Seq, ErrSequenceConflict)
		}
		return fmt.Errorf("unexpected DB error: %w", err)
	}
	return nil
}

func (p *PostgresJournal) Load(ctx context.Context) ([]Entry, error) {
	query, args, err := psql.Select("seq", "tx_ref", "caller", "target", "address", "method", "args", "created_at").
		From(entriesTable).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unexpected DB error: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			seq     int64
			caller  string
			address string
			raw     []byte
			at      time.Time
		)
		if err := rows.Scan(&seq, &e.TxRef, &caller, &e.Target, &address, &e.Method, &raw, &at); err != nil {
			return nil, err
		}
		e.Seq = uint64(seq)
		e.Caller = common.HexToAddress(caller)
		e.Address = common.HexToAddress(address)
		e.Args = raw
		e.At = at.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping reports database reachability for the health endpoint.
func (p *PostgresJournal) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
