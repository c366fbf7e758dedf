package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

// pqCannotConnectNow is raised by Postgres while the server is starting or
// an Aurora Serverless cluster is resuming.
const pqCannotConnectNow = "57P03"

// sqlDialect captures the differences between the SQL drivers we support.
type sqlDialect struct {
	name        string
	driver      string
	placeholder func(i int, name string) string
}

var (
	postgresDialect = sqlDialect{
		name:        driverPostgres,
		driver:      "postgres",
		placeholder: func(i int, _ string) string { return fmt.Sprintf("$%d", i) },
	}
	sqliteDialect = sqlDialect{
		name:        driverSQLite,
		driver:      "sqlite3",
		placeholder: func(int, string) string { return "?" },
	}
)

// SQLTicketSource reads tickets through database/sql.
type SQLTicketSource struct {
	db      *sql.DB
	dialect sqlDialect
	opts    SourceOptions
}

// OpenSQLTicketSource connects to the ticket store and waits for it to
// accept connections according to opts.Retry.
func OpenSQLTicketSource(ctx context.Context, driver, dsn string, opts SourceOptions) (*SQLTicketSource, error) {
	dialect := postgresDialect
	if driver == driverSQLite {
		dialect = sqliteDialect
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One batch runs serially; a couple of connections is plenty.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	src := NewSQLTicketSource(db, dialect, opts)
	if err := src.prime(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return src, nil
}

// NewSQLTicketSource wraps an open database.
func NewSQLTicketSource(db *sql.DB, dialect sqlDialect, opts SourceOptions) *SQLTicketSource {
	return &SQLTicketSource{db: db, dialect: dialect, opts: opts}
}

// Close releases the database handle.
func (s *SQLTicketSource) Close() error {
	return s.db.Close()
}

func (s *SQLTicketSource) prime(ctx context.Context) error {
	return s.opts.Retry.Do(ctx, s.dialect.name, isPostgresResuming, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	})
}

func isPostgresResuming(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqCannotConnectNow
}

// FetchTickets pages through the tickets closed inside window.
func (s *SQLTicketSource) FetchTickets(ctx context.Context, window Window) ([]dataset.Record, error) {
	query := ticketSQL(len(s.opts.GroupIDs), s.dialect.placeholder)
	debugf("Query: %s", query)

	args := []any{window.Start.Unix(), window.End.Unix()}
	for _, id := range s.opts.GroupIDs {
		args = append(args, id)
	}

	limit := s.opts.pageSize()
	var records []dataset.Record
	unlabeled := 0
	for offset := 0; ; offset += limit {
		pageArgs := append(append([]any{}, args...), limit, offset)
		rows, err := s.fetchPage(ctx, query, pageArgs)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			record, ok, err := row.toRecord()
			if err != nil {
				return nil, err
			}
			if !ok {
				unlabeled++
				continue
			}
			records = append(records, record)
		}
	}

	log.Printf("Fetched %d labeled tickets for %s (%d unlabeled skipped)", len(records), window, unlabeled)
	return records, nil
}

func (s *SQLTicketSource) fetchPage(ctx context.Context, query string, args []any) ([]ticketRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	var page []ticketRow
	for rows.Next() {
		var (
			row   ticketRow
			text  sql.NullString
			label sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &text, &label); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		if text.Valid {
			row.Text = &text.String
		}
		if label.Valid {
			row.Label = &label.Int64
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading tickets: %w", err)
	}
	return page, nil
}

// sqliteDSN strips the sqlite: or sqlite:// scheme used in DATABASE_URL.
func sqliteDSN(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite:"); ok {
		return rest
	}
	return dsn
}
