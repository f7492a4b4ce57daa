// Package eventindex is an optional Postgres secondary index over the
// event log, for list queries (events.Filter/events.Order) that would
// otherwise require a full scan of the engine's /events/ keyspace.
// Connection pooling, health checks and embedded-SQL migration support are
// adapted from the validator's pkg/database.Client: same functional-option
// constructor, same schema_migrations bookkeeping, repurposed around one
// append-only event_index table instead of the validator's proof/anchor
// schema.
package eventindex

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/coreconsensus/bridge/pkg/events"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client wraps a connection pool to the secondary index database.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// Open connects to dsn and verifies the connection is alive.
func Open(dsn string, opts ...ClientOption) (*Client, error) {
	if dsn == "" {
		return nil, fmt.Errorf("eventindex: dsn cannot be empty")
	}

	c := &Client{logger: log.New(log.Writer(), "[EventIndex] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(c)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventindex: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	c.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("eventindex: ping: %w", err)
	}

	c.logger.Println("connected to event index database")
	return c, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// migration is one embedded SQL file, named and ordered by filename.
type migration struct {
	Version string
	SQL     string
}

func (c *Client) loadMigrations() ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, migration{Version: strings.TrimSuffix(d.Name(), ".sql"), SQL: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// MigrateUp applies every pending migration inside its own transaction.
func (c *Client) MigrateUp(ctx context.Context) error {
	migrations, err := c.loadMigrations()
	if err != nil {
		return fmt.Errorf("eventindex: load migrations: %w", err)
	}
	applied, err := c.appliedVersions(ctx)
	if err != nil {
		applied = make(map[string]bool)
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		c.logger.Printf("applying %s", m.Version)
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("eventindex: begin migration %s: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("eventindex: apply migration %s: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("eventindex: commit migration %s: %w", m.Version, err)
		}
	}
	return nil
}

func (c *Client) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// Index upserts one event log entry into the secondary index. Called
// alongside eventlog.Log so both stores stay consistent; the engine's own
// /events/ keyspace remains the source of truth, this is a query
// accelerator only.
func (c *Client) Index(ctx context.Context, entry events.EventLog) error {
	payload, err := entry.MarshalCBOR()
	if err != nil {
		return fmt.Errorf("eventindex: marshal entry: %w", err)
	}

	accounts := make([]string, 0, len(entry.Content.Addresses()))
	for _, a := range entry.Content.Addresses() {
		accounts = append(accounts, a.String())
	}

	var symbol *string
	if sym := entry.Symbol(); sym != nil {
		s := sym.String()
		symbol = &s
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO event_index (event_id, kind, kind_name, event_time, accounts, symbol, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.ID.Bytes(), uint16(entry.Kind()), entry.Kind().String(), entry.Time.Seconds(),
		pq.Array(accounts), symbol, payload,
	)
	if err != nil {
		return fmt.Errorf("eventindex: insert: %w", err)
	}
	return nil
}

// List runs filter against the indexed table, returning matching entries in
// order, capped at limit (0 means unbounded). Account/kind/time-range
// predicates are pushed into SQL; the caller never has to scan the full
// event log to serve a filtered query.
func (c *Client) List(ctx context.Context, filter events.Filter, order events.Order, limit int) ([]events.EventLog, error) {
	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.Accounts) > 0 {
		accts := make([]string, len(filter.Accounts))
		for i, a := range filter.Accounts {
			accts[i] = a.String()
		}
		clauses = append(clauses, fmt.Sprintf("accounts && %s", arg(pq.Array(accts))))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]int32, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = int32(k)
		}
		clauses = append(clauses, fmt.Sprintf("kind = ANY(%s)", arg(pq.Array(kinds))))
	}
	if len(filter.Symbols) > 0 {
		syms := make([]string, len(filter.Symbols))
		for i, s := range filter.Symbols {
			syms[i] = s.String()
		}
		clauses = append(clauses, fmt.Sprintf("symbol = ANY(%s)", arg(pq.Array(syms))))
	}
	if filter.DateRange != nil {
		if filter.DateRange.Min != nil {
			clauses = append(clauses, fmt.Sprintf("event_time >= %s", arg(filter.DateRange.Min.Seconds())))
		}
		if filter.DateRange.Max != nil {
			clauses = append(clauses, fmt.Sprintf("event_time <= %s", arg(filter.DateRange.Max.Seconds())))
		}
	}

	query := "SELECT payload FROM event_index"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY event_id"
	if order == events.OrderDescending {
		query += " DESC"
	}
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventindex: query: %w", err)
	}
	defer rows.Close()

	var out []events.EventLog
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("eventindex: scan: %w", err)
		}
		var entry events.EventLog
		if err := entry.UnmarshalCBOR(payload); err != nil {
			return nil, fmt.Errorf("eventindex: decode entry: %w", err)
		}
		if filter.IDRange != nil && !filter.IDRange.Contains(entry.ID) {
			continue
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
