package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mehmetymw/tap-libsql/internal/config"
	"github.com/mehmetymw/tap-libsql/internal/types"
)

// TableStream extracts one table's rows through the shared connection.
// One instance serves one full sync of one table: the metadata query runs
// once and is memoized, then records stream batch by batch until exhausted.
type TableStream struct {
	table     config.Table
	mgr       *Manager
	batchSize int
	logger    *zap.Logger

	cols   []Column
	schema *types.Schema
}

func NewTableStream(mgr *Manager, table config.Table, batchSize int, logger *zap.Logger) *TableStream {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &TableStream{table: table, mgr: mgr, batchSize: batchSize, logger: logger}
}

func (s *TableStream) Name() string { return s.table.Name }

// Sorted reports whether the emitted sequence is ordered by the replication
// key. True only for incremental mode, where the query carries an explicit
// ORDER BY; full-table output order is unspecified.
func (s *TableStream) Sorted() bool {
	return s.table.ReplicationMethod == types.Incremental
}

// ReplicationKey returns the watermark column, or "" for full-table mode.
func (s *TableStream) ReplicationKey() string {
	if s.table.ReplicationMethod == types.Incremental {
		return s.table.ReplicationKey
	}
	return ""
}

func (s *TableStream) columns(ctx context.Context) ([]Column, error) {
	if s.cols != nil {
		return s.cols, nil
	}
	db, err := s.mgr.DB(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Discovering schema", zap.String("table", s.table.Name))
	cols, err := tableColumns(ctx, db, s.table.Name)
	if err != nil {
		return nil, err
	}
	s.cols = cols
	return s.cols, nil
}

// Schema returns the portable schema for the table, discovering and
// memoizing it on first call.
func (s *TableStream) Schema(ctx context.Context) (*types.Schema, error) {
	if s.schema != nil {
		return s.schema, nil
	}
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	s.schema = buildSchema(cols)
	s.logger.Info("Discovered schema",
		zap.String("table", s.table.Name),
		zap.Int("columns", len(s.schema.Columns)))
	return s.schema, nil
}

// PrimaryKeys returns the key columns for the table. An explicitly
// configured list is authoritative and used verbatim, even when it
// disagrees with the keys detected from table metadata.
func (s *TableStream) PrimaryKeys(ctx context.Context) ([]string, error) {
	if s.table.PrimaryKey != nil {
		s.logger.Info("Using configured primary keys",
			zap.String("table", s.table.Name),
			zap.Strings("keys", s.table.PrimaryKey))
		return s.table.PrimaryKey, nil
	}
	cols, err := s.columns(ctx)
	if err != nil {
		return nil, err
	}
	keys := detectPrimaryKeys(cols)
	if keys != nil {
		s.logger.Info("Detected primary keys",
			zap.String("table", s.table.Name),
			zap.Strings("keys", keys))
	}
	return keys, nil
}

// Records executes the table query and returns a lazy, single-pass record
// iterator. start is the prior watermark value, or nil for a full initial
// sync; it only applies in incremental mode.
func (s *TableStream) Records(ctx context.Context, start any) (*RecordIterator, error) {
	var query string
	switch s.table.ReplicationMethod {
	case types.Incremental:
		if s.table.ReplicationKey == "" {
			return nil, fmt.Errorf("%w: table %q is INCREMENTAL but has no replication_key", types.ErrConfig, s.table.Name)
		}
		query = buildIncrementalQuery(s.table.Name, s.table.ReplicationKey, start)
	default:
		query = buildFullTableQuery(s.table.Name)
	}

	db, err := s.mgr.DB(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Executing query",
		zap.String("table", s.table.Name),
		zap.String("query", query))

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrQuery, query, err)
	}

	names, err := rows.Columns()
	if err != nil || len(names) == 0 {
		// Fall back to a repeat metadata query for the column list.
		cols, cerr := s.columns(ctx)
		if cerr != nil {
			rows.Close()
			return nil, cerr
		}
		names = make([]string, len(cols))
		for i, c := range cols {
			names[i] = c.Name
		}
	}

	return &RecordIterator{
		rows:      rows,
		columns:   names,
		table:     s.table.Name,
		batchSize: s.batchSize,
		logger:    s.logger,
	}, nil
}

// RecordIterator is a forward-only, single-pass sequence of records over an
// open cursor, in the Next/Record/Err shape of sql.Rows. Abandoning it
// early is safe; Close releases the cursor on every exit path.
type RecordIterator struct {
	rows      *sql.Rows
	columns   []string
	table     string
	batchSize int
	logger    *zap.Logger

	rec    types.Record
	err    error
	count  int
	closed bool
}

// Next advances to the next record. It returns false once the cursor is
// exhausted or a fetch error occurs; check Err afterwards.
func (it *RecordIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			it.err = fmt.Errorf("%w: fetch from %s: %v", types.ErrQuery, it.table, err)
		} else {
			it.logger.Info("Completed fetching records",
				zap.String("table", it.table),
				zap.Int("records", it.count))
		}
		it.Close()
		return false
	}

	vals := make([]any, len(it.columns))
	ptrs := make([]any, len(it.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		it.err = fmt.Errorf("%w: scan from %s: %v", types.ErrQuery, it.table, err)
		it.Close()
		return false
	}

	rec := make(types.Record, len(it.columns)+1)
	for i, name := range it.columns {
		rec[name] = convertValue(vals[i])
	}
	// Stamped at yield time, not batch-fetch time.
	rec[types.ExtractedAtColumn] = time.Now().UTC().Format(time.RFC3339)

	it.rec = rec
	it.count++
	if it.count%it.batchSize == 0 {
		it.logger.Info("Fetched records",
			zap.String("table", it.table),
			zap.Int("records", it.count))
	}
	return true
}

// Record returns the record produced by the last successful Next.
func (it *RecordIterator) Record() types.Record { return it.rec }

func (it *RecordIterator) Err() error { return it.err }

// Count returns the number of records emitted so far.
func (it *RecordIterator) Count() int { return it.count }

// Close releases the underlying cursor. Safe to call more than once.
func (it *RecordIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}

// convertValue coerces a driver value to a JSON-representable primitive:
// nil stays nil, timestamps become ISO-8601 strings, binary becomes base64.
func convertValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	default:
		return v
	}
}
