// Package store is a typed wrapper over a document-shaped Postgres schema:
// every collection is a table with a stable id column and a jsonb doc
// column. It exposes the small primitive set the rest of the broker is built
// on — insert, upsert, find_one, find, update_one, find_one_and_update,
// delete_one — and imposes no higher-level abstraction: callers build their
// own filters and mutations and own their own queries, the same way
// lineage_store.go builds its own SQL rather than going through an ORM.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lila-deepq/deepq/internal/apperror"
)

// Document is the constraint satisfied by every type persisted through
// Store: it must know its own id and be JSON-serializable into the doc
// column.
type Document interface {
	DocID() string
}

// Filter is a raw SQL WHERE fragment (without the "WHERE" keyword) plus its
// positional arguments. Fragments reference jsonb fields via "doc->>'field'"
// or "doc->'field'"; callers (the model-owning packages) build these.
type Filter struct {
	Where string
	Args  []any
}

// And combines two filters with a boolean AND, renumbering placeholders.
func And(a, b Filter) Filter {
	if a.Where == "" {
		return b
	}

	if b.Where == "" {
		return a
	}

	shifted, args := renumber(b.Where, len(a.Args), b.Args)

	return Filter{
		Where: "(" + a.Where + ") AND (" + shifted + ")",
		Args:  append(append([]any{}, a.Args...), args...),
	}
}

func renumber(where string, offset int, args []any) (string, []any) {
	out := make([]byte, 0, len(where))
	for i := 0; i < len(where); i++ {
		if where[i] == '$' && i+1 < len(where) && where[i+1] >= '0' && where[i+1] <= '9' {
			j := i + 1
			n := 0

			for j < len(where) && where[j] >= '0' && where[j] <= '9' {
				n = n*10 + int(where[j]-'0')
				j++
			}

			out = append(out, []byte(fmt.Sprintf("$%d", n+offset))...)
			i = j - 1

			continue
		}

		out = append(out, where[i])
	}

	return string(out), args
}

// Sort is a raw SQL ORDER BY fragment (without the "ORDER BY" keywords).
type Sort string

// Mutation is a raw jsonb patch merged into the existing doc via the `||`
// operator (shallow merge, same semantics as Postgres's jsonb concatenation).
// Build it with Set.
type Mutation struct {
	json []byte
}

// Set builds a Mutation from a set of top-level field assignments.
func Set(fields map[string]any) Mutation {
	b, err := json.Marshal(fields)
	if err != nil {
		// fields is always a small map of primitives/time.Time/strings built
		// by callers; a marshal failure here is a programming error.
		panic(fmt.Sprintf("store: mutation fields do not marshal: %v", err))
	}

	return Mutation{json: b}
}

// Store is a handle to a shared, pooled Postgres connection. Like the
// reference corpus's storage.Connection, it has value semantics over an
// internally synchronized pool — pass it by copy, it never needs a pointer
// receiver to share state.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened database handle. Callers are responsible for
// pool tuning and health checks at boot (see internal/config).
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// HealthCheck verifies the connection pool can reach the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperror.Wrap(apperror.Connectivity, "store: ping failed", err)
	}

	return nil
}

// Insert inserts a new document into coll and returns its id.
func Insert[T Document](ctx context.Context, s *Store, coll string, doc T) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", apperror.Wrap(apperror.Internal, "store: marshal document", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)`, pq.QuoteIdentifier(coll))

	_, err = s.db.ExecContext(ctx, query, doc.DocID(), body)
	if err != nil {
		return "", classify(err)
	}

	return doc.DocID(), nil
}

// Upsert inserts doc into coll, or replaces the existing row with the same
// id. Used by the games collection, which is idempotent on re-submission.
func Upsert[T Document](ctx context.Context, s *Store, coll string, doc T) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return apperror.Wrap(apperror.Internal, "store: marshal document", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc
	`, pq.QuoteIdentifier(coll))

	_, err = s.db.ExecContext(ctx, query, doc.DocID(), body)
	if err != nil {
		return classify(err)
	}

	return nil
}

// FindOne returns the first document in coll matching filter, or
// apperror.NotFound if none matches.
func FindOne[T any](ctx context.Context, s *Store, coll string, filter Filter) (*T, error) {
	where, args := whereClause(filter)
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s LIMIT 1`, pq.QuoteIdentifier(coll), where)

	var body []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.New(apperror.NotFound, coll+": no matching document")
		}

		return nil, classify(err)
	}

	var out T

	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.Wrap(apperror.Internal, "store: unmarshal document", err)
	}

	return &out, nil
}

// Cursor is a lazy, forward-only iterator over Find results.
type Cursor[T any] struct {
	rows *sql.Rows
}

// Next advances the cursor and decodes the next document. Returns
// (doc, true, nil) while there are rows, (zero, false, nil) at the end, and
// (zero, false, err) on a decode or connectivity error.
func (c *Cursor[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T

	if !c.rows.Next() {
		return zero, false, classify(c.rows.Err())
	}

	var body []byte
	if err := c.rows.Scan(&body); err != nil {
		return zero, false, apperror.Wrap(apperror.Internal, "store: scan row", err)
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, false, apperror.Wrap(apperror.Internal, "store: unmarshal document", err)
	}

	return out, true, nil
}

// Close releases the cursor's underlying rows.
func (c *Cursor[T]) Close() error { return c.rows.Close() }

// Find returns a lazy cursor over every document in coll matching filter,
// ordered by sort.
func Find[T any](ctx context.Context, s *Store, coll string, filter Filter, sort Sort) (*Cursor[T], error) {
	where, args := whereClause(filter)
	orderBy := ""

	if sort != "" {
		orderBy = " ORDER BY " + string(sort)
	}

	query := fmt.Sprintf(`SELECT doc FROM %s WHERE %s%s`, pq.QuoteIdentifier(coll), where, orderBy)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}

	return &Cursor[T]{rows: rows}, nil
}

// UpdateOne applies mutation to the first document matching filter. Returns
// whether a document matched.
func UpdateOne(ctx context.Context, s *Store, coll string, filter Filter, mutation Mutation) (bool, error) {
	where, args := whereClause(filter)
	args = append(args, mutation.json)
	placeholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		UPDATE %s SET doc = doc || %s::jsonb
		WHERE id = (SELECT id FROM %s WHERE %s LIMIT 1)
	`, pq.QuoteIdentifier(coll), placeholder, pq.QuoteIdentifier(coll), where)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, classify(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.Wrap(apperror.Internal, "store: rows affected", err)
	}

	return n > 0, nil
}

// FindOneAndUpdate atomically selects the document matching filter (ordered
// by sort, first match wins), applies mutation, and returns the document
// *after* mutation — in one round trip via a single UPDATE ... RETURNING
// statement with a correlated subquery for selection and locking. This is
// the linchpin atomic primitive the queue's assign/complete operations are
// built on; it must never be split into a read followed by a write.
func FindOneAndUpdate[T any](
	ctx context.Context,
	s *Store,
	coll string,
	filter Filter,
	mutation Mutation,
	sort Sort,
) (*T, error) {
	where, args := whereClause(filter)
	args = append(args, mutation.json)
	placeholder := fmt.Sprintf("$%d", len(args))

	orderBy := ""
	if sort != "" {
		orderBy = " ORDER BY " + string(sort)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET doc = doc || %s::jsonb
		WHERE id = (
			SELECT id FROM %s WHERE %s%s LIMIT 1 FOR UPDATE SKIP LOCKED
		)
		RETURNING doc
	`, pq.QuoteIdentifier(coll), placeholder, pq.QuoteIdentifier(coll), where, orderBy)

	var body []byte

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, classify(err)
	}

	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apperror.Wrap(apperror.Internal, "store: unmarshal document", err)
	}

	return &out, nil
}

// DeleteOne removes the first document matching filter.
func DeleteOne(ctx context.Context, s *Store, coll string, filter Filter) error {
	where, args := whereClause(filter)
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s`, pq.QuoteIdentifier(coll), where)

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return classify(err)
	}

	return nil
}

// Count returns the number of documents in coll matching filter.
func Count(ctx context.Context, s *Store, coll string, filter Filter) (int64, error) {
	where, args := whereClause(filter)
	query := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, pq.QuoteIdentifier(coll), where)

	var n int64

	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	if err != nil {
		return 0, classify(err)
	}

	return n, nil
}

func whereClause(f Filter) (string, []any) {
	if f.Where == "" {
		return "TRUE", nil
	}

	return f.Where, f.Args
}

// classify maps a raw database/sql or lib/pq error onto the broker's error
// taxonomy. Connection-class pq errors (SQLSTATE class 08) and the sentinel
// driver errors become apperror.Connectivity; everything else is Internal,
// matching the reference corpus's isDatabaseConnectionError classification.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if len(pqErr.Code) >= 2 && pqErr.Code.Class() == "08" {
			return apperror.Wrap(apperror.Connectivity, "store: connection error", err)
		}

		if pqErr.Code.Class() == "23" {
			return apperror.Wrap(apperror.Conflict, "store: constraint violation", err)
		}

		return apperror.Wrap(apperror.Internal, "store: database error", err)
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return apperror.Wrap(apperror.Connectivity, "store: connection error", err)
	}

	return apperror.Wrap(apperror.Internal, "store: database error", err)
}
