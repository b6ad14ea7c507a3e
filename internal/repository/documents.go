package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"farmnook-dispatch/internal/apperr"
	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
)

const changesChannel = "document_changes"

// DocumentRepo is a document store over a single JSONB table.
type DocumentRepo struct {
	db     *pgxpool.Pool
	logger logx.Logger
	retry  store.Retry
}

var _ store.Store = (*DocumentRepo)(nil)

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *pgxpool.Pool, logger logx.Logger) *DocumentRepo {
	return &DocumentRepo{db: db, logger: logger, retry: store.DefaultRetry}
}

// querier is the subset of pgx shared by the pool and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IsDuplicate - signals that the error is a duplicate key violation.
func IsDuplicate(err error) bool {
	var pgerr *pgconn.PgError
	return errors.As(err, &pgerr) && pgerr.Code == "23505"
}

// IsNotFound - signals that the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// NewID returns a random UUID.
func (r *DocumentRepo) NewID(string) string { return uuid.NewString() }

// Get returns a document by id.
func (r *DocumentRepo) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return getDocument(ctx, r.db, collection, id, false)
}

// Add inserts a document under a generated id.
func (r *DocumentRepo) Add(ctx context.Context, collection string, data store.Fields) (string, error) {
	id := r.NewID(collection)
	if err := insertDocument(ctx, r.db, collection, id, data); err != nil {
		return "", err
	}
	return id, nil
}

// Set creates or replaces a document; with merge the new fields are merged into the old body.
func (r *DocumentRepo) Set(ctx context.Context, collection, id string, data store.Fields, merge bool) error {
	body, err := marshal(data)
	if err != nil {
		return err
	}
	update := `data = EXCLUDED.data`
	if merge {
		update = `data = documents.data || EXCLUDED.data`
	}
	_, err = r.db.Exec(ctx, `
        INSERT INTO documents (collection, id, data)
        VALUES ($1, $2, $3::jsonb)
        ON CONFLICT (collection, id) DO UPDATE
        SET `+update+`, updated_at = now()
    `, collection, id, body)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Update merges top-level fields into an existing document.
func (r *DocumentRepo) Update(ctx context.Context, collection, id string, data store.Fields) error {
	return updateDocument(ctx, r.db, collection, id, data)
}

// GetAll returns the documents among ids that exist.
func (r *DocumentRepo) GetAll(ctx context.Context, collection string, ids []string) ([]store.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `
        SELECT id, data FROM documents
        WHERE collection = $1 AND id = ANY($2)
        ORDER BY id
    `, collection, ids)
	if err != nil {
		return nil, fmt.Errorf("get all %s: %w", collection, err)
	}
	return scanDocuments(rows)
}

// Query returns documents whose top-level fields equal the filter values.
func (r *DocumentRepo) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	sql, args, err := buildQuery(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	return scanDocuments(rows)
}

// WithTx opens a transaction and executes fn within it.
func (r *DocumentRepo) WithTx(ctx context.Context, fn func(tx store.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (r *DocumentRepo) Close() error {
	r.db.Close()
	return nil
}

// TxRepo is the transactional view of DocumentRepo. Reads lock the row.
type TxRepo struct {
	tx pgx.Tx
}

// Get reads a document with SELECT ... FOR UPDATE.
func (t *TxRepo) Get(ctx context.Context, collection, id string) (store.Document, error) {
	return getDocument(ctx, t.tx, collection, id, true)
}

// Create inserts a document; an existing id yields apperr.ErrConflict.
func (t *TxRepo) Create(ctx context.Context, collection, id string, data store.Fields) error {
	return insertDocument(ctx, t.tx, collection, id, data)
}

// Update merges fields into an existing document.
func (t *TxRepo) Update(ctx context.Context, collection, id string, data store.Fields) error {
	return updateDocument(ctx, t.tx, collection, id, data)
}

func getDocument(ctx context.Context, q querier, collection, id string, forUpdate bool) (store.Document, error) {
	sql := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	if err := q.QueryRow(ctx, sql, collection, id).Scan(&raw); err != nil {
		if IsNotFound(err) {
			return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
		}
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := unmarshal(raw)
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}

func insertDocument(ctx context.Context, q querier, collection, id string, data store.Fields) error {
	body, err := marshal(data)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
        INSERT INTO documents (collection, id, data)
        VALUES ($1, $2, $3::jsonb)
    `, collection, id, body)
	if err != nil {
		if IsDuplicate(err) {
			return fmt.Errorf("%s/%s already exists: %w", collection, id, apperr.ErrConflict)
		}
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func updateDocument(ctx context.Context, q querier, collection, id string, data store.Fields) error {
	body, err := marshal(data)
	if err != nil {
		return err
	}
	ct, err := q.Exec(ctx, `
        UPDATE documents
        SET data = data || $3::jsonb, updated_at = now()
        WHERE collection = $1 AND id = $2
    `, collection, id, body)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, apperr.ErrNotFound)
	}
	return nil
}

// buildQuery turns equality filters into a JSONB containment test plus
// explicit null checks for filters on a nil value.
func buildQuery(q store.Query) (string, []any, error) {
	if strings.TrimSpace(q.Collection) == "" {
		return "", nil, fmt.Errorf("query: empty collection: %w", apperr.ErrInvalid)
	}
	var (
		sb       strings.Builder
		args     = []any{q.Collection}
		contains = store.Fields{}
		nullable []string
	)
	for _, f := range q.Where {
		if f.Value == nil {
			nullable = append(nullable, f.Field)
			continue
		}
		contains[f.Field] = f.Value
	}
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	if len(contains) > 0 {
		body, err := marshal(contains)
		if err != nil {
			return "", nil, err
		}
		args = append(args, body)
		fmt.Fprintf(&sb, ` AND data @> $%d::jsonb`, len(args))
	}
	sort.Strings(nullable)
	for _, field := range nullable {
		args = append(args, field)
		fmt.Fprintf(&sb, ` AND COALESCE(data -> $%d::text, 'null'::jsonb) = 'null'::jsonb`, len(args))
	}
	sb.WriteString(` ORDER BY id`)
	return sb.String(), args, nil
}

func scanDocuments(rows pgx.Rows) ([]store.Document, error) {
	defer rows.Close()
	var out []store.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		data, err := unmarshal(raw)
		if err != nil {
			return nil, fmt.Errorf("document %q: %w", id, err)
		}
		out = append(out, store.Document{ID: id, Data: data})
	}
	return out, rows.Err()
}

func marshal(data store.Fields) ([]byte, error) {
	if data == nil {
		data = store.Fields{}
	}
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return body, nil
}

func unmarshal(raw []byte) (store.Fields, error) {
	var data store.Fields
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if data == nil {
		data = store.Fields{}
	}
	return data, nil
}
