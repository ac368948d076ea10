// internal/snippets/repo.go
package snippets

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoRow is the repository-level miss; the service maps it to ErrNotFound.
var ErrNoRow = errors.New("snippets: no such row")

const schema = `
CREATE TABLE IF NOT EXISTS snippets (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	language   TEXT NOT NULL,
	version    TEXT NOT NULL,
	owner      TEXT NOT NULL,
	compliance TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS snippets_owner_idx ON snippets(owner);
`

// Repo persists snippet metadata in postgres.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}

func (r *Repo) Insert(ctx context.Context, s Snippet) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO snippets(id, name, language, version, owner, compliance, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$7)`,
		s.ID, s.Name, s.Language, s.Version, s.Owner, string(s.Compliance), s.CreatedAt)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Snippet, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, language, version, owner, compliance, created_at, updated_at
		 FROM snippets WHERE id=$1`, id)
	return scanSnippet(row)
}

// ListByIDs returns the rows for the given ids, preserving the input order
// and skipping ids with no row.
func (r *Repo) ListByIDs(ctx context.Context, ids []string) ([]Snippet, error) {
	if len(ids) == 0 {
		return []Snippet{}, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, language, version, owner, compliance, created_at, updated_at
		 FROM snippets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	byID := make(map[string]Snippet, len(ids))
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		byID[s.ID] = s
	}
	out := make([]Snippet, 0, len(byID))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, rows.Err()
}

func (r *Repo) Touch(ctx context.Context, id string, compliance Compliance, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE snippets SET compliance=$2, updated_at=$3 WHERE id=$1`,
		id, string(compliance), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRow
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM snippets WHERE id=$1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (Snippet, error) {
	var s Snippet
	var compliance string
	err := row.Scan(&s.ID, &s.Name, &s.Language, &s.Version, &s.Owner, &compliance, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snippet{}, ErrNoRow
	}
	if err != nil {
		return Snippet{}, err
	}
	s.Compliance = Compliance(compliance)
	return s, nil
}
