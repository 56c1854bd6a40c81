package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"MeetingPrep/internal/domain"
	"MeetingPrep/internal/ports"
)

var steeringColumns = []string{
	"id", "version", "product_focus", "icp", "key_pains", "disallowed_claims", "competitor_list",
	"weight_news", "weight_role_pains", "weight_competitors", "specificity_rules", "updated_at",
}

// SteeringRepository is the append-only store of steering profile versions.
type SteeringRepository struct {
	db *DB
}

var _ ports.SteeringRepository = (*SteeringRepository)(nil)

// NewSteeringRepository wires the repository to an open database.
func NewSteeringRepository(db *DB) *SteeringRepository {
	return &SteeringRepository{db: db}
}

// Current returns the profile with the highest version or domain.ErrNotFound.
func (r *SteeringRepository) Current(ctx context.Context) (*domain.SteeringProfile, error) {
	query, args, err := r.db.sb.Select(steeringColumns...).From("steering_profiles").
		OrderBy("version DESC").Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select steering: %w", err)
	}

	p, err := scanProfile(r.db.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("steering profile: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select steering: %w", err)
	}
	return p, nil
}

// Append stores p as a new version. p.Version must be exactly one above the
// highest stored version (or 1 for an empty store); otherwise
// domain.ErrVersionConflict is returned.
func (r *SteeringRepository) Append(ctx context.Context, p domain.SteeringProfile) (*domain.SteeringProfile, error) {
	tx, err := r.db.conn.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin append steering: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	maxQuery, maxArgs, err := r.db.sb.Select("COALESCE(MAX(version), 0)").From("steering_profiles").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build max version: %w", err)
	}
	var latest int
	if err := tx.QueryRowContext(ctx, maxQuery, maxArgs...).Scan(&latest); err != nil {
		return nil, fmt.Errorf("select max version: %w", err)
	}
	if p.Version != latest+1 {
		return nil, fmt.Errorf("append version %d after %d: %w", p.Version, latest, domain.ErrVersionConflict)
	}

	values := []any{p.Version, p.ProductFocus, p.ICP}
	for _, list := range [][]string{p.KeyPains, p.DisallowedClaims, p.CompetitorList} {
		encoded, err := encodeJSON(list)
		if err != nil {
			return nil, err
		}
		values = append(values, encoded)
	}
	rules, err := encodeJSON(p.SpecificityRules)
	if err != nil {
		return nil, err
	}
	values = append(values, p.WeightNews, p.WeightRolePains, p.WeightCompetitors, rules, p.UpdatedAt.UTC().UnixMilli())

	insert, insertArgs, err := r.db.sb.Insert("steering_profiles").
		Columns(steeringColumns[1:]...).
		Values(values...).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert steering: %w", err)
	}

	if err := tx.QueryRowContext(ctx, insert, insertArgs...).Scan(&p.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("append version %d: %w", p.Version, domain.ErrVersionConflict)
		}
		return nil, fmt.Errorf("insert steering: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("append version %d: %w", p.Version, domain.ErrVersionConflict)
		}
		return nil, fmt.Errorf("commit steering: %w", err)
	}

	p.UpdatedAt = time.UnixMilli(p.UpdatedAt.UTC().UnixMilli()).UTC()
	return &p, nil
}

// History returns every stored version, newest first.
func (r *SteeringRepository) History(ctx context.Context) ([]*domain.SteeringProfile, error) {
	query, args, err := r.db.sb.Select(steeringColumns...).From("steering_profiles").OrderBy("version DESC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build steering history: %w", err)
	}

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query steering history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*domain.SteeringProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan steering: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

func scanProfile(row rowScanner) (*domain.SteeringProfile, error) {
	var (
		p                                 domain.SteeringProfile
		keyPains, disallowed, competitors string
		rules                             string
		updatedAt                         int64
	)

	err := row.Scan(&p.ID, &p.Version, &p.ProductFocus, &p.ICP, &keyPains, &disallowed, &competitors,
		&p.WeightNews, &p.WeightRolePains, &p.WeightCompetitors, &rules, &updatedAt)
	if err != nil {
		return nil, err
	}

	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	for _, col := range []struct {
		raw  string
		dest *[]string
	}{
		{keyPains, &p.KeyPains},
		{disallowed, &p.DisallowedClaims},
		{competitors, &p.CompetitorList},
		{rules, &p.SpecificityRules},
	} {
		if err := decodeJSON(col.raw, col.dest); err != nil {
			return nil, err
		}
	}

	return &p, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
