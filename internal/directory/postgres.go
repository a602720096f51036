package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/s100fed/fedroute/internal/federation"
	"github.com/s100fed/fedroute/internal/geo"
	"github.com/s100fed/fedroute/internal/logging"
)

// PostgresStore reads candidates from the federation directory tables.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return db, nil
}

// NewPostgresStore wraps an open database.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &PostgresStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const candidateSelect = `
SELECT c.id, c.node_id, c.product_type, c.service_type, c.is_enabled, c.endpoint, c.version,
       COALESCE(c.dataset_id, ''),
       n.name, n.level, n.health_status, COALESCE(n.coverage, ''), n.is_active, COALESCE(n.parent_id, ''),
       d.id, d.name, d.description, d.product_type, d.status, d.coverage, d.published_at
FROM capabilities c
JOIN nodes n ON n.id = c.node_id
LEFT JOIN datasets d ON d.id = c.dataset_id`

// buildCandidateQuery renders the lookup for f with positional arguments.
func buildCandidateQuery(f Filter) (string, []any) {
	statuses := federation.AtLeast(f.Threshold())
	healths := make([]string, len(statuses))
	for i, h := range statuses {
		healths[i] = string(h)
	}

	where := []string{
		"c.is_enabled",
		"n.is_active",
		"n.health_status = ANY($1)",
		"(d.id IS NULL OR d.status = 'PUBLISHED')",
	}
	args := []any{pq.Array(healths)}

	argIdx := 2
	if len(f.ProductTypes) > 0 {
		where = append(where, fmt.Sprintf("c.product_type = ANY($%d)", argIdx))
		args = append(args, pq.Array(f.ProductTypes))
		argIdx++
	}
	if len(f.ServiceTypes) > 0 {
		where = append(where, fmt.Sprintf("c.service_type = ANY($%d)", argIdx))
		args = append(args, pq.Array(f.ServiceTypes))
		argIdx++
	}

	query := candidateSelect + "\nWHERE " + strings.Join(where, " AND ") +
		"\nORDER BY n.level ASC, c.product_type ASC, c.service_type ASC, c.id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf("\nLIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}
	return query, args
}

// FindCandidates implements Store.
func (s *PostgresStore) FindCandidates(ctx context.Context, f Filter) ([]federation.Candidate, error) {
	log := logging.FromContext(ctx)
	query, args := buildCandidateQuery(f)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query candidates: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []federation.Candidate
	for rows.Next() {
		c, scanErr := scanCandidate(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: scan candidate: %w", ErrStoreUnavailable, scanErr)
		}
		if err := federation.ValidateEndpoint(c.Capability.Endpoint); err != nil {
			log.Warn().
				Ctx(ctx).
				Str("component", "directory").
				Str("operation", "find_candidates").
				Str("capability_id", c.ID()).
				Err(err).
				Msg("skipping capability with unusable endpoint")
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate candidates: %w", ErrStoreUnavailable, err)
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "directory").
		Str("operation", "find_candidates").
		Strs("product_types", f.ProductTypes).
		Strs("service_types", f.ServiceTypes).
		Int("candidate_count", len(out)).
		Msg("postgres directory lookup")

	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(row rowScanner) (federation.Candidate, error) {
	var (
		c        federation.Candidate
		health   string
		coverage string

		dsID, dsName, dsDesc, dsProduct, dsStatus, dsCoverage sql.NullString
		dsPublished                                          sql.NullTime
	)
	err := row.Scan(
		&c.Capability.ID, &c.Capability.NodeID, &c.Capability.ProductType, &c.Capability.ServiceType,
		&c.Capability.Enabled, &c.Capability.Endpoint, &c.Capability.Version, &c.Capability.DatasetID,
		&c.Node.Name, &c.Node.Level, &health, &coverage, &c.Node.Active, &c.Node.ParentID,
		&dsID, &dsName, &dsDesc, &dsProduct, &dsStatus, &dsCoverage, &dsPublished,
	)
	if err != nil {
		return federation.Candidate{}, err
	}

	c.Node.ID = c.Capability.NodeID
	c.Node.Health = federation.ParseHealthStatus(health)
	c.Node.Coverage = geo.ParseCoverage(coverage)
	c.Capability.Version = NormalizeVersion(c.Capability.Version)

	if dsID.Valid {
		status, _ := federation.ParseDatasetStatus(dsStatus.String)
		ds := &federation.Dataset{
			ID:          dsID.String,
			Name:        dsName.String,
			Description: dsDesc.String,
			ProductType: dsProduct.String,
			Status:      status,
			Coverage:    geo.ParseCoverage(dsCoverage.String),
		}
		if dsPublished.Valid {
			t := dsPublished.Time
			ds.PublishedAt = &t
		}
		c.Dataset = ds
	}
	return c, nil
}
