package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/opscart/k8s-resource-audit/pkg/report"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements Store interface using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db, logger: logger}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate applies every embedded migration in name order. Migrations are
// idempotent.
func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		schema, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(schema)); err != nil {
			return fmt.Errorf("failed to execute %s: %w", name, err)
		}
		s.logger.Debug("applied migration", zap.String("name", name))
	}
	return nil
}

// SaveRun stores a run and its namespace rows in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = run.StartedAt
	}

	var summary []byte
	if run.Summary != nil {
		var err error
		if summary, err = json.Marshal(run.Summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO audit_runs (
			id, capability, cluster, status, started_at, finished_at,
			containers, containers_with_issues, critical, warning,
			cpu_waste_millicores, memory_waste_bytes, monthly_waste_cost,
			summary, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID, run.Capability, run.Cluster, run.Status, run.StartedAt, run.FinishedAt,
		run.Containers, run.ContainersWithIssues, run.Critical, run.Warning,
		int64(run.CPUWaste), int64(run.MemoryWaste), run.MonthlyWasteCost,
		nullBytes(summary), nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	nsQuery := `
		INSERT INTO namespace_snapshots (
			run_id, namespace, environment, containers, containers_with_issues,
			critical, health_score, priority, cpu_waste_millicores, memory_waste_bytes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, ns := range run.Namespaces {
		_, err := tx.ExecContext(ctx, nsQuery,
			run.ID, ns.Namespace, ns.Environment, ns.Containers, ns.ContainersWithIssues,
			ns.Critical, ns.HealthScore, string(ns.Priority), int64(ns.CPUWaste), int64(ns.MemoryWaste),
		)
		if err != nil {
			return fmt.Errorf("failed to insert namespace %s: %w", ns.Namespace, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Info("stored audit run", zap.String("run_id", run.ID), zap.Int("namespaces", len(run.Namespaces)))
	return nil
}

// ListRuns returns the latest runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, capability string, limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, capability, cluster, status, started_at, finished_at,
			containers, containers_with_issues, critical, warning,
			cpu_waste_millicores, memory_waste_bytes, monthly_waste_cost, error_message
		FROM audit_runs
		WHERE capability = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, capability, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var run RunRecord
		var errorMessage sql.NullString

		err := rows.Scan(
			&run.ID, &run.Capability, &run.Cluster, &run.Status, &run.StartedAt, &run.FinishedAt,
			&run.Containers, &run.ContainersWithIssues, &run.Critical, &run.Warning,
			&run.CPUWaste, &run.MemoryWaste, &run.MonthlyWasteCost, &errorMessage,
		)
		if err != nil {
			return nil, err
		}
		run.Error = errorMessage.String
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}

// LatestSummary returns the summary of the newest successful run other than
// excludeID.
func (s *PostgresStore) LatestSummary(ctx context.Context, capability, excludeID string) (*report.Summary, string, error) {
	query := `
		SELECT id, summary
		FROM audit_runs
		WHERE capability = $1 AND status = 'success' AND id <> $2 AND summary IS NOT NULL
		ORDER BY started_at DESC
		LIMIT 1
	`

	var id string
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, capability, excludeID).Scan(&id, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNoRuns
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load latest summary: %w", err)
	}

	var summary report.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, "", fmt.Errorf("failed to decode summary of run %s: %w", id, err)
	}
	return &summary, id, nil
}

// NamespaceHistory returns the namespace across the latest runs, newest first.
func (s *PostgresStore) NamespaceHistory(ctx context.Context, namespace string, limit int) ([]*NamespacePoint, error) {
	query := `
		SELECT n.run_id, r.started_at, n.namespace, n.environment, n.containers,
			n.containers_with_issues, n.critical, n.health_score, n.priority,
			n.cpu_waste_millicores, n.memory_waste_bytes
		FROM namespace_snapshots n
		JOIN audit_runs r ON r.id = n.run_id
		WHERE n.namespace = $1
		ORDER BY r.started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace history: %w", err)
	}
	defer rows.Close()

	var points []*NamespacePoint
	for rows.Next() {
		var p NamespacePoint
		err := rows.Scan(
			&p.RunID, &p.StartedAt, &p.Namespace, &p.Environment, &p.Containers,
			&p.ContainersWithIssues, &p.Critical, &p.HealthScore, &p.Priority,
			&p.CPUWaste, &p.MemoryWaste,
		)
		if err != nil {
			return nil, err
		}
		points = append(points, &p)
	}

	return points, rows.Err()
}

// Ping checks database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}
