package integrity

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/onnwee/forcemap/internal/db"
)

// Service provides data integrity operations
type Service struct {
	queries *db.Queries
	db      *sql.DB
}

// NewService creates a new integrity service
func NewService(database *sql.DB) *Service {
	return &Service{
		queries: db.New(database),
		db:      database,
	}
}

// CheckResult contains the result of an integrity check
type CheckResult struct {
	CheckName  string
	IssueCount int64
	Details    string
	CheckedAt  time.Time
	HasIssues  bool
}

// nonFinitePredicate matches rows whose stored coordinates are NaN or
// infinite. Postgres treats NaN as equal to itself, so the comparison works.
const nonFinitePredicate = `
	pos_x = 'NaN'::float8 OR pos_y = 'NaN'::float8 OR pos_z = 'NaN'::float8
	OR pos_x IN ('Infinity'::float8, '-Infinity'::float8)
	OR pos_y IN ('Infinity'::float8, '-Infinity'::float8)
	OR pos_z IN ('Infinity'::float8, '-Infinity'::float8)`

// CheckAllIntegrity runs all integrity checks
func (s *Service) CheckAllIntegrity(ctx context.Context, staleRunAfter time.Duration) ([]CheckResult, error) {
	results := make([]CheckResult, 0)
	now := time.Now()

	// Check dangling links
	danglingCount, err := s.countQuery(ctx, `
		SELECT count(*) FROM graph_links l
		WHERE NOT EXISTS (SELECT 1 FROM graph_nodes n WHERE n.graph_id = l.graph_id AND n.id = l.source)
		   OR NOT EXISTS (SELECT 1 FROM graph_nodes n WHERE n.graph_id = l.graph_id AND n.id = l.target)`)
	if err != nil {
		return nil, fmt.Errorf("failed to count dangling links: %w", err)
	}
	results = append(results, CheckResult{
		CheckName:  "dangling_links",
		IssueCount: danglingCount,
		Details:    "Links referencing non-existent nodes",
		CheckedAt:  now,
		HasIssues:  danglingCount > 0,
	})

	// Check non-finite positions
	nonFiniteCount, err := s.countQuery(ctx,
		"SELECT count(*) FROM graph_nodes WHERE "+nonFinitePredicate)
	if err != nil {
		return nil, fmt.Errorf("failed to count non-finite positions: %w", err)
	}
	results = append(results, CheckResult{
		CheckName:  "non_finite_positions",
		IssueCount: nonFiniteCount,
		Details:    "Nodes whose stored coordinates are NaN or infinite",
		CheckedAt:  now,
		HasIssues:  nonFiniteCount > 0,
	})

	// Check partially written positions
	halfPositionedCount, err := s.countQuery(ctx, `
		SELECT count(*) FROM graph_nodes
		WHERE (pos_x IS NULL) <> (pos_y IS NULL) OR (pos_x IS NULL) <> (pos_z IS NULL)`)
	if err != nil {
		return nil, fmt.Errorf("failed to count half-positioned nodes: %w", err)
	}
	results = append(results, CheckResult{
		CheckName:  "half_positioned_nodes",
		IssueCount: halfPositionedCount,
		Details:    "Nodes with a mix of set and missing coordinates",
		CheckedAt:  now,
		HasIssues:  halfPositionedCount > 0,
	})

	// Check stale layout runs
	cutoff := now.Add(-staleRunAfter)
	staleCount, err := s.countQueryArgs(ctx, `
		SELECT count(*) FROM layout_runs
		WHERE status = 'running' AND started_at IS NOT NULL AND started_at < $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to count stale layout runs: %w", err)
	}
	results = append(results, CheckResult{
		CheckName:  "stale_layout_runs",
		IssueCount: staleCount,
		Details:    fmt.Sprintf("Runs marked running for longer than %s", staleRunAfter),
		CheckedAt:  now,
		HasIssues:  staleCount > 0,
	})

	return results, nil
}

// CleanupDanglingLinks removes links referencing non-existent nodes,
// graph by graph. Returns the total number of rows deleted.
func (s *Service) CleanupDanglingLinks(ctx context.Context) (int64, error) {
	var totalDeleted int64
	const pageSize = 500

	for offset := int32(0); ; offset += pageSize {
		graphs, err := s.queries.ListGraphs(ctx, db.ListGraphsParams{Limit: pageSize, Offset: offset})
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to list graphs: %w", err)
		}
		if len(graphs) == 0 {
			break
		}

		for _, g := range graphs {
			deleted, err := s.queries.DeleteDanglingLinks(ctx, g.ID)
			if err != nil {
				return totalDeleted, fmt.Errorf("failed to delete dangling links for graph %s: %w", g.ID, err)
			}
			if deleted > 0 {
				log.Printf("Deleted %d dangling links from graph %s", deleted, g.Name)
			}
			totalDeleted += deleted
		}

		if len(graphs) < pageSize {
			break
		}
	}
	return totalDeleted, nil
}

// ResetNonFinitePositions clears coordinates that are NaN or infinite so the
// next layout run repositions those nodes from scratch.
func (s *Service) ResetNonFinitePositions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE graph_nodes
		SET pos_x = NULL, pos_y = NULL, pos_z = NULL, updated_at = now()
		WHERE `+nonFinitePredicate)
	if err != nil {
		return 0, fmt.Errorf("failed to reset non-finite positions: %w", err)
	}
	return res.RowsAffected()
}

// FailStaleRuns marks layout runs stuck in the running state as failed.
// Returns the number of runs updated.
func (s *Service) FailStaleRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := sql.NullTime{Time: time.Now().Add(-olderThan), Valid: true}
	failed, err := s.queries.FailStaleLayoutRuns(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale layout runs: %w", err)
	}
	if failed > 0 {
		log.Printf("⚠️ Marked %d stale layout runs as failed", failed)
	}
	return failed, nil
}

func (s *Service) countQuery(ctx context.Context, query string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func (s *Service) countQueryArgs(ctx context.Context, query string, args ...any) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// DatabaseStats contains database statistics
type DatabaseStats struct {
	TableName       string
	Size            string
	RowCount        int64
	DeadRows        int64
	LastVacuum      *time.Time
	LastAutoVacuum  *time.Time
	LastAnalyze     *time.Time
	LastAutoAnalyze *time.Time
}

// GetDatabaseStatistics retrieves database statistics for monitoring
func (s *Service) GetDatabaseStatistics(ctx context.Context) ([]DatabaseStats, error) {
	query := `
		SELECT
			schemaname,
			tablename,
			pg_size_pretty(pg_total_relation_size(schemaname||'.'||tablename)) AS size,
			n_live_tup as row_count,
			n_dead_tup as dead_rows,
			last_vacuum,
			last_autovacuum,
			last_analyze,
			last_autoanalyze
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		ORDER BY pg_total_relation_size(schemaname||'.'||tablename) DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query table statistics: %w", err)
	}
	defer rows.Close()

	var stats []DatabaseStats
	for rows.Next() {
		var schema, tablename, size string
		var rowCount, deadRows int64
		var lastVacuum, lastAutoVacuum, lastAnalyze, lastAutoAnalyze sql.NullTime

		err := rows.Scan(&schema, &tablename, &size, &rowCount, &deadRows,
			&lastVacuum, &lastAutoVacuum, &lastAnalyze, &lastAutoAnalyze)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		stat := DatabaseStats{
			TableName: tablename,
			Size:      size,
			RowCount:  rowCount,
			DeadRows:  deadRows,
		}
		if lastVacuum.Valid {
			stat.LastVacuum = &lastVacuum.Time
		}
		if lastAutoVacuum.Valid {
			stat.LastAutoVacuum = &lastAutoVacuum.Time
		}
		if lastAnalyze.Valid {
			stat.LastAnalyze = &lastAnalyze.Time
		}
		if lastAutoAnalyze.Valid {
			stat.LastAutoAnalyze = &lastAutoAnalyze.Time
		}

		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// GetBloatAnalysis identifies tables with high bloat that need vacuum
func (s *Service) GetBloatAnalysis(ctx context.Context) ([]DatabaseStats, error) {
	query := `
		SELECT
			schemaname,
			tablename,
			pg_size_pretty(pg_total_relation_size(schemaname||'.'||tablename)) AS total_size,
			n_live_tup as row_count,
			n_dead_tup as dead_rows
		FROM pg_stat_user_tables
		WHERE schemaname = 'public'
		  AND (n_live_tup + n_dead_tup) > 0
		ORDER BY n_dead_tup DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bloat analysis: %w", err)
	}
	defer rows.Close()

	var stats []DatabaseStats
	for rows.Next() {
		var schema, tablename, size string
		var rowCount, deadRows int64

		err := rows.Scan(&schema, &tablename, &size, &rowCount, &deadRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		stats = append(stats, DatabaseStats{
			TableName: tablename,
			Size:      size,
			RowCount:  rowCount,
			DeadRows:  deadRows,
		})
	}

	return stats, rows.Err()
}
