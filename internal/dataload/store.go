package dataload

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/quantfolio/riskapi/internal/domain"
)

const returnsSchema = `
CREATE TABLE IF NOT EXISTS monthly_returns (
	date  TEXT NOT NULL,
	asset TEXT NOT NULL,
	ret   REAL,
	PRIMARY KEY (date, asset)
);
CREATE INDEX IF NOT EXISTS idx_monthly_returns_asset ON monthly_returns(asset);
`

// ReturnStore caches the last good return series in SQLite so the service can
// start without the CSV inputs mounted.
type ReturnStore struct {
	conn *sql.DB
	path string
}

// OpenReturnStore opens (and migrates) the return cache at path.
func OpenReturnStore(path string) (*ReturnStore, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path to absolute: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	connStr := absPath + "?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=temp_store(MEMORY)" +
		"&_pragma=cache_size(-64000)"

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open return store: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(1 * time.Hour)
	conn.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping return store: %w", err)
	}

	if _, err := conn.Exec(returnsSchema); err != nil {
		return nil, fmt.Errorf("failed to migrate return store: %w", err)
	}

	return &ReturnStore{conn: conn, path: absPath}, nil
}

// SaveReturns replaces the cached series with the given table. NaN
// observations are stored as NULL.
func (s *ReturnStore) SaveReturns(table *domain.ReturnTable) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin return store transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM monthly_returns"); err != nil {
		return fmt.Errorf("failed to clear return store: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO monthly_returns (date, asset, ret) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare return insert: %w", err)
	}
	defer stmt.Close()

	for _, asset := range table.Assets {
		col := table.Column(asset)
		for i, date := range table.Dates {
			var ret interface{}
			if !math.IsNaN(col[i]) {
				ret = col[i]
			}
			if _, err := stmt.Exec(date, asset, ret); err != nil {
				return fmt.Errorf("failed to insert return for %s: %w", asset, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit return store transaction: %w", err)
	}
	return nil
}

// LoadReturns rebuilds the cached table, dates ascending. NULL observations
// come back as NaN.
func (s *ReturnStore) LoadReturns() (*domain.ReturnTable, error) {
	rows, err := s.conn.Query("SELECT date, asset, ret FROM monthly_returns ORDER BY date, asset")
	if err != nil {
		return nil, fmt.Errorf("failed to query return store: %w", err)
	}
	defer rows.Close()

	var dates []string
	var assets []string
	dateSeen := make(map[string]int)
	assetSeen := make(map[string]bool)

	type obs struct {
		date, asset string
		ret         float64
	}
	var all []obs

	for rows.Next() {
		var date, asset string
		var ret sql.NullFloat64
		if err := rows.Scan(&date, &asset, &ret); err != nil {
			return nil, fmt.Errorf("failed to scan return row: %w", err)
		}
		if _, ok := dateSeen[date]; !ok {
			dateSeen[date] = len(dates)
			dates = append(dates, date)
		}
		if !assetSeen[asset] {
			assetSeen[asset] = true
			assets = append(assets, asset)
		}
		v := math.NaN()
		if ret.Valid {
			v = ret.Float64
		}
		all = append(all, obs{date: date, asset: asset, ret: v})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate return store: %w", err)
	}

	data := make(map[string][]float64, len(assets))
	for _, a := range assets {
		col := make([]float64, len(dates))
		for i := range col {
			col[i] = math.NaN()
		}
		data[a] = col
	}
	for _, o := range all {
		data[o.asset][dateSeen[o.date]] = o.ret
	}

	return domain.NewReturnTable(dates, assets, data), nil
}

// HealthCheck pings the store and runs an integrity check.
func (s *ReturnStore) HealthCheck(ctx context.Context) error {
	if err := s.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("return store ping failed: %w", err)
	}
	var result string
	if err := s.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("return store integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("return store integrity check reported: %s", result)
	}
	return nil
}

// Path returns the database file path.
func (s *ReturnStore) Path() string {
	return s.path
}

// Close closes the store.
func (s *ReturnStore) Close() error {
	return s.conn.Close()
}
