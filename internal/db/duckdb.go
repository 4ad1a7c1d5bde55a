// Package db keeps a DuckDB copy of every session's annotations so they can
// be inspected with SQL.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// Config holds database configuration. An empty DataDir opens an in-memory
// database.
type Config struct {
	DataDir    string
	DBName     string
	Extensions []string
}

const schema = `CREATE TABLE IF NOT EXISTS annotations (
	session    VARCHAR NOT NULL,
	id         BIGINT  NOT NULL,
	kind       VARCHAR NOT NULL,
	geometry   JSON,
	properties JSON,
	PRIMARY KEY (session, id)
)`

// Open opens the database and creates the annotations table.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "annotations"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	for _, ext := range cfg.Extensions {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)); err != nil {
			logrus.WithError(err).WithField("extension", ext).Warn("Could not load duckdb extension")
		}
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating annotations table: %w", err)
	}
	return conn, nil
}

// SaveSnapshot replaces the rows of session with the features of fc. Each
// feature carries its annotation id as feature id and its kind in the
// "kind" property.
func SaveSnapshot(ctx context.Context, db *sql.DB, session string, fc *geojson.FeatureCollection) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE session = ?`, session); err != nil {
		return fmt.Errorf("clearing snapshot: %w", err)
	}

	for _, f := range fc.Features {
		id, err := featureID(f)
		if err != nil {
			return err
		}
		geom, err := json.Marshal(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return fmt.Errorf("encoding geometry of %d: %w", id, err)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("encoding properties of %d: %w", id, err)
		}
		kind, _ := f.Properties["kind"].(string)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO annotations (session, id, kind, geometry, properties) VALUES (?, ?, ?, ?, ?)`,
			session, id, kind, string(geom), string(props),
		); err != nil {
			return fmt.Errorf("inserting annotation %d: %w", id, err)
		}
	}
	return tx.Commit()
}

// DeleteSnapshot removes every row of session.
func DeleteSnapshot(ctx context.Context, db *sql.DB, session string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM annotations WHERE session = ?`, session)
	return err
}

// Result is a fully read query result.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Query runs q and reads every row.
func Query(ctx context.Context, db *sql.DB, q string, args ...any) (*Result, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

func featureID(f *geojson.Feature) (int64, error) {
	switch v := f.ID.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("feature id %v is not a number", f.ID)
	}
}
