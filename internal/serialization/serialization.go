// Package serialization handles export/import of the stateful frontend's
// id-index table between SQLite and JSON, for cmd/scatterstore-admin.
package serialization

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	Version       = "0.1.0"
	ExportVersion = 1
)

// ImportOptions configures how Import applies rows to the index table.
type ImportOptions struct {
	// Replace deletes all existing rows before inserting. Without it,
	// rows are inserted with INSERT OR IGNORE, leaving existing ids alone.
	Replace bool
}

// ImportResult reports what Import actually did.
type ImportResult struct {
	Inserted int
	Skipped  int
	Warnings []string
}

// indexRow mirrors dbbackend.IndexEntry without importing that package,
// keeping serialization decoupled from the storage layer it serializes.
type indexRow struct {
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Bearer  string `json:"bearer"`
}

// Export reads every row of the named index table and returns a sorted,
// pretty-printed JSON document.
func Export(dbPath, table string) (string, error) {
	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return "", fmt.Errorf("opening index database: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(fmt.Sprintf("SELECT id, backend, bearer FROM %s ORDER BY id", table))
	if err != nil {
		return "", fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	entries := make([]indexRow, 0)
	for rows.Next() {
		var r indexRow
		if err := rows.Scan(&r.ID, &r.Backend, &r.Bearer); err != nil {
			return "", fmt.Errorf("scanning %s row: %w", table, err)
		}
		entries = append(entries, r)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating %s: %w", table, err)
	}

	document := map[string]any{
		"scatterstore_export": map[string]any{
			"version":     ExportVersion,
			"exported_at": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
			"source":      "go/" + Version,
		},
		"objects": entries,
	}
	return marshalSorted(document)
}

// Import applies a JSON document produced by Export to the named index
// table, in a single transaction.
func Import(dbPath, table, jsonStr string, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{}
	}

	var data struct {
		ScatterstoreExport struct {
			Version int `json:"version"`
		} `json:"scatterstore_export"`
		Objects []indexRow `json:"objects"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.ScatterstoreExport.Version < 1 || data.ScatterstoreExport.Version > ExportVersion {
		return nil, fmt.Errorf("unsupported export version: %d", data.ScatterstoreExport.Version)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening index database: %w", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if opts.Replace {
		if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	result := &ImportResult{}
	insertSQL := fmt.Sprintf("INSERT OR IGNORE INTO %s (id, backend, bearer) VALUES (?, ?, ?)", table)
	if opts.Replace {
		insertSQL = fmt.Sprintf("INSERT INTO %s (id, backend, bearer) VALUES (?, ?, ?)", table)
	}

	for _, row := range data.Objects {
		res, err := tx.Exec(insertSQL, row.ID, row.Backend, row.Bearer)
		if err != nil {
			result.Skipped++
			result.Warnings = append(result.Warnings, fmt.Sprintf("skipped id %q: %v", row.ID, err))
			continue
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}
	return result, nil
}

// marshalSorted produces JSON with sorted map keys, 2-space indent,
// matching the teacher's deterministic export format.
func marshalSorted(data map[string]any) (string, error) {
	b, err := json.MarshalIndent(sortedMap(data), "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type sortedMap map[string]any

func (m sortedMap) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyBytes...)
		buf = append(buf, ':')

		valBytes, err := marshalValue(m[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, valBytes...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return sortedMap(val).MarshalJSON()
	default:
		return json.Marshal(v)
	}
}
