package db

import "database/sql"

func (d *DB) logQuery(kind string, query string, params []any) {
	if !d.logQueries {
		return
	}
	logger.Debug().
		Str("kind", kind).
		Str("sql", query).
		Interface("params", params).
		Msg("db query")
}

// Select runs a SELECT query returning multiple rows.
// The scanner function is called for each row to map results.
func Select[T any](d *DB, query string, params []any, scanner func(*sql.Rows) (T, error)) ([]T, error) {
	d.logQuery("select", query, params)

	rows, err := d.sql.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []T
	for rows.Next() {
		item, err := scanner(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// SelectOne runs a SELECT query returning a single row (or nil if not found)
func SelectOne[T any](d *DB, query string, params []any, scanner func(*sql.Row) (T, error)) (*T, error) {
	d.logQuery("get", query, params)

	row := d.sql.QueryRow(query, params...)
	result, err := scanner(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// Run executes an INSERT/UPDATE/DELETE query
func (d *DB) Run(query string, params ...any) (sql.Result, error) {
	d.logQuery("run", query, params)
	return d.sql.Exec(query, params...)
}
