package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Insert inserts the record and returns the id assigned by the database.
func (db *DataBase) Insert(ctx context.Context, tableName string, f Fields) (int64, error) {
	tbl, err := table(tableName)
	if err != nil {
		return 0, err
	}
	if len(f) == 0 {
		return 0, ErrEmptyFields
	}
	q, args := buildInsert(tbl, f)
	var id int64
	if err := db.inner.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, errors.Join(ErrInsertFailed, err)
	}
	return id, nil
}

// SelectOne selects the first record matching the criteria.
func (db *DataBase) SelectOne(ctx context.Context, tableName string, c Criteria, columns ...string) (Row, error) {
	tbl, err := table(tableName)
	if err != nil {
		return nil, err
	}
	w, args := where(c, 0)
	rows, err := db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s%s ORDER BY id LIMIT 1", columnList(columns), tbl, w), args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// SelectByID selects the record of the id.
func (db *DataBase) SelectByID(ctx context.Context, tableName string, id int64, columns ...string) (Row, error) {
	return db.SelectOne(ctx, tableName, Criteria{"id": id}, columns...)
}

// UpdateByID writes the fields to the record of the id only when any of them differs from the stored value.
// It reports whether the record changed.
func (db *DataBase) UpdateByID(ctx context.Context, tableName string, id int64, f Fields) (bool, error) {
	tbl, err := table(tableName)
	if err != nil {
		return false, err
	}
	if len(f) == 0 {
		return false, ErrEmptyFields
	}
	q, args := buildUpdate(tbl, id, f)
	return db.exec(ctx, ErrUpdateFailed, q, args...)
}

// SelectOldest selects the record created first.
func (db *DataBase) SelectOldest(ctx context.Context, tableName string, columns ...string) (Row, error) {
	tbl, err := table(tableName)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s ORDER BY created ASC, id ASC LIMIT 1", columnList(columns), tbl))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows[0], nil
}

// DeleteByKey deletes every record whose key column equals the value and reports whether any was deleted.
func (db *DataBase) DeleteByKey(ctx context.Context, tableName, key string, value any) (bool, error) {
	tbl, err := table(tableName)
	if err != nil {
		return false, err
	}
	w, args := where(Criteria{key: value}, 0)
	return db.exec(ctx, ErrRemoveFailed, fmt.Sprintf("DELETE FROM %s%s", tbl, w), args...)
}

// Query runs the raw query and returns all rows keyed by column name.
func (db *DataBase) Query(ctx context.Context, query string, params ...any) ([]Row, error) {
	rows, err := db.inner.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	return result, nil
}

func (db *DataBase) exec(ctx context.Context, kind error, q string, args ...any) (bool, error) {
	res, err := db.inner.ExecContext(ctx, q, args...)
	if err != nil {
		return false, errors.Join(kind, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
