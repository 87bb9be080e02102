package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableWhitelist(t *testing.T) {
	tbl, err := table("transactions")
	require.NoError(t, err)
	assert.Equal(t, `"transactions"`, tbl)

	_, err = table("users; DROP TABLE transactions")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestBuildInsert(t *testing.T) {
	q, args := buildInsert(`"transactions"`, Fields{"status": "created", "account": "nano_1"})
	assert.Equal(t, `INSERT INTO "transactions" ("account", "status") VALUES ($1, $2) RETURNING id`, q)
	assert.Equal(t, []any{"nano_1", "created"}, args)
}

func TestBuildUpdateIsConditional(t *testing.T) {
	q, args := buildUpdate(`"transactions"`, 7, Fields{"status": "pending"})
	assert.Equal(t, `UPDATE "transactions" SET "status" = $1 WHERE id = $2 AND ("status" IS DISTINCT FROM $1)`, q)
	assert.Equal(t, []any{"pending", int64(7)}, args)

	q, _ = buildUpdate(`"transactions"`, 7, Fields{"status": "pending", "amount": "1"})
	assert.Equal(t,
		`UPDATE "transactions" SET "amount" = $1, "status" = $2 WHERE id = $3 AND ("amount" IS DISTINCT FROM $1 OR "status" IS DISTINCT FROM $2)`,
		q)
}

func TestWhere(t *testing.T) {
	w, args := where(Criteria{"status": "created", "id": int64(3)}, 2)
	assert.Equal(t, ` WHERE "id" = $3 AND "status" = $4`, w)
	assert.Equal(t, []any{int64(3), "created"}, args)

	w, args = where(nil, 0)
	assert.Empty(t, w)
	assert.Empty(t, args)
}

func TestColumnList(t *testing.T) {
	assert.Equal(t, "*", columnList(nil))
	assert.Equal(t, `"id", "status"`, columnList([]string{"id", "status"}))
}
