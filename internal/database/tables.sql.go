package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, number, capacity, location, status, qr_code, version, created_at, updated_at`

func scanTable(row interface{ Scan(...any) error }) (Table, error) {
	var i Table
	err := row.Scan(
		&i.ID,
		&i.Number,
		&i.Capacity,
		&i.Location,
		&i.Status,
		&i.QrCode,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listTables = `-- name: ListTables :many
SELECT ` + tableColumns + ` FROM tables
ORDER BY length(number), number`

func (q *Queries) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Table{}
	for rows.Next() {
		i, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getTable = `-- name: GetTable :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTable, id)
	return scanTable(row)
}

const getTableForUpdate = `-- name: GetTableForUpdate :one
SELECT ` + tableColumns + ` FROM tables WHERE id = $1
FOR UPDATE`

// GetTableForUpdate locks the table row until the surrounding transaction ends.
func (q *Queries) GetTableForUpdate(ctx context.Context, id uuid.UUID) (Table, error) {
	row := q.db.QueryRow(ctx, getTableForUpdate, id)
	return scanTable(row)
}

const getTableByQRCode = `-- name: GetTableByQRCode :one
SELECT ` + tableColumns + ` FROM tables WHERE qr_code = $1`

func (q *Queries) GetTableByQRCode(ctx context.Context, qrCode string) (Table, error) {
	row := q.db.QueryRow(ctx, getTableByQRCode, qrCode)
	return scanTable(row)
}

const createTable = `-- name: CreateTable :one
INSERT INTO tables (number, capacity, location, status, qr_code)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + tableColumns

type CreateTableParams struct {
	Number   string      `json:"number"`
	Capacity int32       `json:"capacity"`
	Location pgtype.Text `json:"location"`
	Status   TableStatus `json:"status"`
	QrCode   string      `json:"qr_code"`
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, createTable,
		arg.Number,
		arg.Capacity,
		arg.Location,
		arg.Status,
		arg.QrCode,
	)
	return scanTable(row)
}

const updateTable = `-- name: UpdateTable :one
UPDATE tables SET
    number = $2,
    capacity = $3,
    location = $4,
    qr_code = $5,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND ($6::int IS NULL OR version = $6)
RETURNING ` + tableColumns

type UpdateTableParams struct {
	ID              uuid.UUID   `json:"id"`
	Number          string      `json:"number"`
	Capacity        int32       `json:"capacity"`
	Location        pgtype.Text `json:"location"`
	QrCode          string      `json:"qr_code"`
	ExpectedVersion pgtype.Int4 `json:"expected_version"`
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTable,
		arg.ID,
		arg.Number,
		arg.Capacity,
		arg.Location,
		arg.QrCode,
		arg.ExpectedVersion,
	)
	return scanTable(row)
}

const updateTableStatus = `-- name: UpdateTableStatus :one
UPDATE tables SET
    status = $2,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND ($3::int IS NULL OR version = $3)
RETURNING ` + tableColumns

type UpdateTableStatusParams struct {
	ID              uuid.UUID   `json:"id"`
	Status          TableStatus `json:"status"`
	ExpectedVersion pgtype.Int4 `json:"expected_version"`
}

// UpdateTableStatus sets the status. When ExpectedVersion is valid the update
// only applies to that version and returns pgx.ErrNoRows otherwise.
func (q *Queries) UpdateTableStatus(ctx context.Context, arg UpdateTableStatusParams) (Table, error) {
	row := q.db.QueryRow(ctx, updateTableStatus, arg.ID, arg.Status, arg.ExpectedVersion)
	return scanTable(row)
}

const deleteTable = `-- name: DeleteTable :one
DELETE FROM tables WHERE id = $1
RETURNING id`

func (q *Queries) DeleteTable(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteTable, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const countTablesByStatus = `-- name: CountTablesByStatus :one
SELECT count(*) FROM tables WHERE status = $1`

func (q *Queries) CountTablesByStatus(ctx context.Context, status TableStatus) (int64, error) {
	row := q.db.QueryRow(ctx, countTablesByStatus, status)
	var count int64
	err := row.Scan(&count)
	return count, err
}
