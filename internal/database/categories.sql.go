package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, description, image_url, is_active, sort_order, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (Category, error) {
	var i Category
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Description,
		&i.ImageUrl,
		&i.IsActive,
		&i.SortOrder,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT ` + categoryColumns + ` FROM categories
WHERE ($1::boolean = false OR is_active = true)
ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context, activeOnly bool) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		i, err := scanCategory(rows)
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

const getCategory = `-- name: GetCategory :one
SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

func (q *Queries) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	row := q.db.QueryRow(ctx, getCategory, id)
	return scanCategory(row)
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, description, image_url, is_active, sort_order)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	ImageUrl    pgtype.Text `json:"image_url"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int32       `json:"sort_order"`
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory,
		arg.Name,
		arg.Description,
		arg.ImageUrl,
		arg.IsActive,
		arg.SortOrder,
	)
	return scanCategory(row)
}

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories SET
    name = $2,
    description = $3,
    image_url = $4,
    is_active = $5,
    sort_order = $6,
    updated_at = now()
WHERE id = $1
RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description pgtype.Text `json:"description"`
	ImageUrl    pgtype.Text `json:"image_url"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int32       `json:"sort_order"`
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.ImageUrl,
		arg.IsActive,
		arg.SortOrder,
	)
	return scanCategory(row)
}

const deleteCategory = `-- name: DeleteCategory :one
DELETE FROM categories WHERE id = $1
RETURNING id`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteCategory, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}
