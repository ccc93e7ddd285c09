package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category_id, name, description, image_url, is_available, coming_soon,
    ibu, abv, harmonizations, sort_order, version, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var i Product
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.ComingSoon,
		&i.Ibu,
		&i.Abv,
		&i.Harmonizations,
		&i.SortOrder,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listProducts = `-- name: ListProducts :many
SELECT ` + productColumns + ` FROM products
WHERE ($1::uuid IS NULL OR category_id = $1)
  AND ($2::boolean = false OR (is_available = true AND coming_soon = false))
ORDER BY sort_order, name`

type ListProductsParams struct {
	CategoryID    pgtype.UUID `json:"category_id"`
	AvailableOnly bool        `json:"available_only"`
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.CategoryID, arg.AvailableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		i, err := scanProduct(rows)
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

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := q.db.QueryRow(ctx, getProduct, id)
	return scanProduct(row)
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (
    category_id, name, description, image_url, is_available, coming_soon,
    ibu, abv, harmonizations, sort_order
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + productColumns

type CreateProductParams struct {
	CategoryID     uuid.UUID      `json:"category_id"`
	Name           string         `json:"name"`
	Description    pgtype.Text    `json:"description"`
	ImageUrl       pgtype.Text    `json:"image_url"`
	IsAvailable    bool           `json:"is_available"`
	ComingSoon     bool           `json:"coming_soon"`
	Ibu            pgtype.Numeric `json:"ibu"`
	Abv            pgtype.Numeric `json:"abv"`
	Harmonizations []string       `json:"harmonizations"`
	SortOrder      int32          `json:"sort_order"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.ImageUrl,
		arg.IsAvailable,
		arg.ComingSoon,
		arg.Ibu,
		arg.Abv,
		arg.Harmonizations,
		arg.SortOrder,
	)
	return scanProduct(row)
}

const updateProduct = `-- name: UpdateProduct :one
UPDATE products SET
    category_id = $2,
    name = $3,
    description = $4,
    image_url = $5,
    is_available = $6,
    coming_soon = $7,
    ibu = $8,
    abv = $9,
    harmonizations = $10,
    sort_order = $11,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND ($12::int IS NULL OR version = $12)
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID              uuid.UUID      `json:"id"`
	CategoryID      uuid.UUID      `json:"category_id"`
	Name            string         `json:"name"`
	Description     pgtype.Text    `json:"description"`
	ImageUrl        pgtype.Text    `json:"image_url"`
	IsAvailable     bool           `json:"is_available"`
	ComingSoon      bool           `json:"coming_soon"`
	Ibu             pgtype.Numeric `json:"ibu"`
	Abv             pgtype.Numeric `json:"abv"`
	Harmonizations  []string       `json:"harmonizations"`
	SortOrder       int32          `json:"sort_order"`
	ExpectedVersion pgtype.Int4    `json:"expected_version"`
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.ImageUrl,
		arg.IsAvailable,
		arg.ComingSoon,
		arg.Ibu,
		arg.Abv,
		arg.Harmonizations,
		arg.SortOrder,
		arg.ExpectedVersion,
	)
	return scanProduct(row)
}

const setProductAvailability = `-- name: SetProductAvailability :one
UPDATE products SET
    is_available = $2,
    coming_soon = $3,
    version = version + 1,
    updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type SetProductAvailabilityParams struct {
	ID          uuid.UUID `json:"id"`
	IsAvailable bool      `json:"is_available"`
	ComingSoon  bool      `json:"coming_soon"`
}

func (q *Queries) SetProductAvailability(ctx context.Context, arg SetProductAvailabilityParams) (Product, error) {
	row := q.db.QueryRow(ctx, setProductAvailability, arg.ID, arg.IsAvailable, arg.ComingSoon)
	return scanProduct(row)
}

const deleteProduct = `-- name: DeleteProduct :one
DELETE FROM products WHERE id = $1
RETURNING id`

func (q *Queries) DeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, deleteProduct, id)
	var deleted uuid.UUID
	err := row.Scan(&deleted)
	return deleted, err
}

const priceVariantColumns = `id, product_id, volume, price, position`

func scanPriceVariant(row interface{ Scan(...any) error }) (ProductPriceVariant, error) {
	var i ProductPriceVariant
	err := row.Scan(
		&i.ID,
		&i.ProductID,
		&i.Volume,
		&i.Price,
		&i.Position,
	)
	return i, err
}

func collectPriceVariants(ctx context.Context, db DBTX, query string, args ...interface{}) ([]ProductPriceVariant, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ProductPriceVariant{}
	for rows.Next() {
		i, err := scanPriceVariant(rows)
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

const listPriceVariantsByProduct = `-- name: ListPriceVariantsByProduct :many
SELECT ` + priceVariantColumns + ` FROM product_price_variants
WHERE product_id = $1
ORDER BY position`

func (q *Queries) ListPriceVariantsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductPriceVariant, error) {
	return collectPriceVariants(ctx, q.db, listPriceVariantsByProduct, productID)
}

const listPriceVariantsByProducts = `-- name: ListPriceVariantsByProducts :many
SELECT ` + priceVariantColumns + ` FROM product_price_variants
WHERE product_id = ANY($1::uuid[])
ORDER BY product_id, position`

func (q *Queries) ListPriceVariantsByProducts(ctx context.Context, productIDs []uuid.UUID) ([]ProductPriceVariant, error) {
	return collectPriceVariants(ctx, q.db, listPriceVariantsByProducts, productIDs)
}

const listAllPriceVariants = `-- name: ListAllPriceVariants :many
SELECT ` + priceVariantColumns + ` FROM product_price_variants
ORDER BY product_id, position`

func (q *Queries) ListAllPriceVariants(ctx context.Context) ([]ProductPriceVariant, error) {
	return collectPriceVariants(ctx, q.db, listAllPriceVariants)
}

const createPriceVariant = `-- name: CreatePriceVariant :one
INSERT INTO product_price_variants (product_id, volume, price, position)
VALUES ($1, $2, $3, $4)
RETURNING ` + priceVariantColumns

type CreatePriceVariantParams struct {
	ProductID uuid.UUID      `json:"product_id"`
	Volume    string         `json:"volume"`
	Price     pgtype.Numeric `json:"price"`
	Position  int32          `json:"position"`
}

func (q *Queries) CreatePriceVariant(ctx context.Context, arg CreatePriceVariantParams) (ProductPriceVariant, error) {
	row := q.db.QueryRow(ctx, createPriceVariant, arg.ProductID, arg.Volume, arg.Price, arg.Position)
	return scanPriceVariant(row)
}

const deletePriceVariantsByProduct = `-- name: DeletePriceVariantsByProduct :exec
DELETE FROM product_price_variants WHERE product_id = $1`

func (q *Queries) DeletePriceVariantsByProduct(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deletePriceVariantsByProduct, productID)
	return err
}
