package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const serviceRequestColumns = `id, table_id, table_number, request_type, status, acknowledged_by, acknowledged_at, created_at`

func scanServiceRequest(row interface{ Scan(...any) error }) (ServiceRequest, error) {
	var i ServiceRequest
	err := row.Scan(
		&i.ID,
		&i.TableID,
		&i.TableNumber,
		&i.RequestType,
		&i.Status,
		&i.AcknowledgedBy,
		&i.AcknowledgedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createServiceRequest = `-- name: CreateServiceRequest :one
INSERT INTO service_requests (table_id, table_number, request_type)
VALUES ($1, $2, $3)
RETURNING ` + serviceRequestColumns

type CreateServiceRequestParams struct {
	TableID     uuid.UUID `json:"table_id"`
	TableNumber string    `json:"table_number"`
	RequestType string    `json:"request_type"`
}

func (q *Queries) CreateServiceRequest(ctx context.Context, arg CreateServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, createServiceRequest, arg.TableID, arg.TableNumber, arg.RequestType)
	return scanServiceRequest(row)
}

const getServiceRequest = `-- name: GetServiceRequest :one
SELECT ` + serviceRequestColumns + ` FROM service_requests WHERE id = $1`

func (q *Queries) GetServiceRequest(ctx context.Context, id uuid.UUID) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, getServiceRequest, id)
	return scanServiceRequest(row)
}

const listServiceRequests = `-- name: ListServiceRequests :many
SELECT ` + serviceRequestColumns + ` FROM service_requests
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2`

type ListServiceRequestsParams struct {
	Status pgtype.Text `json:"status"`
	Limit  int32       `json:"limit"`
}

func (q *Queries) ListServiceRequests(ctx context.Context, arg ListServiceRequestsParams) ([]ServiceRequest, error) {
	rows, err := q.db.Query(ctx, listServiceRequests, arg.Status, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ServiceRequest{}
	for rows.Next() {
		i, err := scanServiceRequest(rows)
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

const acknowledgeServiceRequest = `-- name: AcknowledgeServiceRequest :one
UPDATE service_requests SET
    status = 'acknowledged',
    acknowledged_by = $2,
    acknowledged_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + serviceRequestColumns

type AcknowledgeServiceRequestParams struct {
	ID             uuid.UUID   `json:"id"`
	AcknowledgedBy pgtype.UUID `json:"acknowledged_by"`
}

func (q *Queries) AcknowledgeServiceRequest(ctx context.Context, arg AcknowledgeServiceRequestParams) (ServiceRequest, error) {
	row := q.db.QueryRow(ctx, acknowledgeServiceRequest, arg.ID, arg.AcknowledgedBy)
	return scanServiceRequest(row)
}

const countServiceRequestsByStatus = `-- name: CountServiceRequestsByStatus :one
SELECT count(*) FROM service_requests WHERE status = $1`

func (q *Queries) CountServiceRequestsByStatus(ctx context.Context, status ServiceRequestStatus) (int64, error) {
	row := q.db.QueryRow(ctx, countServiceRequestsByStatus, status)
	var count int64
	err := row.Scan(&count)
	return count, err
}
