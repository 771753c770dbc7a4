package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/repository"
)

// objectRepository implements repository.ObjectRepository.
type objectRepository struct {
	db *DB
}

// NewObjectRepository creates a new PostgreSQL object repository.
func NewObjectRepository(db *DB) repository.ObjectRepository {
	return &objectRepository{db: db}
}

const objectColumns = `id, owner_id, filename, uploaded_by, content_type, size, checksum, upload_date`

func scanObject(row pgx.Row) (*domain.StoredObject, error) {
	obj := &domain.StoredObject{}
	err := row.Scan(
		&obj.ID,
		&obj.OwnerID,
		&obj.Filename,
		&obj.UploadedBy,
		&obj.ContentType,
		&obj.Size,
		&obj.Checksum,
		&obj.UploadDate,
	)
	if err != nil {
		return nil, err
	}
	obj.UploadDate = obj.UploadDate.UTC()
	return obj, nil
}

// Create inserts object metadata.
func (r *objectRepository) Create(ctx context.Context, obj *domain.StoredObject) error {
	query := `
		INSERT INTO objects (` + objectColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		obj.ID,
		obj.OwnerID,
		obj.Filename,
		obj.UploadedBy,
		obj.ContentType,
		obj.Size,
		obj.Checksum,
		obj.UploadDate,
	)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}

	return nil
}

// GetByIDAndOwner retrieves an object scoped to its owner.
func (r *objectRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.StoredObject, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE id = $1 AND owner_id = $2`

	obj, err := scanObject(r.db.Pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return obj, nil
}

// ListByOwner returns all objects owned by ownerID, newest first.
func (r *objectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.StoredObject, error) {
	query := `
		SELECT ` + objectColumns + `
		FROM objects
		WHERE owner_id = $1
		ORDER BY upload_date DESC, id
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer rows.Close()

	objects := make([]*domain.StoredObject, 0)
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating objects: %w", err)
	}

	return objects, nil
}

// DeleteByIDAndOwner deletes an object scoped to its owner.
func (r *objectRepository) DeleteByIDAndOwner(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM objects WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ListIDsByOwner returns the IDs of all objects owned by ownerID.
func (r *objectRepository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id FROM objects WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list object IDs: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect object IDs: %w", err)
	}

	return ids, nil
}

// DeleteByOwner deletes all objects owned by ownerID.
func (r *objectRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM objects WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects by owner: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListOrphanOwners returns owners with objects but no user row.
func (r *objectRepository) ListOrphanOwners(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT o.owner_id
		FROM objects o
		WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = o.owner_id)
		ORDER BY o.owner_id
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan owners: %w", err)
	}

	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect orphan owners: %w", err)
	}

	return owners, nil
}

var _ repository.ObjectRepository = (*objectRepository)(nil)
