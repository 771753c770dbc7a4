package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/vaultbox/internal/domain"
	"github.com/prn-tf/vaultbox/internal/repository"
)

// objectRepository implements repository.ObjectRepository for SQLite.
type objectRepository struct {
	db *DB
}

// NewObjectRepository creates a new SQLite object repository.
func NewObjectRepository(db *DB) repository.ObjectRepository {
	return &objectRepository{db: db}
}

const objectColumns = `id, owner_id, filename, uploaded_by, content_type, size, checksum, upload_date`

func scanObject(row rowScanner) (*domain.StoredObject, error) {
	obj := &domain.StoredObject{}
	var uploadDate string

	err := row.Scan(
		&obj.ID,
		&obj.OwnerID,
		&obj.Filename,
		&obj.UploadedBy,
		&obj.ContentType,
		&obj.Size,
		&obj.Checksum,
		&uploadDate,
	)
	if err != nil {
		return nil, err
	}

	obj.UploadDate = parseTime(uploadDate)
	return obj, nil
}

// Create inserts object metadata.
func (r *objectRepository) Create(ctx context.Context, obj *domain.StoredObject) error {
	query := `
		INSERT INTO objects (` + objectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		obj.ID,
		obj.OwnerID,
		obj.Filename,
		obj.UploadedBy,
		obj.ContentType,
		obj.Size,
		obj.Checksum,
		formatTime(obj.UploadDate),
	)
	if err != nil {
		return fmt.Errorf("failed to create object: %w", err)
	}

	return nil
}

// GetByIDAndOwner retrieves an object scoped to its owner.
func (r *objectRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.StoredObject, error) {
	query := `SELECT ` + objectColumns + ` FROM objects WHERE id = ? AND owner_id = ?`

	obj, err := scanObject(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if isNoRows(err) {
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
		WHERE owner_id = ?
		ORDER BY upload_date DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
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
	result, err := r.db.ExecContext(ctx, `DELETE FROM objects WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListIDsByOwner returns the IDs of all objects owned by ownerID.
func (r *objectRepository) ListIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM objects WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list object IDs: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan object ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating object IDs: %w", err)
	}

	return ids, nil
}

// DeleteByOwner deletes all objects owned by ownerID.
func (r *objectRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM objects WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete objects by owner: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// ListOrphanOwners returns owners with objects but no user row.
func (r *objectRepository) ListOrphanOwners(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT o.owner_id
		FROM objects o
		LEFT JOIN users u ON u.id = o.owner_id
		WHERE u.id IS NULL
		ORDER BY o.owner_id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list orphan owners: %w", err)
	}
	defer rows.Close()

	owners := make([]string, 0)
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("failed to scan orphan owner: %w", err)
		}
		owners = append(owners, owner)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphan owners: %w", err)
	}

	return owners, nil
}

// Ensure objectRepository implements repository.ObjectRepository.
var _ repository.ObjectRepository = (*objectRepository)(nil)
