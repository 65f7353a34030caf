package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/schedimport/internal/externalid"
	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// ExternalIDs is the PostgreSQL external id registry.
type ExternalIDs struct {
	store *Store
}

// ExternalIDs returns the registry backed by s.
func (s *Store) ExternalIDs() *ExternalIDs {
	return &ExternalIDs{store: s}
}

func (r *ExternalIDs) Save(ctx context.Context, records []externalid.Record) error {
	return r.store.inTx(ctx, func(tx pgx.Tx) error {
		return saveExternalIDs(ctx, tx, records)
	})
}

func (r *ExternalIDs) List(ctx context.Context, projectID uuid.UUID) ([]externalid.Record, error) {
	rows, err := r.store.pool.Query(ctx, `
		SELECT project_id, id_type, guid, file_unique_id, file_id, object_type, object_identifier
		FROM external_ids
		WHERE project_id = $1
		ORDER BY object_type, file_id, file_unique_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query external ids: %w", err)
	}
	defer rows.Close()

	var out []externalid.Record
	for rows.Next() {
		var (
			rec        externalid.Record
			idType     string
			guid       pgtype.Text
			objectType string
		)
		if err := rows.Scan(&rec.ProjectID, &idType, &guid, &rec.FileUniqueID, &rec.FileID,
			&objectType, &rec.ObjectIdentifier); err != nil {
			return nil, fmt.Errorf("scan external id: %w", err)
		}
		rec.IDType = schedule.ExternalIDType(idType)
		rec.GUID = guid.String
		rec.ObjectType = externalid.ObjectType(objectType)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// saveExternalIDs inserts records on tx. An existing row with the same key is
// kept when it points to the same object.
func saveExternalIDs(ctx context.Context, tx pgx.Tx, records []externalid.Record) error {
	for _, rec := range records {
		var existing uuid.UUID
		err := tx.QueryRow(ctx, `
			INSERT INTO external_ids
				(project_id, id_type, guid, file_unique_id, file_id, object_type, object_identifier)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)
			ON CONFLICT (project_id, id_type, object_type, file_id, file_unique_id)
			DO UPDATE SET object_identifier = external_ids.object_identifier
			RETURNING object_identifier`,
			rec.ProjectID, string(rec.IDType), rec.GUID, rec.FileUniqueID, rec.FileID,
			string(rec.ObjectType), rec.ObjectIdentifier,
		).Scan(&existing)
		if err != nil {
			return fmt.Errorf("insert external id: %w", err)
		}
		if existing != rec.ObjectIdentifier {
			return fmt.Errorf("%w: %s %d/%d", externalid.ErrDuplicate, rec.ObjectType, rec.FileID, rec.FileUniqueID)
		}
	}
	return nil
}

var _ externalid.Registry = (*ExternalIDs)(nil)
