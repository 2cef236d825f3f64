package repository

import (
	"context"
	"encoding/json"

	"github.com/regidesk/be-deed-forms/internal/database"
	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

// AuditRepository appends and reads immutable form audit log entries. The
// table has a delete-prevention trigger so Append is the only mutation
// exposed.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *model.AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO form_audit_log
		    (form_id, stage, action, performed_by,
		     status_before, status_after, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.FormID,
		entry.Stage,
		entry.Action,
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// GetByFormID returns a form's full audit trail ordered oldest-first.
func (r *AuditRepository) GetByFormID(ctx context.Context, formID string) ([]*model.AuditEntry, error) {
	query := `
		SELECT id, form_id, stage, action, performed_by, performed_at,
		       status_before, status_after, metadata
		FROM form_audit_log
		WHERE form_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, formID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		entry := &model.AuditEntry{}
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.FormID,
			&entry.Stage,
			&entry.Action,
			&entry.PerformedBy,
			&entry.PerformedAt,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
