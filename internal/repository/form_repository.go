package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/regidesk/be-deed-forms/internal/database"
	"github.com/regidesk/be-deed-forms/internal/errors"
	"github.com/regidesk/be-deed-forms/internal/model"
)

// FormRepository persists form documents. A form is a single row whose
// ledger, delivery state and verification history live in jsonb columns, so
// every state transition commits atomically in one conditional UPDATE.
type FormRepository struct {
	db *database.DB
}

// NewFormRepository creates a new FormRepository.
func NewFormRepository(db *database.DB) *FormRepository {
	return &FormRepository{db: db}
}

// Create inserts a new form and fills in its generated id, version and
// timestamps.
func (r *FormRepository) Create(ctx context.Context, f *model.Form) error {
	fields, approvals, delivery, history, err := marshalDocs(f)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO forms
		    (service_type, applicant_id, status,
		     fields, approvals, delivery, verification_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		f.ServiceType,
		f.ApplicantID,
		f.Status,
		fields,
		approvals,
		delivery,
		history,
	).Scan(&f.ID, &f.Version, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create form")
	}
	return nil
}

// GetByID retrieves a form by its primary key.
func (r *FormRepository) GetByID(ctx context.Context, id string) (*model.Form, error) {
	query := `
		SELECT id, service_type, applicant_id, status,
		       fields, approvals, delivery, verification_history,
		       version, created_at, updated_at
		FROM forms
		WHERE id = $1
	`

	f, err := scanForm(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("form", id)
	}
	return f, err
}

// List returns forms filtered by optional service type, status and applicant,
// newest first, with the total count for pagination.
func (r *FormRepository) List(
	ctx context.Context,
	serviceType, status, applicantID *string,
	page, pageSize int,
) ([]*model.Form, int, error) {
	query := `
		SELECT id, service_type, applicant_id, status,
		       fields, approvals, delivery, verification_history,
		       version, created_at, updated_at
		FROM forms
		WHERE ($1::text IS NULL OR service_type = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR applicant_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`
	countQuery := `
		SELECT COUNT(*)
		FROM forms
		WHERE ($1::text IS NULL OR service_type = $1)
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::text IS NULL OR applicant_id = $3)
	`

	offset := (page - 1) * pageSize
	rows, err := r.db.Query(ctx, query, serviceType, status, applicantID, pageSize, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to list forms")
	}
	defer rows.Close()

	var forms []*model.Form
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, 0, err
		}
		forms = append(forms, f)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, serviceType, status, applicantID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeInternal, "failed to count forms")
	}
	return forms, total, nil
}

// UpdateState writes the form's mutable state conditionally on the version
// it was read at. A version mismatch means another writer got there first
// and surfaces as CONCURRENT_MODIFICATION; the caller re-reads and retries.
// Ledger, history, delivery and fields land in one UPDATE so a transition
// either fully applies or not at all.
func (r *FormRepository) UpdateState(ctx context.Context, f *model.Form) error {
	fields, approvals, delivery, history, err := marshalDocs(f)
	if err != nil {
		return err
	}

	query := `
		UPDATE forms
		SET status               = $3,
		    fields               = $4,
		    approvals            = $5,
		    delivery             = $6,
		    verification_history = $7,
		    version              = version + 1,
		    updated_at           = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		f.ID,
		f.Version,
		f.Status,
		fields,
		approvals,
		delivery,
		history,
	).Scan(&f.Version, &f.UpdatedAt)
	if err == pgx.ErrNoRows {
		// Distinguish a missing form from a lost version race.
		var exists bool
		checkErr := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM forms WHERE id = $1)`, f.ID).Scan(&exists)
		if checkErr != nil {
			return errors.Wrap(checkErr, errors.ErrCodeInternal, "failed to update form")
		}
		if !exists {
			return errors.NotFound("form", f.ID)
		}
		return errors.Newf(errors.ErrCodeConcurrentModification,
			"form %s was modified concurrently (stale version %d)", f.ID, f.Version)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update form")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type formScanner interface {
	Scan(dest ...any) error
}

func scanForm(row formScanner) (*model.Form, error) {
	f := &model.Form{}
	var fields, approvals, delivery, history []byte
	err := row.Scan(
		&f.ID,
		&f.ServiceType,
		&f.ApplicantID,
		&f.Status,
		&fields,
		&approvals,
		&delivery,
		&history,
		&f.Version,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalInto(fields, &f.Fields); err != nil {
		return nil, err
	}
	if err := unmarshalInto(approvals, &f.Approvals); err != nil {
		return nil, err
	}
	if err := unmarshalInto(delivery, &f.Delivery); err != nil {
		return nil, err
	}
	if err := unmarshalInto(history, &f.VerificationHistory); err != nil {
		return nil, err
	}
	return f, nil
}

func unmarshalInto(data []byte, dest any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to decode form document")
	}
	return nil
}

func marshalDocs(f *model.Form) (fields, approvals, delivery, history []byte, err error) {
	if fields, err = json.Marshal(f.Fields); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode form fields")
	}
	if approvals, err = json.Marshal(f.Approvals); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode approvals")
	}
	if f.Delivery != nil {
		if delivery, err = json.Marshal(f.Delivery); err != nil {
			return nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode delivery state")
		}
	}
	if history, err = json.Marshal(f.VerificationHistory); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode verification history")
	}
	return fields, approvals, delivery, history, nil
}
