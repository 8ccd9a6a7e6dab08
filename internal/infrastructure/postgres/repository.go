package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS kyc_applications (
	id               BIGSERIAL PRIMARY KEY,
	full_name        VARCHAR(255) NOT NULL,
	dob              DATE NOT NULL,
	id_number        VARCHAR(50) NOT NULL UNIQUE,
	country          VARCHAR(100) NOT NULL,
	address          TEXT NOT NULL,
	selfie           VARCHAR(500),
	id_doc           VARCHAR(500),
	status           VARCHAR(20) NOT NULL DEFAULT 'pending'
	                 CHECK (status IN ('pending', 'approved', 'rejected')),
	rejection_reason TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS kyc_applications_status_idx ON kyc_applications (status);
`

const columns = `id, full_name, dob, id_number, country, address, selfie, id_doc, status, rejection_reason, created_at, updated_at`

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// ApplicationRepository persists applications in the kyc_applications table.
type ApplicationRepository struct {
	db *sql.DB
}

func NewApplicationRepository(db *sql.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// EnsureSchema creates the table and its indexes when missing.
func (r *ApplicationRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return persistence("ensure schema", err)
	}
	return nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrPersistence, op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplication(row rowScanner) (domain.Application, error) {
	var (
		app             domain.Application
		dob             time.Time
		status          string
		selfie, idDoc   sql.NullString
		rejectionReason sql.NullString
		updatedAt       sql.NullTime
	)
	if err := row.Scan(&app.ID, &app.FullName, &dob, &app.IDNumber, &app.Country, &app.Address,
		&selfie, &idDoc, &status, &rejectionReason, &app.CreatedAt, &updatedAt); err != nil {
		return domain.Application{}, err
	}
	parsed, err := domain.ParseStatus(status)
	if err != nil {
		return domain.Application{}, persistence("decode application", err)
	}
	app.Status = parsed
	app.DateOfBirth = domain.Date{Year: dob.Year(), Month: dob.Month(), Day: dob.Day()}
	app.SelfieRef = nullableString(selfie)
	app.IDDocumentRef = nullableString(idDoc)
	app.RejectionReason = nullableString(rejectionReason)
	app.CreatedAt = app.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		app.UpdatedAt = &t
	}
	return app, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func dateValue(d domain.Date) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (r *ApplicationRepository) Create(ctx context.Context, app domain.Application) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(app.Status)); err != nil {
		return domain.Application{}, err
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO kyc_applications (full_name, dob, id_number, country, address, selfie, id_doc, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+columns,
		app.FullName, dateValue(app.DateOfBirth), app.IDNumber, app.Country, app.Address,
		app.SelfieRef, app.IDDocumentRef, string(app.Status), app.CreatedAt,
	)
	created, err := scanApplication(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.Application{}, domain.ErrDuplicateIdentifier
		}
		if errors.Is(err, domain.ErrPersistence) {
			return domain.Application{}, err
		}
		return domain.Application{}, persistence("create application", err)
	}
	return created, nil
}

func (r *ApplicationRepository) getOne(ctx context.Context, op, where string, arg any) (domain.Application, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM kyc_applications WHERE `+where, arg)
	app, err := scanApplication(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Application{}, domain.ErrNotFound
	case errors.Is(err, domain.ErrPersistence):
		return domain.Application{}, err
	case err != nil:
		return domain.Application{}, persistence(op, err)
	}
	return app, nil
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (domain.Application, error) {
	return r.getOne(ctx, "get application", "id = $1", id)
}

func (r *ApplicationRepository) GetByIDNumber(ctx context.Context, idNumber string) (domain.Application, error) {
	return r.getOne(ctx, "get application by id number", "id_number = $1", idNumber)
}

func (r *ApplicationRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Application, error) {
	out := make([]domain.Application, 0, filter.Limit)
	if filter.Limit <= 0 {
		return out, nil
	}
	var (
		rows *sql.Rows
		err  error
	)
	if filter.Status != nil {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+columns+` FROM kyc_applications WHERE status = $1 ORDER BY id OFFSET $2 LIMIT $3`,
			string(*filter.Status), filter.Offset, filter.Limit)
	} else {
		rows, err = r.db.QueryContext(ctx,
			`SELECT `+columns+` FROM kyc_applications ORDER BY id OFFSET $1 LIMIT $2`,
			filter.Offset, filter.Limit)
	}
	if err != nil {
		return nil, persistence("list applications", err)
	}
	defer rows.Close()
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			if errors.Is(err, domain.ErrPersistence) {
				return nil, err
			}
			return nil, persistence("list applications", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence("list applications", err)
	}
	return out, nil
}

// UpdateStatus is a single conditional UPDATE; when it matches nothing a
// follow-up existence check distinguishes not-found from already-decided.
func (r *ApplicationRepository) UpdateStatus(ctx context.Context, update domain.StatusUpdate) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(update.To)); err != nil {
		return domain.Application{}, err
	}
	var reason *string
	if update.To == domain.StatusRejected {
		reason = update.RejectionReason
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE kyc_applications
		SET status = $2, rejection_reason = $3, updated_at = $4
		WHERE id = $1 AND status = $5
		RETURNING `+columns,
		update.ID, string(update.To), reason, update.UpdatedAt, string(update.From),
	)
	app, err := scanApplication(row)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		if errors.Is(err, domain.ErrPersistence) {
			return domain.Application{}, err
		}
		return domain.Application{}, persistence("update application status", err)
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM kyc_applications WHERE id = $1)`, update.ID).Scan(&exists); err != nil {
		return domain.Application{}, persistence("update application status", err)
	}
	if !exists {
		return domain.Application{}, domain.ErrNotFound
	}
	return domain.Application{}, domain.ErrInvalidState
}

func (r *ApplicationRepository) CountByStatus(ctx context.Context) (domain.Stats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM kyc_applications GROUP BY status`)
	if err != nil {
		return domain.Stats{}, persistence("count applications", err)
	}
	defer rows.Close()
	var stats domain.Stats
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return domain.Stats{}, persistence("count applications", err)
		}
		switch domain.Status(status) {
		case domain.StatusPending:
			stats.Pending = n
		case domain.StatusApproved:
			stats.Approved = n
		case domain.StatusRejected:
			stats.Rejected = n
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, persistence("count applications", err)
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

func (r *ApplicationRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
