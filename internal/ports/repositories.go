package ports

import (
	"context"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
)

// ApplicationRepository owns persisted applications. Create must enforce id-number
// uniqueness at write time and UpdateStatus must be a compare-and-swap on From.
type ApplicationRepository interface {
	Create(ctx context.Context, app domain.Application) (domain.Application, error)
	GetByID(ctx context.Context, id int64) (domain.Application, error)
	GetByIDNumber(ctx context.Context, idNumber string) (domain.Application, error)
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Application, error)
	UpdateStatus(ctx context.Context, update domain.StatusUpdate) (domain.Application, error)
	CountByStatus(ctx context.Context) (domain.Stats, error)
	Ping(ctx context.Context) error
}

type DocumentStore interface {
	Validate(field string, upload domain.Upload) (domain.Document, error)
	Save(ctx context.Context, bucket domain.Bucket, doc domain.Document) (string, error)
	Delete(ctx context.Context, ref string) error
}

// StatusCache holds public status views keyed by id number.
type StatusCache interface {
	Get(ctx context.Context, idNumber string) (domain.StatusView, bool, error)
	Set(ctx context.Context, view domain.StatusView) error
	Invalidate(ctx context.Context, idNumber string) error
}
