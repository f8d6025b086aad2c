package domain

import (
	"context"
	"time"
)

// ListFilter narrows submission history queries
type ListFilter struct {
	ModuleName  string
	BookingNo   string
	ContainerNo string
	// Status matches either the record status or the carrier-confirmed
	// container status inside the response payload.
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SubmissionRepository persists submission records
type SubmissionRepository interface {
	// ClaimByNaturalKey atomically finds the live record for the natural
	// key or inserts a fresh pending one. The bool reports whether the
	// record was newly created. Concurrent claims for the same key are
	// guaranteed to converge on a single record.
	ClaimByNaturalKey(ctx context.Context, record *SubmissionRecord) (*SubmissionRecord, bool, error)

	Save(ctx context.Context, record *SubmissionRecord) error
	Insert(ctx context.Context, record *SubmissionRecord) error

	// IncrementRetry atomically moves a record back to pending with the
	// given remarks and bumps its retry counter.
	IncrementRetry(ctx context.Context, id string, remarks string) (*SubmissionRecord, error)
	FindByID(ctx context.Context, id string) (*SubmissionRecord, error)
	FindByNaturalKey(ctx context.Context, moduleName, bookingNo, containerNo string) (*SubmissionRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*SubmissionRecord, int64, error)
	EnsureIndexes(ctx context.Context) error
}
