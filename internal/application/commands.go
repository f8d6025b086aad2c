package application

import (
	"time"

	"github.com/pcs-platform/edocs-service/internal/domain"
)

// SubmitCommand carries a new submission request
type SubmitCommand struct {
	ModuleName string
	Shipment   *domain.ShipmentContext
	Headers    map[string]string
}

// SaveDraftCommand parks a submission without forwarding it
type SaveDraftCommand struct {
	ModuleName string
	Shipment   *domain.ShipmentContext
}

// ResubmitCommand retries an existing record, optionally with a revised body
type ResubmitCommand struct {
	RecordID string
	Body     map[string]any
	Headers  map[string]string
}

// EditCommand forks a record with field overrides and retriggers it
type EditCommand struct {
	RecordID  string
	Overrides map[string]any
	Headers   map[string]string
}

// ListQuery filters the submission history
type ListQuery struct {
	ModuleName  string
	BookingNo   string
	ContainerNo string
	Status      string
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}
