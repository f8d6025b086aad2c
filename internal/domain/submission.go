package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Domain errors
var (
	ErrSubmissionNotFound   = errors.New("submission record not found")
	ErrSubmissionNotEditable = errors.New("verified submissions cannot be edited")
	ErrEmptyBookingNumber   = errors.New("booking number is required")
	ErrEmptyModuleName      = errors.New("module name is required")
)

// SubmissionStatus represents the lifecycle state of a submission record
type SubmissionStatus string

const (
	StatusPending SubmissionStatus = "pending"
	StatusSuccess SubmissionStatus = "success"
	StatusFailed  SubmissionStatus = "failed"
	StatusSaved   SubmissionStatus = "saved"
)

// RequestSnapshot captures the outbound request exactly as forwarded
type RequestSnapshot struct {
	URL       string            `json:"url" bson:"url"`
	Method    string            `json:"method" bson:"method"`
	Headers   map[string]string `json:"headers" bson:"headers"`
	Body      map[string]any    `json:"body" bson:"body"`
	Timestamp time.Time         `json:"timestamp" bson:"timestamp"`
}

// ResponseSnapshot captures the carrier's reply, or the normalized failure
type ResponseSnapshot struct {
	StatusCode  int               `json:"statusCode" bson:"statusCode"`
	Data        any               `json:"data" bson:"data"`
	Headers     map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	TimeTakenMs int64             `json:"timeTakenMs" bson:"timeTakenMs"`
	Timestamp   time.Time         `json:"timestamp" bson:"timestamp"`
}

// SubmissionRecord is the aggregate root for one e-doc submission attempt
// chain. A record is identified internally by its ObjectID and externally
// by the natural key (module, booking number, container number).
type SubmissionRecord struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ModuleName       string             `json:"moduleName" bson:"moduleName"`
	BookingNo        string             `json:"bookNo" bson:"bookNo"`
	ContainerNo      string             `json:"cntnrNo" bson:"cntnrNo"`
	NaturalKey       string             `json:"-" bson:"naturalKey"`
	Status           SubmissionStatus   `json:"status" bson:"status"`
	Remarks          string             `json:"remarks,omitempty" bson:"remarks,omitempty"`
	RetryCount       int                `json:"retryCount" bson:"retryCount"`
	OriginalRecordID string             `json:"originalLogId,omitempty" bson:"originalLogId,omitempty"`
	ContainerStatus  string             `json:"cntnrStatus,omitempty" bson:"cntnrStatus,omitempty"`
	Request          RequestSnapshot    `json:"request" bson:"request"`
	Response         ResponseSnapshot   `json:"response" bson:"response"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// NormalizeKeyPart trims surrounding whitespace and upper-cases a natural
// key component so that " abc123 " and "ABC123" identify the same record.
func NormalizeKeyPart(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NaturalKeyFor derives the dedup key for a booking/container pair
func NaturalKeyFor(bookingNo, containerNo string) string {
	return NormalizeKeyPart(bookingNo) + "|" + NormalizeKeyPart(containerNo)
}

// NewSubmissionRecord creates a pending record for a fresh submission
func NewSubmissionRecord(moduleName, bookingNo, containerNo string) (*SubmissionRecord, error) {
	if strings.TrimSpace(moduleName) == "" {
		return nil, ErrEmptyModuleName
	}
	if strings.TrimSpace(bookingNo) == "" {
		return nil, ErrEmptyBookingNumber
	}

	// Millisecond precision so round-tripping through BSON keeps
	// timestamps comparable.
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &SubmissionRecord{
		ModuleName:  moduleName,
		BookingNo:   strings.TrimSpace(bookingNo),
		ContainerNo: strings.TrimSpace(containerNo),
		NaturalKey:  NaturalKeyFor(bookingNo, containerNo),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// AttachRequest snapshots the outbound request before forwarding
func (r *SubmissionRecord) AttachRequest(url, method string, headers map[string]string, body map[string]any) {
	r.Request = RequestSnapshot{
		URL:       url,
		Method:    method,
		Headers:   headers,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}
	r.Status = StatusPending
	r.UpdatedAt = time.Now().UTC()
}

// MarkSuccess records a successful carrier reply
func (r *SubmissionRecord) MarkSuccess(resp ResponseSnapshot) {
	r.Response = resp
	r.Status = StatusSuccess
	r.UpdatedAt = time.Now().UTC()
}

// MarkFailed records a failed forward with the normalized failure payload
func (r *SubmissionRecord) MarkFailed(resp ResponseSnapshot, remarks string) {
	r.Response = resp
	r.Status = StatusFailed
	r.Remarks = remarks
	r.UpdatedAt = time.Now().UTC()
}

// MarkDraft parks the record as a user draft without forwarding
func (r *SubmissionRecord) MarkDraft() {
	now := time.Now().UTC()
	if r.Status == StatusSaved {
		r.Remarks = fmt.Sprintf("Draft updated on %s", now.Format(time.RFC3339))
	} else {
		r.Remarks = "Saved by user as draft"
	}
	r.Status = StatusSaved
	r.UpdatedAt = now
}

// PrepareResubmit resets the record for another forward attempt
func (r *SubmissionRecord) PrepareResubmit() {
	now := time.Now().UTC()
	r.Status = StatusPending
	r.RetryCount++
	r.Remarks = fmt.Sprintf("Updated and resubmitted on %s", now.Format(time.RFC3339))
	r.UpdatedAt = now
}

// ForkForEdit creates a fresh record linked back to this one. The edited
// submission gets its own lifecycle; the original is left untouched.
func (r *SubmissionRecord) ForkForEdit(mergedBody map[string]any, headers map[string]string) (*SubmissionRecord, error) {
	if Project(r).Status == ProjectedVerified {
		return nil, ErrSubmissionNotEditable
	}

	now := time.Now().UTC()
	fork := &SubmissionRecord{
		ModuleName:       r.ModuleName,
		BookingNo:        r.BookingNo,
		ContainerNo:      r.ContainerNo,
		NaturalKey:       r.NaturalKey,
		Status:           StatusPending,
		Remarks:          fmt.Sprintf("Edited from log %s", r.ID.Hex()),
		OriginalRecordID: r.ID.Hex(),
		Request: RequestSnapshot{
			URL:       r.Request.URL,
			Method:    r.Request.Method,
			Headers:   headers,
			Body:      mergedBody,
			Timestamp: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return fork, nil
}

// NormalizeFailureData coerces carrier failure payloads into a uniform map
// shape so downstream consumers never have to branch on type.
func NormalizeFailureData(data any) map[string]any {
	switch v := data.(type) {
	case nil:
		return map[string]any{"message": "No error information provided"}
	case string:
		return map[string]any{"message": v, "originalString": v}
	case map[string]any:
		return v
	default:
		return map[string]any{"message": fmt.Sprintf("%v", v)}
	}
}
