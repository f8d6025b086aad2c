package domain

import "strings"

// ProjectedStatus is the user-facing status derived from a record
type ProjectedStatus string

const (
	ProjectedVerified ProjectedStatus = "Verified"
	ProjectedPending  ProjectedStatus = "Pending"
)

// Display remarks for projected statuses
const (
	RemarksVerified = "Submitted Successfully"
	RemarksPending  = "Processing / Awaiting Confirmation"
)

// StatusProjection is the result of projecting a submission record into
// the user-facing verification status.
type StatusProjection struct {
	Status   ProjectedStatus `json:"status"`
	Remarks  string          `json:"remarks"`
	Editable bool            `json:"editable"`
}

// Project derives the user-facing status from a record. It is a pure
// function of the record: projecting twice yields the same result and
// never mutates the record.
//
// Precedence: a raw carrier error string wins over everything, then the
// record-level container status, then the container status inside the
// response payload. Anything unrecognized stays Pending.
func Project(rec *SubmissionRecord) StatusProjection {
	if raw, ok := rec.Response.Data.(string); ok {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(raw)), "ERROR") {
			return StatusProjection{
				Status:   ProjectedPending,
				Remarks:  raw,
				Editable: true,
			}
		}
	}

	if isVerifiedStatus(rec.ContainerStatus) {
		return StatusProjection{
			Status:   ProjectedVerified,
			Remarks:  RemarksVerified,
			Editable: false,
		}
	}

	if body, ok := rec.Response.Data.(map[string]any); ok {
		if s, ok := body["cntnrStatus"].(string); ok && isVerifiedStatus(s) {
			return StatusProjection{
				Status:   ProjectedVerified,
				Remarks:  RemarksVerified,
				Editable: false,
			}
		}
	}

	return StatusProjection{
		Status:   ProjectedPending,
		Remarks:  RemarksPending,
		Editable: true,
	}
}

func isVerifiedStatus(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "verified") || strings.Contains(lower, "success")
}
