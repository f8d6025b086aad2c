package application

import (
	"time"

	"github.com/pcs-platform/edocs-service/internal/domain"
	"github.com/pcs-platform/edocs-service/internal/infrastructure/odex"
)

// SubmissionDTO is the outward representation of a submission record
type SubmissionDTO struct {
	ID               string                  `json:"id"`
	ModuleName       string                  `json:"moduleName"`
	BookingNo        string                  `json:"bookNo"`
	ContainerNo      string                  `json:"cntnrNo,omitempty"`
	Status           string                  `json:"status"`
	Remarks          string                  `json:"remarks,omitempty"`
	RetryCount       int                     `json:"retryCount"`
	OriginalRecordID string                  `json:"originalLogId,omitempty"`
	Outcome          string                  `json:"outcome"`
	CarrierRefNo     string                  `json:"odexRefNo,omitempty"`
	CarrierFailures  []string                `json:"carrierFailures,omitempty"`
	Projection       domain.StatusProjection `json:"projection"`
	Response         any                     `json:"response,omitempty"`
	CreatedAt        time.Time               `json:"createdAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

// SubmissionListDTO wraps a page of submission records
type SubmissionListDTO struct {
	Items    []SubmissionDTO `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// RequirementsDTO is the outward shape of a requirement resolution
type RequirementsDTO struct {
	RequiredFields []string `json:"requiredFields"`
	Documents      []struct {
		Code      string `json:"code"`
		Title     string `json:"title"`
		Mandatory bool   `json:"mandatory"`
	} `json:"documents"`
}

func toSubmissionDTO(rec *domain.SubmissionRecord) SubmissionDTO {
	dto := SubmissionDTO{
		ID:               rec.ID.Hex(),
		ModuleName:       rec.ModuleName,
		BookingNo:        rec.BookingNo,
		ContainerNo:      rec.ContainerNo,
		Status:           string(rec.Status),
		Remarks:          rec.Remarks,
		RetryCount:       rec.RetryCount,
		OriginalRecordID: rec.OriginalRecordID,
		Outcome:          odex.OutcomeOf(rec.Response.Data),
		CarrierFailures:  odex.ValidationFailures(rec.Response.Data),
		Projection:       domain.Project(rec),
		Response:         rec.Response.Data,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}

	if body, ok := rec.Response.Data.(map[string]any); ok {
		if ref, ok := body["odexRefNo"].(string); ok {
			dto.CarrierRefNo = ref
		}
	}

	return dto
}
