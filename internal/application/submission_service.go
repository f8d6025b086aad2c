package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pcs-platform/edocs-service/internal/domain"
	"github.com/pcs-platform/edocs-service/internal/infrastructure/odex"
	apperrors "github.com/pcs-platform/edocs-service/pkg/errors"
	"github.com/pcs-platform/edocs-service/pkg/logging"
	"github.com/pcs-platform/edocs-service/pkg/metrics"

	"github.com/pcs-platform/edocs-service/internal/rules"
)

// CarrierGateway is the outbound port to the ODeX API
type CarrierGateway interface {
	Forward(ctx context.Context, endpoint string, body map[string]any, headers map[string]string) (*odex.ForwardResult, error)
}

// Headers forwarded to the carrier; everything else from the inbound
// request is dropped.
var forwardableHeaders = map[string]bool{
	"Content-Type":     true,
	"Accept":           true,
	"X-Request-ID":     true,
	"X-Correlation-ID": true,
}

// SubmissionService orchestrates validation, dedup, forwarding and
// persistence for e-doc submissions.
type SubmissionService struct {
	repo    domain.SubmissionRepository
	carrier CarrierGateway
	logger  *logging.Logger
	metrics *metrics.Metrics
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(repo domain.SubmissionRepository, carrier CarrierGateway, logger *logging.Logger, m *metrics.Metrics) *SubmissionService {
	return &SubmissionService{
		repo:    repo,
		carrier: carrier,
		logger:  logger.WithComponent("submission-service"),
		metrics: m,
	}
}

// Submit validates a shipment context, claims the natural key and forwards
// the submission to the carrier. A repeat submit for the same trimmed,
// case-folded booking/container pair reuses the existing record and bumps
// its retry counter instead of creating a duplicate.
func (s *SubmissionService) Submit(ctx context.Context, cmd SubmitCommand) (*SubmissionDTO, error) {
	if errs := rules.Validate(cmd.Shipment); !errs.Valid() {
		s.observeValidationFailure(cmd.ModuleName)
		return nil, apperrors.ErrValidationWithFields("submission failed validation", errs)
	}

	record, err := domain.NewSubmissionRecord(cmd.ModuleName, cmd.Shipment.BookingNo, firstContainerNo(cmd.Shipment))
	if err != nil {
		return nil, err
	}

	claimed, isNew, err := s.repo.ClaimByNaturalKey(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}

	if !isNew {
		remarks := fmt.Sprintf("Updated and resubmitted on %s", time.Now().UTC().Format(time.RFC3339))
		claimed, err = s.repo.IncrementRetry(ctx, claimed.ID.Hex(), remarks)
		if err != nil {
			return nil, fmt.Errorf("failed to reuse submission record: %w", err)
		}
		s.observeRetry(cmd.ModuleName)
		s.logger.WithModule(cmd.ModuleName).Info("Reusing submission record for natural key",
			"recordId", claimed.ID.Hex(),
			"retryCount", claimed.RetryCount,
		)
	}

	body, err := shipmentBody(cmd.Shipment)
	if err != nil {
		return nil, err
	}

	endpoint := endpointFor(cmd.ModuleName)
	headers := cleanHeaders(cmd.Headers)

	claimed.AttachRequest(endpoint, "POST", headers, body)
	if err := s.repo.Save(ctx, claimed); err != nil {
		return nil, err
	}

	s.forward(ctx, claimed, endpoint, body, headers)

	if err := s.repo.Save(ctx, claimed); err != nil {
		return nil, err
	}

	s.observeSubmission(cmd.ModuleName, string(claimed.Status))
	dto := toSubmissionDTO(claimed)
	return &dto, nil
}

// SaveDraft parks a possibly incomplete shipment without validating or
// forwarding it. Saving an existing draft refreshes its remarks.
func (s *SubmissionService) SaveDraft(ctx context.Context, cmd SaveDraftCommand) (*SubmissionDTO, error) {
	record, err := domain.NewSubmissionRecord(cmd.ModuleName, cmd.Shipment.BookingNo, firstContainerNo(cmd.Shipment))
	if err != nil {
		return nil, err
	}

	claimed, _, err := s.repo.ClaimByNaturalKey(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to claim draft record: %w", err)
	}

	body, err := shipmentBody(cmd.Shipment)
	if err != nil {
		return nil, err
	}

	claimed.Request.Body = body
	claimed.Request.Timestamp = time.Now().UTC()
	claimed.MarkDraft()

	if err := s.repo.Save(ctx, claimed); err != nil {
		return nil, err
	}

	s.observeSubmission(cmd.ModuleName, string(domain.StatusSaved))
	dto := toSubmissionDTO(claimed)
	return &dto, nil
}

// Resubmit retries an existing record, optionally with a revised body
func (s *SubmissionService) Resubmit(ctx context.Context, cmd ResubmitCommand) (*SubmissionDTO, error) {
	remarks := fmt.Sprintf("Updated and resubmitted on %s", time.Now().UTC().Format(time.RFC3339))

	record, err := s.repo.IncrementRetry(ctx, cmd.RecordID, remarks)
	if err != nil {
		return nil, err
	}

	body := record.Request.Body
	if len(cmd.Body) > 0 {
		body = cmd.Body
	}

	endpoint := record.Request.URL
	if endpoint == "" {
		endpoint = endpointFor(record.ModuleName)
	}
	headers := cleanHeaders(cmd.Headers)
	if len(headers) == 0 {
		headers = record.Request.Headers
	}

	record.AttachRequest(endpoint, "POST", headers, body)
	record.Remarks = remarks

	s.forward(ctx, record, endpoint, body, headers)

	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	s.observeRetry(record.ModuleName)
	s.observeSubmission(record.ModuleName, string(record.Status))
	dto := toSubmissionDTO(record)
	return &dto, nil
}

// Edit forks an existing record with field overrides and retriggers the
// submission. The original record and its outcome are preserved; the fork
// carries a back-reference. Verified submissions cannot be edited.
func (s *SubmissionService) Edit(ctx context.Context, cmd EditCommand) (*SubmissionDTO, error) {
	original, err := s.repo.FindByID(ctx, cmd.RecordID)
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, domain.ErrSubmissionNotFound
	}

	merged := make(map[string]any, len(original.Request.Body)+len(cmd.Overrides))
	for k, v := range original.Request.Body {
		merged[k] = v
	}
	for k, v := range cmd.Overrides {
		merged[k] = v
	}

	headers := cleanHeaders(cmd.Headers)
	if len(headers) == 0 {
		headers = cleanHeaders(original.Request.Headers)
	}

	fork, err := original.ForkForEdit(merged, headers)
	if err != nil {
		return nil, err
	}

	endpoint := original.Request.URL
	if endpoint == "" {
		endpoint = endpointFor(original.ModuleName)
	}
	fork.Request.URL = endpoint

	if err := s.repo.Insert(ctx, fork); err != nil {
		return nil, err
	}

	s.logger.WithModule(fork.ModuleName).Info("Edited submission record",
		"recordId", fork.ID.Hex(),
		"originalLogId", fork.OriginalRecordID,
	)

	s.forward(ctx, fork, endpoint, merged, headers)

	if err := s.repo.Save(ctx, fork); err != nil {
		return nil, err
	}

	s.observeSubmission(fork.ModuleName, string(fork.Status))
	dto := toSubmissionDTO(fork)
	return &dto, nil
}

// Get retrieves a single record with its projected status
func (s *SubmissionService) Get(ctx context.Context, id string) (*SubmissionDTO, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrSubmissionNotFound
	}

	dto := toSubmissionDTO(record)
	return &dto, nil
}

// List retrieves a page of submission history
func (s *SubmissionService) List(ctx context.Context, q ListQuery) (*SubmissionListDTO, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	records, total, err := s.repo.List(ctx, domain.ListFilter{
		ModuleName:  q.ModuleName,
		BookingNo:   q.BookingNo,
		ContainerNo: q.ContainerNo,
		Status:      q.Status,
		From:        q.From,
		To:          q.To,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return nil, err
	}

	items := make([]SubmissionDTO, 0, len(records))
	for _, rec := range records {
		items = append(items, toSubmissionDTO(rec))
	}

	return &SubmissionListDTO{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// RefreshStatus polls the carrier for the current verification state of a
// Form 13 record and folds the confirmed container status back into it.
func (s *SubmissionService) RefreshStatus(ctx context.Context, id string) (*SubmissionDTO, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrSubmissionNotFound
	}

	query := map[string]any{
		"bookNo":  record.BookingNo,
		"cntnrNo": record.ContainerNo,
	}
	if body, ok := record.Response.Data.(map[string]any); ok {
		if ref, ok := body["odexRefNo"].(string); ok && ref != "" {
			query["odexRefNo"] = ref
		}
	}

	result, err := s.carrier.Forward(ctx, odex.EndpointForm13RequestInfo, query, nil)
	switch {
	case err != nil:
		s.logger.WithModule(record.ModuleName).WithError(err).Warn("Status refresh did not reach ODeX",
			"recordId", record.ID.Hex())
	case !result.Success():
		s.logger.WithModule(record.ModuleName).Warn("Status refresh rejected by ODeX",
			"recordId", record.ID.Hex(),
			"statusCode", result.StatusCode)
	default:
		if body, ok := result.Data.(map[string]any); ok {
			if status, ok := body["cntnrStatus"].(string); ok && status != "" {
				record.ContainerStatus = status
				if err := s.repo.Save(ctx, record); err != nil {
					return nil, err
				}
			}
		}
	}

	dto := toSubmissionDTO(record)
	return &dto, nil
}

// Cancel asks the carrier to withdraw a submitted Form 13
func (s *SubmissionService) Cancel(ctx context.Context, id string, reason string) (*SubmissionDTO, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrSubmissionNotFound
	}

	body := map[string]any{
		"bookNo":  record.BookingNo,
		"cntnrNo": record.ContainerNo,
		"reason":  reason,
	}

	result, err := s.carrier.Forward(ctx, odex.EndpointForm13Cancel, body, nil)
	if err != nil {
		return nil, apperrors.ErrServiceUnavailable("ODeX")
	}
	if !result.Success() {
		msg := odex.ErrorMessageOf(result.Data)
		if msg == "" {
			msg = "cancellation rejected by carrier"
		}
		return nil, apperrors.ErrCarrierRejected(msg)
	}

	record.Remarks = fmt.Sprintf("Cancellation requested on %s", time.Now().UTC().Format(time.RFC3339))
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	dto := toSubmissionDTO(record)
	return &dto, nil
}

// ResolveRequirements exposes the rule engine for form population
func (s *SubmissionService) ResolveRequirements(shipment *domain.ShipmentContext) RequirementsDTO {
	req := rules.Resolve(shipment)

	dto := RequirementsDTO{RequiredFields: req.RequiredFields()}
	for _, doc := range req.Documents {
		dto.Documents = append(dto.Documents, struct {
			Code      string `json:"code"`
			Title     string `json:"title"`
			Mandatory bool   `json:"mandatory"`
		}{Code: doc.Code, Title: doc.Title, Mandatory: doc.Mandatory})
	}
	return dto
}

// ValidateOnly runs validation without persisting or forwarding anything
func (s *SubmissionService) ValidateOnly(shipment *domain.ShipmentContext) domain.ValidationErrorMap {
	return rules.Validate(shipment)
}

// forward performs the carrier call and folds the outcome into the record
func (s *SubmissionService) forward(ctx context.Context, record *domain.SubmissionRecord, endpoint string, body map[string]any, headers map[string]string) {
	result, err := s.carrier.Forward(ctx, endpoint, body, headers)
	if err != nil {
		snapshot := domain.ResponseSnapshot{
			StatusCode: 500,
			Data:       map[string]any{"message": odex.ErrNoResponse},
			Timestamp:  time.Now().UTC(),
		}
		if result != nil {
			snapshot.StatusCode = result.StatusCode
			snapshot.Data = domain.NormalizeFailureData(result.Data)
			snapshot.TimeTakenMs = result.TimeTaken.Milliseconds()
		}
		record.MarkFailed(snapshot, odex.ErrNoResponse)
		return
	}

	snapshot := domain.ResponseSnapshot{
		StatusCode:  result.StatusCode,
		Data:        result.Data,
		Headers:     result.Headers,
		TimeTakenMs: result.TimeTaken.Milliseconds(),
		Timestamp:   time.Now().UTC(),
	}

	if result.Success() {
		record.MarkSuccess(snapshot)
		return
	}

	snapshot.Data = domain.NormalizeFailureData(result.Data)
	remarks := odex.ErrorMessageOf(result.Data)
	if remarks == "" {
		remarks = fmt.Sprintf("carrier returned status %d", result.StatusCode)
	}
	record.MarkFailed(snapshot, remarks)
}

func (s *SubmissionService) observeValidationFailure(module string) {
	if s.metrics != nil {
		s.metrics.ObserveValidationFailure(module)
	}
}

func (s *SubmissionService) observeRetry(module string) {
	if s.metrics != nil {
		s.metrics.ObserveRetry(module)
	}
}

func (s *SubmissionService) observeSubmission(module, status string) {
	if s.metrics != nil {
		s.metrics.ObserveSubmission(module, status)
	}
}

func endpointFor(moduleName string) string {
	if moduleName == domain.ModuleForm13 {
		return odex.EndpointSaveForm13
	}
	return odex.EndpointSaveVGM
}

func firstContainerNo(shipment *domain.ShipmentContext) string {
	if len(shipment.Containers) > 0 {
		return shipment.Containers[0].ContainerNo
	}
	return ""
}

// shipmentBody flattens the typed context into the wire shape
func shipmentBody(shipment *domain.ShipmentContext) (map[string]any, error) {
	encoded, err := json.Marshal(shipment)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipment context: %w", err)
	}

	var body map[string]any
	if err := json.Unmarshal(encoded, &body); err != nil {
		return nil, fmt.Errorf("failed to decode shipment context: %w", err)
	}
	return body, nil
}

func cleanHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}

	cleaned := make(map[string]string)
	for k, v := range headers {
		if forwardableHeaders[canonicalHeader(k)] {
			cleaned[canonicalHeader(k)] = v
		}
	}
	return cleaned
}

func canonicalHeader(k string) string {
	parts := strings.Split(strings.ToLower(k), "-")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "-")
}
