package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pcs-platform/edocs-service/internal/domain"
	"github.com/pcs-platform/edocs-service/internal/infrastructure/odex"
	apperrors "github.com/pcs-platform/edocs-service/pkg/errors"
	"github.com/pcs-platform/edocs-service/pkg/logging"
)

// fakeSubmissionRepository is an in-memory SubmissionRepository. Claims are
// keyed by (moduleName, naturalKey) the same way the unique index scopes
// them; edit forks carry originalLogId and never participate in dedup.
type fakeSubmissionRepository struct {
	mu    sync.Mutex
	byKey map[string]*domain.SubmissionRecord
	byID  map[string]*domain.SubmissionRecord
}

func newFakeRepository() *fakeSubmissionRepository {
	return &fakeSubmissionRepository{
		byKey: make(map[string]*domain.SubmissionRecord),
		byID:  make(map[string]*domain.SubmissionRecord),
	}
}

func (r *fakeSubmissionRepository) claimKey(moduleName, naturalKey string) string {
	return moduleName + "|" + naturalKey
}

func (r *fakeSubmissionRepository) ClaimByNaturalKey(_ context.Context, record *domain.SubmissionRecord) (*domain.SubmissionRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := r.claimKey(record.ModuleName, record.NaturalKey)
	if existing, ok := r.byKey[key]; ok {
		return existing, false, nil
	}

	record.ID = primitive.NewObjectID()
	r.byKey[key] = record
	r.byID[record.ID.Hex()] = record
	return record, true, nil
}

func (r *fakeSubmissionRepository) Save(_ context.Context, record *domain.SubmissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[record.ID.Hex()] = record
	return nil
}

func (r *fakeSubmissionRepository) Insert(_ context.Context, record *domain.SubmissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record.ID = primitive.NewObjectID()
	r.byID[record.ID.Hex()] = record
	return nil
}

func (r *fakeSubmissionRepository) IncrementRetry(_ context.Context, id string, remarks string) (*domain.SubmissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	record.Status = domain.StatusPending
	record.Remarks = remarks
	record.RetryCount++
	return record, nil
}

func (r *fakeSubmissionRepository) FindByID(_ context.Context, id string) (*domain.SubmissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *fakeSubmissionRepository) FindByNaturalKey(_ context.Context, moduleName, bookingNo, containerNo string) (*domain.SubmissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byKey[r.claimKey(moduleName, domain.NaturalKeyFor(bookingNo, containerNo))], nil
}

func (r *fakeSubmissionRepository) List(_ context.Context, _ domain.ListFilter) ([]*domain.SubmissionRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []*domain.SubmissionRecord
	for _, rec := range r.byID {
		records = append(records, rec)
	}
	return records, int64(len(records)), nil
}

func (r *fakeSubmissionRepository) EnsureIndexes(_ context.Context) error { return nil }

func (r *fakeSubmissionRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

type carrierCall struct {
	endpoint string
	body     map[string]any
	headers  map[string]string
}

// fakeCarrier replays a scripted result and records every forward
type fakeCarrier struct {
	result *odex.ForwardResult
	err    error
	calls  []carrierCall
}

func (c *fakeCarrier) Forward(_ context.Context, endpoint string, body map[string]any, headers map[string]string) (*odex.ForwardResult, error) {
	c.calls = append(c.calls, carrierCall{endpoint: endpoint, body: body, headers: headers})
	return c.result, c.err
}

func acceptedResult(refNo string) *odex.ForwardResult {
	return &odex.ForwardResult{
		StatusCode:  http.StatusOK,
		Data:        map[string]any{"odexRefNo": refNo, "cntnrStatus": "Pending"},
		TransportOK: true,
	}
}

func newTestService(repo domain.SubmissionRepository, carrier CarrierGateway) *SubmissionService {
	logger := logging.New(&logging.Config{
		Level:       logging.LevelError,
		ServiceName: "edocs-test",
		Output:      io.Discard,
	})
	return NewSubmissionService(repo, carrier, logger, nil)
}

// createTestShipment returns a context that passes the full rule set
func createTestShipment() *domain.ShipmentContext {
	return &domain.ShipmentContext{
		BeneficiaryCode: "MAEU",
		PortCode:        "INNSA1",
		VesselName:      "MAERSK VALENCIA",
		ViaNo:           "VIA00123",
		TerminalCode:    "GTI",
		Service:         "WESTMED",
		POD:             "NLRTM",
		CargoType:       domain.CargoGeneral,
		Origin:          domain.OriginFactory,
		ShipperName:     "Alpha Exports Pvt Ltd",
		BookingNo:       "BK12345",
		ContainerStatus: "FULL",
		FormType:        "13",
		MobileNo:        "9876543210",
		CHACode:         "CHA001",
		Containers: []domain.Container{{
			ContainerNo:  "MSCU1234567",
			Size:         "1X40",
			ISOCode:      "45G1",
			AgentSealNo:  "ASL123",
			CustomSealNo: "CSL456",
			DriverName:   "R Kumar",
			VGMViaPortal: "Y",
		}},
		ShippingBills: []domain.ShippingBillDetail{{
			ShipBillInvNo: "SB123456",
			ShipBillDate:  "2026-08-10",
			CHAName:       "Meridian Clearing",
			CHAPan:        "ABCDE1234F",
			ExporterName:  "Alpha Exports Pvt Ltd",
			ExporterIEC:   "0512345678",
			NoOfPackages:  "120",
		}},
		Attachments: []domain.Attachment{
			{Title: "BOOKING_COPY"},
			{Title: "SHIP_BILL"},
			{Title: "PACK_LIST"},
			{Title: "INVOICE"},
			{Title: "DLVRY_ORDER"},
		},
	}
}

func TestSubmit_Success(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD20260828001")}
	svc := newTestService(repo, carrier)

	dto, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   createTestShipment(),
		Headers: map[string]string{
			"x-request-id":  "req-1",
			"Authorization": "Bearer token",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusSuccess), dto.Status)
	assert.Equal(t, odex.OutcomeSubmitted, dto.Outcome)
	assert.Equal(t, "OD20260828001", dto.CarrierRefNo)
	assert.Zero(t, dto.RetryCount)
	assert.Equal(t, domain.ProjectedPending, dto.Projection.Status)

	require.Len(t, carrier.calls, 1)
	call := carrier.calls[0]
	assert.Equal(t, odex.EndpointSaveVGM, call.endpoint)
	assert.Equal(t, "BK12345", call.body["bookNo"])
	// Only the allowlisted headers cross the boundary.
	assert.Equal(t, "req-1", call.headers["X-Request-ID"])
	assert.NotContains(t, call.headers, "Authorization")
}

func TestSubmit_Form13UsesForm13Endpoint(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD1")}
	svc := newTestService(repo, carrier)

	_, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleForm13,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	require.Len(t, carrier.calls, 1)
	assert.Equal(t, odex.EndpointSaveForm13, carrier.calls[0].endpoint)
}

func TestSubmit_DuplicateNaturalKeyReusesRecord(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD1")}
	svc := newTestService(repo, carrier)

	first, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	// Same booking and container, different casing and padding.
	shipment := createTestShipment()
	shipment.BookingNo = " bk12345 "
	shipment.Containers[0].ContainerNo = "mscu1234567"

	second, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   shipment,
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.RetryCount)
	assert.Contains(t, second.Remarks, "Updated and resubmitted on ")
	assert.Equal(t, 1, repo.count())
}

func TestSubmit_DifferentModuleKeepsSeparateRecords(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD1")}
	svc := newTestService(repo, carrier)

	vgm, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	form13, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleForm13,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	assert.NotEqual(t, vgm.ID, form13.ID)
	assert.Equal(t, 2, repo.count())
}

func TestSubmit_ValidationFailureSkipsCarrier(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD1")}
	svc := newTestService(repo, carrier)

	shipment := createTestShipment()
	shipment.VesselName = ""

	_, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   shipment,
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeValidationError, appErr.Code)
	assert.Equal(t, "Vessel Name is required", appErr.Details["vesselNm"])

	assert.Empty(t, carrier.calls)
	assert.Zero(t, repo.count())
}

func TestSubmit_CarrierNoResponse(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{err: context.DeadlineExceeded}
	svc := newTestService(repo, carrier)

	dto, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusFailed), dto.Status)
	assert.Equal(t, odex.ErrNoResponse, dto.Remarks)
	assert.Equal(t, odex.OutcomeFailed, dto.Outcome)
}

func TestSubmit_CarrierRejection(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: &odex.ForwardResult{
		StatusCode: http.StatusUnprocessableEntity,
		Data: map[string]any{
			"responseMessage":      "Booking closed for gate-in",
			"business_validation":  "FAIL",
			"business_validations": []any{"Booking closed for gate-in"},
		},
		TransportOK: true,
	}}
	svc := newTestService(repo, carrier)

	dto, err := svc.Submit(context.Background(), SubmitCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   createTestShipment(),
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusFailed), dto.Status)
	assert.Equal(t, "Booking closed for gate-in", dto.Remarks)
	assert.Equal(t, odex.OutcomeFailed, dto.Outcome)
	assert.Equal(t, []string{"Booking closed for gate-in"}, dto.CarrierFailures)
}

func TestSaveDraft(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD1")}
	svc := newTestService(repo, carrier)

	// Drafts may be incomplete: no validation runs.
	shipment := createTestShipment()
	shipment.VesselName = ""

	dto, err := svc.SaveDraft(context.Background(), SaveDraftCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   shipment,
	})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusSaved), dto.Status)
	assert.Equal(t, "Saved by user as draft", dto.Remarks)
	assert.Empty(t, carrier.calls)

	dto, err = svc.SaveDraft(context.Background(), SaveDraftCommand{
		ModuleName: domain.ModuleVGM,
		Shipment:   shipment,
	})
	require.NoError(t, err)

	assert.Contains(t, dto.Remarks, "Draft updated on ")
	assert.Equal(t, 1, repo.count())
}

func TestResubmit(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: acceptedResult("OD2")}
	svc := newTestService(repo, carrier)

	seed, err := domain.NewSubmissionRecord(domain.ModuleForm13, "BK12345", "MSCU1234567")
	require.NoError(t, err)
	_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
	require.NoError(t, err)
	seed.AttachRequest(odex.EndpointSaveForm13, "POST", nil, map[string]any{"bookNo": "BK12345"})
	seed.MarkFailed(domain.ResponseSnapshot{StatusCode: 502}, "upstream unavailable")

	dto, err := svc.Resubmit(context.Background(), ResubmitCommand{RecordID: seed.ID.Hex()})
	require.NoError(t, err)

	assert.Equal(t, 1, dto.RetryCount)
	assert.Equal(t, string(domain.StatusSuccess), dto.Status)
	require.Len(t, carrier.calls, 1)
	assert.Equal(t, odex.EndpointSaveForm13, carrier.calls[0].endpoint)
	assert.Equal(t, "BK12345", carrier.calls[0].body["bookNo"])
}

func TestResubmit_UnknownRecord(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakeCarrier{})

	_, err := svc.Resubmit(context.Background(), ResubmitCommand{RecordID: primitive.NewObjectID().Hex()})
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

func TestEdit(t *testing.T) {
	t.Run("fork preserves the original and carries lineage", func(t *testing.T) {
		repo := newFakeRepository()
		carrier := &fakeCarrier{result: acceptedResult("OD3")}
		svc := newTestService(repo, carrier)

		seed, err := domain.NewSubmissionRecord(domain.ModuleVGM, "BK12345", "MSCU1234567")
		require.NoError(t, err)
		_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
		require.NoError(t, err)
		seed.AttachRequest(odex.EndpointSaveVGM, "POST", nil,
			map[string]any{"bookNo": "BK12345", "vesselNm": "EVER GIVEN"})
		seed.MarkFailed(domain.ResponseSnapshot{StatusCode: 422}, "vessel closed")
		originalStatus := seed.Status

		dto, err := svc.Edit(context.Background(), EditCommand{
			RecordID:  seed.ID.Hex(),
			Overrides: map[string]any{"vesselNm": "MSC OSCAR"},
		})
		require.NoError(t, err)

		assert.Equal(t, seed.ID.Hex(), dto.OriginalRecordID)
		assert.NotEqual(t, seed.ID.Hex(), dto.ID)
		assert.Equal(t, "Edited from log "+seed.ID.Hex(), dto.Remarks)
		assert.Equal(t, 2, repo.count())
		assert.Equal(t, originalStatus, seed.Status)

		require.Len(t, carrier.calls, 1)
		assert.Equal(t, "MSC OSCAR", carrier.calls[0].body["vesselNm"])
		assert.Equal(t, "BK12345", carrier.calls[0].body["bookNo"])
	})

	t.Run("verified submissions cannot be edited", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo, &fakeCarrier{})

		seed, err := domain.NewSubmissionRecord(domain.ModuleVGM, "BK12345", "MSCU1234567")
		require.NoError(t, err)
		_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
		require.NoError(t, err)
		seed.ContainerStatus = "VERIFIED"

		_, err = svc.Edit(context.Background(), EditCommand{
			RecordID:  seed.ID.Hex(),
			Overrides: map[string]any{"vesselNm": "MSC OSCAR"},
		})
		assert.ErrorIs(t, err, domain.ErrSubmissionNotEditable)
		assert.Equal(t, 1, repo.count())
	})

	t.Run("unknown record", func(t *testing.T) {
		svc := newTestService(newFakeRepository(), &fakeCarrier{})

		_, err := svc.Edit(context.Background(), EditCommand{
			RecordID:  primitive.NewObjectID().Hex(),
			Overrides: map[string]any{},
		})
		assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
	})
}

func TestRefreshStatus(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{result: &odex.ForwardResult{
		StatusCode:  http.StatusOK,
		Data:        map[string]any{"cntnrStatus": "Weight Verified"},
		TransportOK: true,
	}}
	svc := newTestService(repo, carrier)

	seed, err := domain.NewSubmissionRecord(domain.ModuleForm13, "BK12345", "MSCU1234567")
	require.NoError(t, err)
	_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
	require.NoError(t, err)
	seed.MarkSuccess(domain.ResponseSnapshot{
		StatusCode: 200,
		Data:       map[string]any{"odexRefNo": "OD4"},
	})

	dto, err := svc.RefreshStatus(context.Background(), seed.ID.Hex())
	require.NoError(t, err)

	require.Len(t, carrier.calls, 1)
	assert.Equal(t, odex.EndpointForm13RequestInfo, carrier.calls[0].endpoint)
	assert.Equal(t, "OD4", carrier.calls[0].body["odexRefNo"])

	assert.Equal(t, domain.ProjectedVerified, dto.Projection.Status)
	assert.False(t, dto.Projection.Editable)
	assert.Equal(t, "Weight Verified", seed.ContainerStatus)
}

func TestRefreshStatus_PollFailureKeepsRecordAndWarns(t *testing.T) {
	repo := newFakeRepository()
	carrier := &fakeCarrier{err: errors.New("connection refused")}

	var logOutput bytes.Buffer
	logger := logging.New(&logging.Config{
		Level:       logging.LevelWarn,
		ServiceName: "edocs-test",
		Output:      &logOutput,
	})
	svc := NewSubmissionService(repo, carrier, logger, nil)

	seed, err := domain.NewSubmissionRecord(domain.ModuleForm13, "BK12345", "MSCU1234567")
	require.NoError(t, err)
	_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
	require.NoError(t, err)
	seed.ContainerStatus = "Weight Verified"

	dto, err := svc.RefreshStatus(context.Background(), seed.ID.Hex())
	require.NoError(t, err)

	// The stale record comes back unchanged and the failed poll is logged.
	assert.Equal(t, domain.ProjectedVerified, dto.Projection.Status)
	assert.Equal(t, "Weight Verified", seed.ContainerStatus)
	assert.Contains(t, logOutput.String(), "Status refresh did not reach ODeX")
	assert.Contains(t, logOutput.String(), "connection refused")
}

func TestCancel(t *testing.T) {
	t.Run("accepted cancellation updates remarks", func(t *testing.T) {
		repo := newFakeRepository()
		carrier := &fakeCarrier{result: &odex.ForwardResult{
			StatusCode:  http.StatusOK,
			Data:        map[string]any{"status": "CANCEL_REQUESTED"},
			TransportOK: true,
		}}
		svc := newTestService(repo, carrier)

		seed, err := domain.NewSubmissionRecord(domain.ModuleForm13, "BK12345", "MSCU1234567")
		require.NoError(t, err)
		_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
		require.NoError(t, err)

		dto, err := svc.Cancel(context.Background(), seed.ID.Hex(), "booking rolled over")
		require.NoError(t, err)

		assert.Contains(t, dto.Remarks, "Cancellation requested on ")
		require.Len(t, carrier.calls, 1)
		assert.Equal(t, odex.EndpointForm13Cancel, carrier.calls[0].endpoint)
		assert.Equal(t, "booking rolled over", carrier.calls[0].body["reason"])
	})

	t.Run("rejected cancellation surfaces the carrier message", func(t *testing.T) {
		repo := newFakeRepository()
		carrier := &fakeCarrier{result: &odex.ForwardResult{
			StatusCode:  http.StatusUnprocessableEntity,
			Data:        map[string]any{"responseMessage": "Gate-in already completed"},
			TransportOK: true,
		}}
		svc := newTestService(repo, carrier)

		seed, err := domain.NewSubmissionRecord(domain.ModuleForm13, "BK12345", "MSCU1234567")
		require.NoError(t, err)
		_, _, err = repo.ClaimByNaturalKey(context.Background(), seed)
		require.NoError(t, err)

		_, err = svc.Cancel(context.Background(), seed.ID.Hex(), "")

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperrors.CodeCarrierRejected, appErr.Code)
		assert.Equal(t, "Gate-in already completed", appErr.Message)
	})
}

func TestList_DefaultsPagination(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(repo, &fakeCarrier{})

	page, err := svc.List(context.Background(), ListQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.Empty(t, page.Items)
}

func TestValidateOnly(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakeCarrier{})

	shipment := createTestShipment()
	shipment.Containers[0].VGMViaPortal = "N"
	shipment.Containers[0].VGMWeight = "25500"

	errs := svc.ValidateOnly(shipment)
	assert.Contains(t, errs["container_0_vgmWt"], "VGM Weight exceeds maximum allowed")
}

func TestResolveRequirements(t *testing.T) {
	svc := newTestService(newFakeRepository(), &fakeCarrier{})

	dto := svc.ResolveRequirements(createTestShipment())

	assert.Contains(t, dto.RequiredFields, "bookNo")
	var codes []string
	for _, d := range dto.Documents {
		codes = append(codes, d.Code)
	}
	assert.Contains(t, codes, "BOOKING_COPY")
	assert.Contains(t, codes, "SHIP_BILL")
}
