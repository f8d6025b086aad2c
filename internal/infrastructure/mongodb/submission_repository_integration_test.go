package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pcs-platform/edocs-service/internal/domain"
)

type SubmissionRepositoryIntegrationTestSuite struct {
	suite.Suite
	mongoContainer *mongodb.MongoDBContainer
	client         *mongo.Client
	db             *mongo.Database
	repo           *SubmissionRepository
	ctx            context.Context
}

func (s *SubmissionRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := mongodb.Run(s.ctx, "mongo:6")
	s.Require().NoError(err)
	s.mongoContainer = container

	connStr, err := container.ConnectionString(s.ctx)
	s.Require().NoError(err)

	client, err := mongo.Connect(s.ctx, options.Client().ApplyURI(connStr))
	s.Require().NoError(err)
	s.client = client

	s.Require().NoError(client.Ping(s.ctx, nil))

	s.db = client.Database("edocs_test")
	s.repo = NewSubmissionRepository(s.db)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		s.client.Disconnect(s.ctx)
	}
	if s.mongoContainer != nil {
		s.Require().NoError(s.mongoContainer.Terminate(s.ctx))
	}
}

func (s *SubmissionRepositoryIntegrationTestSuite) SetupTest() {
	// Dropping the collection in teardown removes the indexes with it,
	// so they are recreated before every test.
	s.Require().NoError(s.repo.EnsureIndexes(s.ctx))
}

func (s *SubmissionRepositoryIntegrationTestSuite) TearDownTest() {
	s.db.Collection("submission_records").Drop(s.ctx)
}

func TestSubmissionRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(SubmissionRepositoryIntegrationTestSuite))
}

func (s *SubmissionRepositoryIntegrationTestSuite) newRecord(moduleName, bookingNo, containerNo string) *domain.SubmissionRecord {
	record, err := domain.NewSubmissionRecord(moduleName, bookingNo, containerNo)
	s.Require().NoError(err)
	return record
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestClaimByNaturalKey_CreatesNewRecord() {
	record := s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567")

	claimed, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, record)
	s.Require().NoError(err)

	s.True(isNew)
	s.False(claimed.ID.IsZero())
	s.Equal("BK12345|MSCU1234567", claimed.NaturalKey)
	s.Equal(domain.StatusPending, claimed.Status)
	s.Equal(0, claimed.RetryCount)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestClaimByNaturalKey_ReusesExistingRecord() {
	first, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)
	s.True(isNew)

	// Different timestamps make the staleness check meaningful.
	time.Sleep(5 * time.Millisecond)

	// Same pair with different casing and padding.
	second, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, " bk12345 ", "mscu1234567"))
	s.Require().NoError(err)

	s.False(isNew)
	s.Equal(first.ID, second.ID)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestClaimByNaturalKey_ScopedByModule() {
	vgm, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)
	s.True(isNew)

	form13, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleForm13, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)

	s.True(isNew)
	s.NotEqual(vgm.ID, form13.ID)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestClaimByNaturalKey_ConcurrentClaimsConverge() {
	const claims = 8

	var wg sync.WaitGroup
	ids := make(chan string, claims)
	claimErrs := make(chan error, claims)

	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, _, err := s.repo.ClaimByNaturalKey(context.Background(),
				s.newRecord(domain.ModuleVGM, "BK99999", "TGHU7654321"))
			if err != nil {
				claimErrs <- err
				return
			}
			ids <- claimed.ID.Hex()
		}()
	}
	wg.Wait()
	close(ids)
	close(claimErrs)

	// Racing first claims must all succeed; losers of the upsert race
	// retry and read the winner's document.
	for err := range claimErrs {
		s.Require().NoError(err)
	}

	seen := make(map[string]bool)
	for id := range ids {
		seen[id] = true
	}
	s.Len(seen, 1, "all concurrent claims must land on the same record")

	count, err := s.db.Collection("submission_records").CountDocuments(s.ctx, bson.M{"naturalKey": "BK99999|TGHU7654321"})
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestUniqueIndexAllowsEditForks() {
	root, _, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)
	root.Request.Body = map[string]any{"bookNo": "BK12345", "vesselNm": "EVER GIVEN"}
	s.Require().NoError(s.repo.Save(s.ctx, root))

	time.Sleep(5 * time.Millisecond)

	fork, err := root.ForkForEdit(map[string]any{"bookNo": "BK12345", "vesselNm": "MSC OSCAR"}, nil)
	s.Require().NoError(err)

	// The fork shares the natural key but carries originalLogId, so the
	// partial unique index does not reject it.
	s.Require().NoError(s.repo.Insert(s.ctx, fork))
	s.False(fork.ID.IsZero())

	// The newest record in the chain wins lookups by natural key.
	found, err := s.repo.FindByNaturalKey(s.ctx, domain.ModuleVGM, "bk12345", "MSCU1234567")
	s.Require().NoError(err)
	s.Equal(fork.ID, found.ID)
	s.Equal(root.ID.Hex(), found.OriginalRecordID)

	// Claims still resolve to the root, never a fork.
	claimed, isNew, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)
	s.False(isNew)
	s.Equal(root.ID, claimed.ID)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestUniqueIndexRejectsDuplicateRoots() {
	first := s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567")
	s.Require().NoError(s.repo.Insert(s.ctx, first))

	duplicate := s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567")
	err := s.repo.Insert(s.ctx, duplicate)

	s.Require().Error(err)
	s.True(mongo.IsDuplicateKeyError(err))
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestIncrementRetry() {
	record, _, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleForm13, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)
	record.MarkFailed(domain.ResponseSnapshot{StatusCode: 502}, "upstream unavailable")
	s.Require().NoError(s.repo.Save(s.ctx, record))

	updated, err := s.repo.IncrementRetry(s.ctx, record.ID.Hex(), "Updated and resubmitted on 2026-08-28T10:00:00Z")
	s.Require().NoError(err)

	s.Equal(domain.StatusPending, updated.Status)
	s.Equal(1, updated.RetryCount)
	s.Equal("Updated and resubmitted on 2026-08-28T10:00:00Z", updated.Remarks)

	updated, err = s.repo.IncrementRetry(s.ctx, record.ID.Hex(), "again")
	s.Require().NoError(err)
	s.Equal(2, updated.RetryCount)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestIncrementRetry_UnknownRecord() {
	_, err := s.repo.IncrementRetry(s.ctx, "65f000000000000000000000", "remarks")
	s.ErrorIs(err, domain.ErrSubmissionNotFound)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestSaveRoundTripsResponseSnapshot() {
	record, _, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(domain.ModuleVGM, "BK12345", "MSCU1234567"))
	s.Require().NoError(err)

	record.MarkSuccess(domain.ResponseSnapshot{
		StatusCode: 200,
		Data:       map[string]any{"odexRefNo": "OD20260828001", "cntnrStatus": "Weight Verified"},
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	})
	s.Require().NoError(s.repo.Save(s.ctx, record))

	found, err := s.repo.FindByID(s.ctx, record.ID.Hex())
	s.Require().NoError(err)
	s.Require().NotNil(found)

	s.Equal(domain.StatusSuccess, found.Status)
	body, ok := found.Response.Data.(map[string]any)
	s.Require().True(ok)
	s.Equal("OD20260828001", body["odexRefNo"])
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestFindByID_Missing() {
	found, err := s.repo.FindByID(s.ctx, "65f000000000000000000000")
	s.Require().NoError(err)
	s.Nil(found)
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestList_Filters() {
	seed := func(module, bookNo, cntnrNo string, status domain.SubmissionStatus, cntnrStatus string) *domain.SubmissionRecord {
		record, _, err := s.repo.ClaimByNaturalKey(s.ctx, s.newRecord(module, bookNo, cntnrNo))
		s.Require().NoError(err)
		record.Status = status
		if cntnrStatus != "" {
			record.Response = domain.ResponseSnapshot{
				StatusCode: 200,
				Data:       map[string]any{"cntnrStatus": cntnrStatus},
			}
		}
		s.Require().NoError(s.repo.Save(s.ctx, record))
		time.Sleep(5 * time.Millisecond)
		return record
	}

	seed(domain.ModuleVGM, "BK11111", "MSCU1111111", domain.StatusSuccess, "Weight Verified")
	seed(domain.ModuleVGM, "BK22222", "MSCU2222222", domain.StatusFailed, "")
	seed(domain.ModuleForm13, "BK11111", "MSCU3333333", domain.StatusSuccess, "")

	s.Run("by module", func() {
		records, total, err := s.repo.List(s.ctx, domain.ListFilter{ModuleName: domain.ModuleForm13})
		s.Require().NoError(err)
		s.Equal(int64(1), total)
		s.Equal(domain.ModuleForm13, records[0].ModuleName)
	})

	s.Run("booking number matches case-insensitively", func() {
		records, total, err := s.repo.List(s.ctx, domain.ListFilter{BookingNo: "bk11111"})
		s.Require().NoError(err)
		s.Equal(int64(2), total)
		s.Len(records, 2)
	})

	s.Run("status matches the carrier-confirmed container status", func() {
		records, total, err := s.repo.List(s.ctx, domain.ListFilter{Status: "weight verified"})
		s.Require().NoError(err)
		s.Equal(int64(1), total)
		s.Equal("BK11111", records[0].BookingNo)
	})

	s.Run("status matches the record status", func() {
		_, total, err := s.repo.List(s.ctx, domain.ListFilter{Status: string(domain.StatusFailed)})
		s.Require().NoError(err)
		s.Equal(int64(1), total)
	})

	s.Run("newest first with pagination", func() {
		page1, total, err := s.repo.List(s.ctx, domain.ListFilter{Page: 1, PageSize: 2})
		s.Require().NoError(err)
		s.Equal(int64(3), total)
		s.Require().Len(page1, 2)
		s.False(page1[0].CreatedAt.Before(page1[1].CreatedAt))

		page2, _, err := s.repo.List(s.ctx, domain.ListFilter{Page: 2, PageSize: 2})
		s.Require().NoError(err)
		s.Len(page2, 1)
	})

	s.Run("created range", func() {
		future := time.Now().UTC().Add(time.Hour)
		_, total, err := s.repo.List(s.ctx, domain.ListFilter{From: &future})
		s.Require().NoError(err)
		s.Equal(int64(0), total)
	})
}

func (s *SubmissionRepositoryIntegrationTestSuite) TestEnsureIndexes_CreatesPartialUniqueIndex() {
	cursor, err := s.db.Collection("submission_records").Indexes().List(s.ctx)
	s.Require().NoError(err)

	var indexes []bson.M
	s.Require().NoError(cursor.All(s.ctx, &indexes))

	var found bson.M
	for _, idx := range indexes {
		if idx["name"] == "idx_module_natural_key" {
			found = idx
		}
	}
	s.Require().NotNil(found, "expected idx_module_natural_key to exist")
	s.Equal(true, found["unique"])
	s.Contains(found, "partialFilterExpression")
}
