package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pcs-platform/edocs-service/internal/domain"
)

const submissionsCollection = "submission_records"

// SubmissionRepository is the MongoDB implementation of the submission store
type SubmissionRepository struct {
	collection *mongo.Collection
}

// NewSubmissionRepository creates a new MongoDB submission repository
func NewSubmissionRepository(db *mongo.Database) *SubmissionRepository {
	return &SubmissionRepository{
		collection: db.Collection(submissionsCollection),
	}
}

// EnsureIndexes creates the indexes the repository relies on. The partial
// unique index on (moduleName, naturalKey) is what makes the dedup claim
// race-free: edit forks carry originalLogId and are exempt, so only one
// root record can ever exist per natural key.
func (r *SubmissionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "moduleName", Value: 1},
				{Key: "naturalKey", Value: 1},
			},
			Options: options.Index().
				SetUnique(true).
				SetName("idx_module_natural_key").
				SetPartialFilterExpression(bson.M{"originalLogId": bson.M{"$exists": false}}),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_status"),
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// ClaimByNaturalKey atomically finds or creates the root record for the
// natural key. A single FindOneAndUpdate upsert means two concurrent
// submits for the same booking/container converge on one document.
func (r *SubmissionRepository) ClaimByNaturalKey(ctx context.Context, record *domain.SubmissionRecord) (*domain.SubmissionRecord, bool, error) {
	filter := bson.M{
		"moduleName":    record.ModuleName,
		"naturalKey":    record.NaturalKey,
		"originalLogId": bson.M{"$exists": false},
	}

	update := bson.M{
		"$setOnInsert": bson.M{
			"moduleName": record.ModuleName,
			"bookNo":     record.BookingNo,
			"cntnrNo":    record.ContainerNo,
			"naturalKey": record.NaturalKey,
			"status":     record.Status,
			"retryCount": 0,
			"request":    record.Request,
			"response":   record.Response,
			"createdAt":  record.CreatedAt,
			"updatedAt":  record.UpdatedAt,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var result domain.SubmissionRecord
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	if mongo.IsDuplicateKeyError(err) {
		// Two first claims raced the upsert and the unique index
		// rejected the loser. The winner's document now exists, so a
		// second attempt reads it.
		err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to claim submission record: %w", err)
	}

	isNew := result.CreatedAt.Equal(record.CreatedAt)
	return &result, isNew, nil
}

// Save replaces the stored record
func (r *SubmissionRepository) Save(ctx context.Context, record *domain.SubmissionRecord) error {
	record.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)

	filter := bson.M{"_id": record.ID}
	if _, err := r.collection.ReplaceOne(ctx, filter, record); err != nil {
		return fmt.Errorf("failed to save submission record: %w", err)
	}
	return nil
}

// Insert stores a brand-new record (edit forks bypass the natural-key claim)
func (r *SubmissionRepository) Insert(ctx context.Context, record *domain.SubmissionRecord) error {
	res, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert submission record: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		record.ID = oid
	}
	return nil
}

// IncrementRetry atomically resets a record to pending and bumps retryCount
func (r *SubmissionRepository) IncrementRetry(ctx context.Context, id string, remarks string) (*domain.SubmissionRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}

	filter := bson.M{"_id": objID}
	update := bson.M{
		"$set": bson.M{
			"status":    domain.StatusPending,
			"remarks":   remarks,
			"updatedAt": time.Now().UTC().Truncate(time.Millisecond),
		},
		"$inc": bson.M{"retryCount": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var result domain.SubmissionRecord
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to increment retry count: %w", err)
	}

	return &result, nil
}

// FindByID retrieves a record by its ObjectID hex
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record id %q: %w", id, err)
	}

	var record domain.SubmissionRecord
	if err := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find submission record: %w", err)
	}

	return &record, nil
}

// FindByNaturalKey retrieves the newest record matching the normalized
// booking/container pair within a module. Edit forks are included, so the
// most recent attempt in the chain wins.
func (r *SubmissionRepository) FindByNaturalKey(ctx context.Context, moduleName, bookingNo, containerNo string) (*domain.SubmissionRecord, error) {
	filter := bson.M{
		"moduleName": moduleName,
		"naturalKey": domain.NaturalKeyFor(bookingNo, containerNo),
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	var record domain.SubmissionRecord
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&record); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find submission record: %w", err)
	}

	return &record, nil
}

// List retrieves records matching the filter, newest first, with the total count
func (r *SubmissionRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.SubmissionRecord, int64, error) {
	query := bson.M{}

	if filter.ModuleName != "" {
		query["moduleName"] = filter.ModuleName
	}
	if filter.BookingNo != "" {
		query["bookNo"] = caseInsensitive(filter.BookingNo)
	}
	if filter.ContainerNo != "" {
		query["cntnrNo"] = caseInsensitive(filter.ContainerNo)
	}
	if filter.Status != "" {
		// A record is a match when either its own status or the
		// carrier-confirmed container status inside the response agrees.
		query["$or"] = bson.A{
			bson.M{"status": filter.Status},
			bson.M{"response.data.cntnrStatus": caseInsensitive(filter.Status)},
		}
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["createdAt"] = created
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count submission records: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list submission records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*domain.SubmissionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, fmt.Errorf("failed to decode submission records: %w", err)
	}

	return records, total, nil
}

func caseInsensitive(value string) bson.M {
	return bson.M{"$regex": fmt.Sprintf("^\\s*%s\\s*$", escapeRegex(value)), "$options": "i"}
}

func escapeRegex(s string) string {
	special := `\.+*?()|[]{}^$`
	out := make([]rune, 0, len(s))
	for _, r := range s {
		for _, sp := range special {
			if r == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, r)
	}
	return string(out)
}
