package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/finrecon/bank-reconciliation/internal/domain/runs"
)

const (
	// RunCollectionName is the name of the auto-match run collection in MongoDB
	RunCollectionName = "automatch_runs"
)

// RunRepository implements the runs.Repository interface for MongoDB
type RunRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewRunRepository creates a new MongoDB run repository
func NewRunRepository(logger *slog.Logger, db *mongo.Database) runs.Repository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new auto-match run document
func (r *RunRepository) Create(ctx context.Context, run *runs.Run) error {
	collection := r.db.Collection(RunCollectionName)

	_, err := collection.InsertOne(ctx, run)
	if err != nil {
		r.logger.Error("Failed to create run document",
			"run_id", run.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create run document: %w", err)
	}

	return nil
}

// GetByID retrieves a run document by its run ID.
// Returns ErrRunNotFound if no document exists for the given run.
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*runs.Run, error) {
	collection := r.db.Collection(RunCollectionName)

	filter := bson.M{"run_id": id}
	var run runs.Run
	err := collection.FindOne(ctx, filter).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, runs.ErrRunNotFound{RunID: id}
		}
		r.logger.Error("Failed to get run document",
			"run_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get run document: %w", err)
	}

	return &run, nil
}

// List retrieves paginated run documents.
// Results are sorted by start time in descending order (newest first).
func (r *RunRepository) List(ctx context.Context, limit, offset int) ([]*runs.Run, error) {
	collection := r.db.Collection(RunCollectionName)

	opts := options.Find().
		SetSort(bson.M{"started_at": -1}). // Sort by started_at in descending order
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list run documents", "error", err)
		return nil, fmt.Errorf("failed to list run documents: %w", err)
	}
	defer cursor.Close(ctx)

	var results []*runs.Run
	if err := cursor.All(ctx, &results); err != nil {
		r.logger.Error("Failed to decode run documents", "error", err)
		return nil, fmt.Errorf("failed to decode run documents: %w", err)
	}

	return results, nil
}

// Count counts the total number of run documents
func (r *RunRepository) Count(ctx context.Context) (int64, error) {
	collection := r.db.Collection(RunCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		r.logger.Error("Failed to count run documents", "error", err)
		return 0, fmt.Errorf("failed to count run documents: %w", err)
	}

	return count, nil
}
