package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskmaster-hq/taskmaster-api/internal/domain"
	"github.com/taskmaster-hq/taskmaster-api/internal/platform/logger"
	"github.com/taskmaster-hq/taskmaster-api/internal/redact"
	"github.com/taskmaster-hq/taskmaster-api/internal/store"
)

// TaskCollection is the collection tasks are stored in.
const TaskCollection = "tasks"

// TaskStore implements store.TaskStore on a MongoDB collection.
type TaskStore struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

// NewTaskStore creates a TaskStore on db.tasks.
func NewTaskStore(db *mongo.Database, logger *slog.Logger) *TaskStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskStore{
		coll:   db.Collection(TaskCollection),
		logger: logger.With(slog.String("component", "mongo_task_store")),
	}
}

var _ store.TaskStore = (*TaskStore)(nil)

// EnsureIndexes creates the partition index used by every ordering query.
func (s *TaskStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}, {Key: "category", Value: 1}, {Key: "order", Value: 1}},
	})
	return MapError(err)
}

func (s *TaskStore) fail(ctx context.Context, op string, err error) error {
	logger.FromContextOrDefault(ctx, s.logger).Error("mongo task operation failed",
		slog.String("operation", op),
		slog.String("error", redact.Error(err)))
	return store.NewStoreError("task", op, "mongo operation failed", MapError(err))
}

// Insert implements store.TaskStore.Insert
func (s *TaskStore) Insert(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	res, err := s.coll.InsertOne(ctx, newTaskDocument(task))
	if err != nil {
		return s.fail(ctx, "insert", err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return store.NewStoreError("task", "insert", fmt.Sprintf("unexpected id type %T", res.InsertedID), nil)
	}
	task.ID = oid.Hex()
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *TaskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}

	var doc taskDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrTaskNotFound
		}
		return nil, s.fail(ctx, "get", err)
	}
	return doc.toDomain(), nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "category", Value: 1}, {Key: "order", Value: 1},
		{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1},
	})
	return s.find(ctx, "list", bson.M{"email": ownerID}, opts)
}

// ListPartition implements store.TaskStore.ListPartition
func (s *TaskStore) ListPartition(ctx context.Context, p domain.Partition) ([]*domain.Task, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "order", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1},
	})
	return s.find(ctx, "list partition", partitionFilter(p), opts)
}

func (s *TaskStore) find(ctx context.Context, op string, filter bson.M, opts *options.FindOptions) ([]*domain.Task, error) {
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, s.fail(ctx, op, err)
	}

	var docs []taskDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, s.fail(ctx, op, err)
	}

	tasks := make([]*domain.Task, len(docs))
	for i, d := range docs {
		tasks[i] = d.toDomain()
	}
	return tasks, nil
}

// CountPartition counts only ranked documents; legacy documents written
// without an order field are ignored.
func (s *TaskStore) CountPartition(ctx context.Context, p domain.Partition) (int, error) {
	filter := partitionFilter(p)
	filter["order"] = bson.M{"$exists": true}

	n, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, s.fail(ctx, "count", err)
	}
	return int(n), nil
}

// Update implements store.TaskStore.Update
func (s *TaskStore) Update(ctx context.Context, id, ownerID string, update domain.TaskUpdate) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}
	if update.IsEmpty() {
		return nil
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid, "email": ownerID}, bson.M{"$set": updateSet(update)})
	if err != nil {
		return s.fail(ctx, "update", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *TaskStore) Delete(ctx context.Context, id, ownerID string) error {
	oid, err := parseObjectID(id)
	if err != nil {
		return err
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid, "email": ownerID})
	if err != nil {
		return s.fail(ctx, "delete", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrTaskNotFound
	}
	return nil
}

// ApplyOrders issues one ordered bulk write. Without a multi-document
// transaction a failure can leave the partition torn; that case is reported
// as store.ErrPartialBatch so the caller retries under the partition lock.
func (s *TaskStore) ApplyOrders(ctx context.Context, p domain.Partition, assignments []domain.OrderAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(assignments))
	for _, a := range assignments {
		oid, err := primitive.ObjectIDFromHex(a.TaskID)
		if err != nil {
			return store.NewStoreError("task", "apply orders", "invalid task id "+a.TaskID, store.ErrPartialBatch)
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(conditionalFilter(oid, p.OwnerID, p.Category)).
			SetUpdate(bson.M{"$set": bson.M{"order": a.Order}}))
	}

	res, err := s.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("rank bulk write failed",
			slog.String("partition", p.String()),
			slog.String("error", redact.Error(err)))
		return store.NewStoreError("task", "apply orders", "bulk write failed",
			fmt.Errorf("%w: %v", store.ErrPartialBatch, MapError(err)))
	}
	if int(res.MatchedCount) != len(assignments) {
		return store.NewStoreError("task", "apply orders",
			fmt.Sprintf("matched %d of %d tasks", res.MatchedCount, len(assignments)), store.ErrPartialBatch)
	}
	return nil
}

// SetOrdersIf issues one conditional update per item so each item's match
// can be reported individually.
func (s *TaskStore) SetOrdersIf(ctx context.Context, ownerID string, items []domain.ReorderItem) ([]bool, error) {
	matched := make([]bool, len(items))
	for i, item := range items {
		oid, err := primitive.ObjectIDFromHex(item.ID)
		if err != nil {
			continue
		}
		res, err := s.coll.UpdateOne(ctx,
			conditionalFilter(oid, ownerID, item.Category),
			bson.M{"$set": bson.M{"order": item.Order}})
		if err != nil {
			return matched, s.fail(ctx, "reorder", err)
		}
		matched[i] = res.MatchedCount > 0
	}
	return matched, nil
}
