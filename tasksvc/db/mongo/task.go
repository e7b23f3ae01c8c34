// Package mongo stores tasks as documents in a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	CollectionName = "tasks"

	// maxCreateAttempts bounds retries when another process claims the same customId.
	maxCreateAttempts = 5
)

type task struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CustomID  int64              `bson:"customId"`
	Title     string             `bson:"title"`
	Completed bool               `bson:"completed"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

func (t task) toDomain() tasksvc.Task {
	return tasksvc.Task{
		ID:        t.ID.Hex(),
		CustomID:  t.CustomID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// Connect dials uri and verifies the deployment is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the unique customId index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(CollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "customId", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("customId_unique"),
	})
	return err
}

type taskRepository struct {
	coll *mongo.Collection
	mu   sync.Mutex
	now  func() time.Time
}

func NewTaskRepository(db *mongo.Database) tasksvc.TaskRepository {
	return &taskRepository{coll: db.Collection(CollectionName), now: time.Now}
}

func (t *taskRepository) timestamp() time.Time {
	// BSON dates carry millisecond precision.
	return t.now().UTC().Truncate(time.Millisecond)
}

func (t *taskRepository) Create(ctx context.Context, title string) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var last task
		err := t.coll.FindOne(
			ctx,
			bson.D{},
			options.FindOne().
				SetSort(bson.D{{Key: "customId", Value: -1}}).
				SetProjection(bson.D{{Key: "customId", Value: 1}}),
		).Decode(&last)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return tasksvc.Task{}, err
		}

		now := t.timestamp()
		rec := task{
			ID:        primitive.NewObjectID(),
			CustomID:  last.CustomID + 1,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = t.coll.InsertOne(ctx, rec)
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return tasksvc.Task{}, err
		}
		return rec.toDomain(), nil
	}

	return tasksvc.Task{}, tasksvc.ErrCustomIDConflict
}

func (t *taskRepository) FindAll(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	cursor, err := t.coll.Find(ctx, buildFilter(f), options.Find().SetSort(buildSort(f)))
	if err != nil {
		return nil, err
	}

	var recs []task
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, err
	}

	tasks := make([]tasksvc.Task, 0, len(recs))
	for _, rec := range recs {
		tasks = append(tasks, rec.toDomain())
	}
	return tasks, nil
}

func (t *taskRepository) Find(ctx context.Context, customID int64) (tasksvc.Task, error) {
	var rec task
	err := t.coll.FindOne(ctx, byCustomID(customID)).Decode(&rec)
	return found(rec, err)
}

func (t *taskRepository) Update(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	set := bson.D{{Key: "updatedAt", Value: t.timestamp()}}
	if p.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *p.Title})
	}
	if p.Completed != nil {
		set = append(set, bson.E{Key: "completed", Value: *p.Completed})
	}

	var rec task
	err := t.coll.FindOneAndUpdate(
		ctx,
		byCustomID(customID),
		bson.D{{Key: "$set", Value: set}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	return found(rec, err)
}

func (t *taskRepository) Toggle(ctx context.Context, customID int64) (tasksvc.Task, error) {
	var rec task
	err := t.coll.FindOneAndUpdate(
		ctx,
		byCustomID(customID),
		togglePipeline(t.timestamp()),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	return found(rec, err)
}

func (t *taskRepository) Delete(ctx context.Context, customID int64) error {
	result, err := t.coll.DeleteOne(ctx, byCustomID(customID))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

// togglePipeline negates completed server-side in a single update.
func togglePipeline(now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "completed", Value: bson.D{{Key: "$not", Value: bson.A{"$completed"}}}},
			{Key: "updatedAt", Value: now},
		}}},
	}
}

func byCustomID(customID int64) bson.D {
	return bson.D{{Key: "customId", Value: customID}}
}

func found(rec task, err error) (tasksvc.Task, error) {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err != nil {
		return tasksvc.Task{}, err
	}
	return rec.toDomain(), nil
}

// buildFilter translates the listing criteria into a query document. The
// search term is matched literally.
func buildFilter(f tasksvc.Filter) bson.D {
	filter := bson.D{}
	if f.Completed != nil {
		filter = append(filter, bson.E{Key: "completed", Value: *f.Completed})
	}
	if f.Search != "" {
		filter = append(filter, bson.E{
			Key:   "title",
			Value: primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"},
		})
	}
	return filter
}

// Sort fields share their names with the document keys.
func buildSort(f tasksvc.Filter) bson.D {
	f = f.Normalize()
	dir := 1
	if f.Order == tasksvc.Desc {
		dir = -1
	}
	sort := bson.D{{Key: string(f.SortBy), Value: dir}}
	if f.SortBy != tasksvc.SortByCustomID {
		sort = append(sort, bson.E{Key: "customId", Value: 1})
	}
	return sort
}
