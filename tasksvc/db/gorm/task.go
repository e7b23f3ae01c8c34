package gorm

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	stdgorm "gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxCreateAttempts bounds retries when another process claims the same customId.
const maxCreateAttempts = 5

type task struct {
	ID        uint64 `gorm:"primaryKey"`
	CustomID  int64  `gorm:"uniqueIndex;not null"`
	Title     string `gorm:"not null"`
	Completed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (task) TableName() string { return "tasks" }

func (t task) toDomain() tasksvc.Task {
	return tasksvc.Task{
		ID:        strconv.FormatUint(t.ID, 10),
		CustomID:  t.CustomID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

var columns = map[tasksvc.SortField]string{
	tasksvc.SortByCustomID:  "custom_id",
	tasksvc.SortByTitle:     "title",
	tasksvc.SortByCompleted: "completed",
	tasksvc.SortByCreatedAt: "created_at",
	tasksvc.SortByUpdatedAt: "updated_at",
}

// AutoMigrate creates or updates the tasks table and its customId index.
func AutoMigrate(db *stdgorm.DB) error {
	return db.AutoMigrate(&task{})
}

type taskRepository struct {
	db *stdgorm.DB
	mu sync.Mutex
}

// NewTaskRepository expects db to be opened with TranslateError enabled so
// that unique violations surface as gorm.ErrDuplicatedKey.
func NewTaskRepository(db *stdgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db: db}
}

func (t *taskRepository) Create(ctx context.Context, title string) (tasksvc.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		var rec task
		err := t.db.WithContext(ctx).Transaction(func(tx *stdgorm.DB) error {
			var max int64
			row := tx.Model(&task{}).Select("COALESCE(MAX(custom_id), 0)").Row()
			if err := row.Scan(&max); err != nil {
				return err
			}

			rec = task{CustomID: max + 1, Title: title}
			return tx.Create(&rec).Error
		})
		if errors.Is(err, stdgorm.ErrDuplicatedKey) {
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
	f = f.Normalize()

	q := t.db.WithContext(ctx).Model(&task{})
	if f.Completed != nil {
		q = q.Where("completed = ?", *f.Completed)
	}
	if f.Search != "" {
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.Search))+"%")
	}

	q = q.Order(clause.OrderByColumn{
		Column: clause.Column{Name: columns[f.SortBy]},
		Desc:   f.Order == tasksvc.Desc,
	})
	if f.SortBy != tasksvc.SortByCustomID {
		q = q.Order("custom_id")
	}

	var recs []task
	if err := q.Find(&recs).Error; err != nil {
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
	err := t.db.WithContext(ctx).Where("custom_id = ?", customID).First(&rec).Error
	if errors.Is(err, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	if err != nil {
		return tasksvc.Task{}, err
	}

	return rec.toDomain(), nil
}

func (t *taskRepository) Update(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	updates := map[string]interface{}{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Completed != nil {
		updates["completed"] = *p.Completed
	}
	if len(updates) == 0 {
		return t.Find(ctx, customID)
	}

	result := t.db.WithContext(ctx).Model(&task{}).Where("custom_id = ?", customID).Updates(updates)
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return t.Find(ctx, customID)
}

func (t *taskRepository) Toggle(ctx context.Context, customID int64) (tasksvc.Task, error) {
	result := t.db.WithContext(ctx).
		Model(&task{}).
		Where("custom_id = ?", customID).
		Update("completed", stdgorm.Expr("NOT completed"))
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}

	return t.Find(ctx, customID)
}

func (t *taskRepository) Delete(ctx context.Context, customID int64) error {
	result := t.db.WithContext(ctx).Where("custom_id = ?", customID).Delete(&task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
