package taskservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/go-playground/validator/v10"
	"github.com/ichigozero/todokit/tasksvc"
)

type Service interface {
	Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error)
	Task(ctx context.Context, customID int64) (tasksvc.Task, error)
	CreateTask(ctx context.Context, title string) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, customID int64) error
	ToggleTask(ctx context.Context, customID int64) (tasksvc.Task, error)
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks    tasksvc.TaskRepository
	validate *validator.Validate
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t, validate: validator.New()}
}

type createInput struct {
	Title string `validate:"required"`
}

type updateInput struct {
	Title *string `validate:"omitnil,min=1"`
}

func (s basicService) Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.FindAll(ctx, f.Normalize())
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []tasksvc.Task{}
	}
	return tasks, nil
}

func (s basicService) Task(ctx context.Context, customID int64) (tasksvc.Task, error) {
	return s.tasks.Find(ctx, customID)
}

func (s basicService) CreateTask(ctx context.Context, title string) (tasksvc.Task, error) {
	if err := s.validate.Struct(createInput{Title: title}); err != nil {
		return tasksvc.Task{}, tasksvc.ErrTitleRequired
	}
	return s.tasks.Create(ctx, title)
}

func (s basicService) UpdateTask(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	if err := s.validate.Struct(updateInput{Title: p.Title}); err != nil {
		return tasksvc.Task{}, tasksvc.ErrTitleRequired
	}
	if p.Empty() {
		return s.tasks.Find(ctx, customID)
	}
	return s.tasks.Update(ctx, customID, p)
}

func (s basicService) DeleteTask(ctx context.Context, customID int64) error {
	return s.tasks.Delete(ctx, customID)
}

func (s basicService) ToggleTask(ctx context.Context, customID int64) (tasksvc.Task, error) {
	return s.tasks.Toggle(ctx, customID)
}
