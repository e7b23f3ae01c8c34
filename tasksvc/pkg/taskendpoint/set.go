package taskendpoint

import (
	"context"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
)

type Set struct {
	TasksEndpoint      endpoint.Endpoint
	TaskEndpoint       endpoint.Endpoint
	CreateTaskEndpoint endpoint.Endpoint
	UpdateTaskEndpoint endpoint.Endpoint
	DeleteTaskEndpoint endpoint.Endpoint
	ToggleTaskEndpoint endpoint.Endpoint
}

func New(svc taskservice.Service, logger log.Logger) Set {
	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = MakeTasksEndpoint(svc)
		tasksEndpoint = LoggingMiddleware(log.With(logger, "method", "Tasks"))(tasksEndpoint)
	}
	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = MakeTaskEndpoint(svc)
		taskEndpoint = LoggingMiddleware(log.With(logger, "method", "Task"))(taskEndpoint)
	}
	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = MakeCreateTaskEndpoint(svc)
		createTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateTask"))(createTaskEndpoint)
	}
	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = MakeUpdateTaskEndpoint(svc)
		updateTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateTask"))(updateTaskEndpoint)
	}
	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = MakeDeleteTaskEndpoint(svc)
		deleteTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteTask"))(deleteTaskEndpoint)
	}
	var toggleTaskEndpoint endpoint.Endpoint
	{
		toggleTaskEndpoint = MakeToggleTaskEndpoint(svc)
		toggleTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "ToggleTask"))(toggleTaskEndpoint)
	}

	return Set{
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		CreateTaskEndpoint: createTaskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
		ToggleTaskEndpoint: toggleTaskEndpoint,
	}
}

func (s Set) Tasks(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	resp, err := s.TasksEndpoint(ctx, TasksRequest{Filter: f})
	if err != nil {
		return nil, err
	}
	response := resp.(TasksResponse)
	return response.Tasks, response.Err
}

func (s Set) Task(ctx context.Context, customID int64) (tasksvc.Task, error) {
	resp, err := s.TaskEndpoint(ctx, TaskRequest{CustomID: customID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) CreateTask(ctx context.Context, title string) (tasksvc.Task, error) {
	resp, err := s.CreateTaskEndpoint(ctx, CreateTaskRequest{Title: title})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(CreateTaskResponse)
	return response.Task, response.Err
}

func (s Set) UpdateTask(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	resp, err := s.UpdateTaskEndpoint(
		ctx,
		UpdateTaskRequest{
			CustomID:  customID,
			Title:     p.Title,
			Completed: p.Completed,
		},
	)
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(UpdateTaskResponse)
	return response.Task, response.Err
}

func (s Set) DeleteTask(ctx context.Context, customID int64) error {
	resp, err := s.DeleteTaskEndpoint(ctx, DeleteTaskRequest{CustomID: customID})
	if err != nil {
		return err
	}
	response := resp.(DeleteTaskResponse)
	return response.Err
}

func (s Set) ToggleTask(ctx context.Context, customID int64) (tasksvc.Task, error) {
	resp, err := s.ToggleTaskEndpoint(ctx, ToggleTaskRequest{CustomID: customID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(ToggleTaskResponse)
	return response.Task, response.Err
}

func MakeTasksEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(TasksRequest)
		t, err := s.Tasks(ctx, req.Filter)
		return TasksResponse{Tasks: t, Err: err}, nil
	}
}

func MakeTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(TaskRequest)
		t, err := s.Task(ctx, req.CustomID)
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeCreateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(CreateTaskRequest)
		t, err := s.CreateTask(ctx, req.Title)
		return CreateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeUpdateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(UpdateTaskRequest)
		t, err := s.UpdateTask(
			ctx,
			req.CustomID,
			tasksvc.Patch{Title: req.Title, Completed: req.Completed},
		)
		return UpdateTaskResponse{Task: t, Err: err}, nil
	}
}

func MakeDeleteTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(DeleteTaskRequest)
		err = s.DeleteTask(ctx, req.CustomID)
		if err != nil {
			return DeleteTaskResponse{Err: err}, nil
		}
		return DeleteTaskResponse{Message: tasksvc.DeletedMessage}, nil
	}
}

func MakeToggleTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(ToggleTaskRequest)
		t, err := s.ToggleTask(ctx, req.CustomID)
		return ToggleTaskResponse{Task: t, Err: err}, nil
	}
}

var (
	_ endpoint.Failer = TasksResponse{}
	_ endpoint.Failer = TaskResponse{}
	_ endpoint.Failer = CreateTaskResponse{}
	_ endpoint.Failer = UpdateTaskResponse{}
	_ endpoint.Failer = DeleteTaskResponse{}
	_ endpoint.Failer = ToggleTaskResponse{}
)

type TasksRequest struct {
	Filter tasksvc.Filter
}

type TasksResponse struct {
	Tasks []tasksvc.Task
	Err   error
}

func (r TasksResponse) Failed() error { return r.Err }

type TaskRequest struct {
	CustomID int64
}

type TaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r TaskResponse) Failed() error { return r.Err }

type CreateTaskRequest struct {
	Title string `json:"title"`
}

type CreateTaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r CreateTaskResponse) Failed() error { return r.Err }

type UpdateTaskRequest struct {
	CustomID  int64   `json:"-"`
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

type UpdateTaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r UpdateTaskResponse) Failed() error { return r.Err }

type DeleteTaskRequest struct {
	CustomID int64
}

type DeleteTaskResponse struct {
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (r DeleteTaskResponse) Failed() error { return r.Err }

type ToggleTaskRequest struct {
	CustomID int64
}

type ToggleTaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r ToggleTaskResponse) Failed() error { return r.Err }
