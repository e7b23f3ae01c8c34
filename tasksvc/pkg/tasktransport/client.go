package tasktransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/ratelimit"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPClient returns a Service backed by the REST API at instance. The
// instance is either an API base URL such as http://localhost:8080/api or a
// bare host:port, in which case /api is assumed.
func NewHTTPClient(instance string, logger log.Logger) (taskservice.Service, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(u.Path, "/")
	if base == "" {
		base = "/api"
	}
	tasksPath := base + "/tasks"

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))

	options := []httptransport.ClientOption{
		httptransport.ClientFinalizer(func(ctx context.Context, err error) {
			if err != nil {
				logger.Log("transport", "HTTP", "err", err)
			}
		}),
	}

	wrap := func(name string, e endpoint.Endpoint) endpoint.Endpoint {
		e = limiter(e)
		e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
		}))(e)
		return e
	}

	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, tasksPath),
			encodeHTTPTasksRequest,
			decodeHTTPTasksResponse,
			options...,
		).Endpoint()
		tasksEndpoint = wrap("Tasks", tasksEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = httptransport.NewClient(
			"GET",
			copyURL(u, tasksPath),
			encodeHTTPTaskPathRequest(tasksPath, ""),
			decodeHTTPTaskResponse(func(t tasksvc.Task, err error) interface{} {
				return taskendpoint.TaskResponse{Task: t, Err: err}
			}),
			options...,
		).Endpoint()
		taskEndpoint = wrap("Task", taskEndpoint)
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, tasksPath),
			encodeHTTPGenericRequest,
			decodeHTTPTaskResponse(func(t tasksvc.Task, err error) interface{} {
				return taskendpoint.CreateTaskResponse{Task: t, Err: err}
			}),
			options...,
		).Endpoint()
		createTaskEndpoint = wrap("CreateTask", createTaskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = httptransport.NewClient(
			"PUT",
			copyURL(u, tasksPath),
			encodeHTTPUpdateTaskRequest(tasksPath),
			decodeHTTPTaskResponse(func(t tasksvc.Task, err error) interface{} {
				return taskendpoint.UpdateTaskResponse{Task: t, Err: err}
			}),
			options...,
		).Endpoint()
		updateTaskEndpoint = wrap("UpdateTask", updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = httptransport.NewClient(
			"DELETE",
			copyURL(u, tasksPath),
			encodeHTTPTaskPathRequest(tasksPath, ""),
			decodeHTTPDeleteTaskResponse,
			options...,
		).Endpoint()
		deleteTaskEndpoint = wrap("DeleteTask", deleteTaskEndpoint)
	}

	var toggleTaskEndpoint endpoint.Endpoint
	{
		toggleTaskEndpoint = httptransport.NewClient(
			"PATCH",
			copyURL(u, tasksPath),
			encodeHTTPTaskPathRequest(tasksPath, "/toggle"),
			decodeHTTPTaskResponse(func(t tasksvc.Task, err error) interface{} {
				return taskendpoint.ToggleTaskResponse{Task: t, Err: err}
			}),
			options...,
		).Endpoint()
		toggleTaskEndpoint = wrap("ToggleTask", toggleTaskEndpoint)
	}

	return taskendpoint.Set{
		TasksEndpoint:      tasksEndpoint,
		TaskEndpoint:       taskEndpoint,
		CreateTaskEndpoint: createTaskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
		ToggleTaskEndpoint: toggleTaskEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = path
	return &next
}

func encodeHTTPTasksRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.TasksRequest)
	q := r.URL.Query()
	if req.Filter.Completed != nil {
		q.Set("completed", strconv.FormatBool(*req.Filter.Completed))
	}
	if req.Filter.Search != "" {
		q.Set("search", req.Filter.Search)
	}
	if req.Filter.SortBy != "" {
		q.Set("sortBy", string(req.Filter.SortBy))
	}
	if req.Filter.Order != "" {
		q.Set("order", string(req.Filter.Order))
	}
	r.URL.RawQuery = q.Encode()
	return nil
}

// encodeHTTPTaskPathRequest addresses the task named by the request's
// customId, optionally followed by suffix.
func encodeHTTPTaskPathRequest(tasksPath, suffix string) httptransport.EncodeRequestFunc {
	return func(_ context.Context, r *http.Request, request interface{}) error {
		var customID int64
		switch req := request.(type) {
		case taskendpoint.TaskRequest:
			customID = req.CustomID
		case taskendpoint.DeleteTaskRequest:
			customID = req.CustomID
		case taskendpoint.ToggleTaskRequest:
			customID = req.CustomID
		default:
			return fmt.Errorf("unexpected request type %T", request)
		}
		r.URL.Path = tasksPath + "/" + strconv.FormatInt(customID, 10) + suffix
		return nil
	}
}

func encodeHTTPUpdateTaskRequest(tasksPath string) httptransport.EncodeRequestFunc {
	return func(ctx context.Context, r *http.Request, request interface{}) error {
		req := request.(taskendpoint.UpdateTaskRequest)
		r.URL.Path = tasksPath + "/" + strconv.FormatInt(req.CustomID, 10)
		return encodeHTTPGenericRequest(ctx, r, req)
	}
}

// encodeHTTPGenericRequest is a transport/http.EncodeRequestFunc that
// JSON-encodes any request to the request body. Primarily useful in a client.
func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	r.ContentLength = int64(buf.Len())
	r.Body = io.NopCloser(&buf)
	return nil
}

func decodeHTTPTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := responseError(r); err != nil {
		return nil, err
	}
	if err := failure(r); err != nil {
		return taskendpoint.TasksResponse{Err: err}, nil
	}
	var tasks []tasksvc.Task
	if err := json.NewDecoder(r.Body).Decode(&tasks); err != nil {
		return nil, err
	}
	return taskendpoint.TasksResponse{Tasks: tasks}, nil
}

func decodeHTTPTaskResponse(wrap func(tasksvc.Task, error) interface{}) httptransport.DecodeResponseFunc {
	return func(_ context.Context, r *http.Response) (interface{}, error) {
		if err := responseError(r); err != nil {
			return nil, err
		}
		if err := failure(r); err != nil {
			return wrap(tasksvc.Task{}, err), nil
		}
		var task tasksvc.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			return nil, err
		}
		return wrap(task, nil), nil
	}
}

func decodeHTTPDeleteTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if err := responseError(r); err != nil {
		return nil, err
	}
	if err := failure(r); err != nil {
		return taskendpoint.DeleteTaskResponse{Err: err}, nil
	}
	var resp taskendpoint.DeleteTaskResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

// responseError reports server-side failures as transport errors so that the
// circuit breaker sees them.
func responseError(r *http.Response) error {
	if r.StatusCode < http.StatusInternalServerError {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Status, errorMessage(r))
}

// failure decodes a 4xx body into the matching domain error.
func failure(r *http.Response) error {
	if r.StatusCode < http.StatusBadRequest {
		return nil
	}
	return str2err(errorMessage(r))
}

func errorMessage(r *http.Response) string {
	var e errorWrapper
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil || e.Error == "" {
		return r.Status
	}
	return e.Error
}

func str2err(s string) error {
	switch s {
	case tasksvc.ErrTitleRequired.Error():
		return tasksvc.ErrTitleRequired
	case tasksvc.ErrInvalidID.Error():
		return tasksvc.ErrInvalidID
	case tasksvc.ErrTaskNotFound.Error():
		return tasksvc.ErrTaskNotFound
	}
	if strings.HasPrefix(s, tasksvc.ErrInvalidArgument.Error()) {
		return fmt.Errorf("%w%s", tasksvc.ErrInvalidArgument, strings.TrimPrefix(s, tasksvc.ErrInvalidArgument.Error()))
	}
	return errors.New(s)
}
