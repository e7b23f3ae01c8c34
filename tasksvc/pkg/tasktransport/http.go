package tasktransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BasePath is where the task resource is mounted.
const BasePath = "/api/tasks"

const banner = "To-do API is running!"

func NewHTTPHandler(endpoints taskendpoint.Set, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	tasksHandler := httptransport.NewServer(
		endpoints.TasksEndpoint,
		decodeHTTPTasksRequest,
		encodeHTTPTasksResponse,
		options...,
	)

	taskHandler := httptransport.NewServer(
		endpoints.TaskEndpoint,
		decodeHTTPTaskRequest,
		encodeHTTPTaskResponse(http.StatusOK),
		options...,
	)

	createTaskHandler := httptransport.NewServer(
		endpoints.CreateTaskEndpoint,
		decodeHTTPCreateTaskRequest,
		encodeHTTPTaskResponse(http.StatusCreated),
		options...,
	)

	updateTaskHandler := httptransport.NewServer(
		endpoints.UpdateTaskEndpoint,
		decodeHTTPUpdateTaskRequest,
		encodeHTTPTaskResponse(http.StatusOK),
		options...,
	)

	deleteTaskHandler := httptransport.NewServer(
		endpoints.DeleteTaskEndpoint,
		decodeHTTPDeleteTaskRequest,
		encodeHTTPGenericResponse,
		options...,
	)

	toggleTaskHandler := httptransport.NewServer(
		endpoints.ToggleTaskEndpoint,
		decodeHTTPToggleTaskRequest,
		encodeHTTPTaskResponse(http.StatusOK),
		options...,
	)

	r := mux.NewRouter()

	for _, p := range []string{BasePath, BasePath + "/"} {
		r.Methods("GET").Path(p).Handler(tasksHandler)
		r.Methods("POST").Path(p).Handler(createTaskHandler)
	}
	r.Methods("GET").Path(BasePath + "/{id}").Handler(taskHandler)
	r.Methods("PUT").Path(BasePath + "/{id}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path(BasePath + "/{id}").Handler(deleteTaskHandler)
	r.Methods("PATCH").Path(BasePath + "/{id}/toggle").Handler(toggleTaskHandler)
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	r.Methods("GET").Path("/healthz").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		encodeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Methods("GET").Path("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, banner)
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		encodeJSON(w, http.StatusNotFound, errorWrapper{Error: "Not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		encodeJSON(w, http.StatusMethodNotAllowed, errorWrapper{Error: "Method not allowed"})
	})

	return r
}

// WithCORS allows browser front-ends served from the given origins to call the API.
func WithCORS(h http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	encodeJSON(w, err2code(err), errorWrapper{Error: err.Error()})
}

type errorWrapper struct {
	Error string `json:"error"`
}

func err2code(err error) int {
	switch {
	case errors.Is(err, tasksvc.ErrTitleRequired),
		errors.Is(err, tasksvc.ErrInvalidID),
		errors.Is(err, tasksvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeHTTPTasksRequest(_ context.Context, r *http.Request) (interface{}, error) {
	q := r.URL.Query()
	f := tasksvc.Filter{
		Search: q.Get("search"),
		SortBy: tasksvc.SortField(q.Get("sortBy")),
		Order:  tasksvc.SortOrder(q.Get("order")),
	}

	switch v := q.Get("completed"); v {
	case "":
	case "true", "false":
		completed := v == "true"
		f.Completed = &completed
	default:
		return nil, fmt.Errorf("%w: completed must be true or false", tasksvc.ErrInvalidArgument)
	}

	return taskendpoint.TasksRequest{Filter: f}, nil
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	customID, err := customIDFrom(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{CustomID: customID}, nil
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	customID, err := customIDFrom(r)
	if err != nil {
		return nil, err
	}

	var req taskendpoint.UpdateTaskRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}

	req.CustomID = customID

	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	customID, err := customIDFrom(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{CustomID: customID}, nil
}

func decodeHTTPToggleTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	customID, err := customIDFrom(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.ToggleTaskRequest{CustomID: customID}, nil
}

func customIDFrom(r *http.Request) (int64, error) {
	vars := mux.Vars(r)
	id, ok := vars["id"]
	if !ok {
		return 0, ErrBadRouting
	}
	return tasksvc.ParseCustomID(id)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body", tasksvc.ErrInvalidArgument)
	}
	return nil
}

// ErrBadRouting is returned when an expected path variable is missing.
// It always indicates programmer error.
var ErrBadRouting = errors.New("inconsistent mapping between route and handler (programmer error)")

func encodeHTTPTasksResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(taskendpoint.TasksResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}
	tasks := resp.Tasks
	if tasks == nil {
		tasks = []tasksvc.Task{}
	}
	return encodeJSON(w, http.StatusOK, tasks)
}

// encodeHTTPTaskResponse writes the bare task of any single-task response.
func encodeHTTPTaskResponse(status int) httptransport.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
			errorEncoder(ctx, f.Failed(), w)
			return nil
		}

		var task tasksvc.Task
		switch resp := response.(type) {
		case taskendpoint.TaskResponse:
			task = resp.Task
		case taskendpoint.CreateTaskResponse:
			task = resp.Task
		case taskendpoint.UpdateTaskResponse:
			task = resp.Task
		case taskendpoint.ToggleTaskResponse:
			task = resp.Task
		default:
			return fmt.Errorf("unexpected response type %T", response)
		}
		return encodeJSON(w, status, task)
	}
}

func encodeHTTPGenericResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
		errorEncoder(ctx, f.Failed(), w)
		return nil
	}
	return encodeJSON(w, http.StatusOK, response)
}

func encodeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
