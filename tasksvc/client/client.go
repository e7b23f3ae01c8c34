package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
)

// ServiceName is the name tasksvc registers under in Consul.
const ServiceName = "tasksvc"

// New discovers tasksvc instances through Consul and balances requests across
// them. Reads and updates are retried on other instances up to retryMax
// attempts; create, delete and toggle are attempted once, since a failure
// reported after the server applied them would otherwise be applied again.
func New(apiclient consulsd.Client, logger log.Logger, retryMax int, retryTimeout time.Duration) (taskendpoint.Set, error) {
	var (
		tags        = []string{}
		passingOnly = true
		instancer   = consulsd.NewInstancer(apiclient, logger, ServiceName, tags, passingOnly)
	)

	balanced := func(makeEndpoint func(taskservice.Service) endpoint.Endpoint, attempts int) endpoint.Endpoint {
		factory := factoryFor(makeEndpoint, logger)
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		return lb.Retry(attempts, retryTimeout, balancer)
	}

	return taskendpoint.Set{
		TasksEndpoint:      balanced(taskendpoint.MakeTasksEndpoint, retryMax),
		TaskEndpoint:       balanced(taskendpoint.MakeTaskEndpoint, retryMax),
		CreateTaskEndpoint: balanced(taskendpoint.MakeCreateTaskEndpoint, 1),
		UpdateTaskEndpoint: balanced(taskendpoint.MakeUpdateTaskEndpoint, retryMax),
		DeleteTaskEndpoint: balanced(taskendpoint.MakeDeleteTaskEndpoint, 1),
		ToggleTaskEndpoint: balanced(taskendpoint.MakeToggleTaskEndpoint, 1),
	}, nil
}

// NewDirect talks to a single API at apiURL, e.g. http://localhost:8080/api.
func NewDirect(apiURL string, logger log.Logger) (taskservice.Service, error) {
	return tasktransport.NewHTTPClient(apiURL, logger)
}

func factoryFor(makeEndpoint func(taskservice.Service) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		service, err := tasktransport.NewHTTPClient(instance, logger)
		if err != nil {
			return nil, nil, err
		}
		return makeEndpoint(service), nil, nil
	}
}
