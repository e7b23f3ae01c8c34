package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/hashicorp/consul/api"
	"github.com/ichigozero/todokit/tasksvc"
	"github.com/ichigozero/todokit/tasksvc/cache"
	"github.com/ichigozero/todokit/tasksvc/client"
	"github.com/ichigozero/todokit/tasksvc/config"
	"github.com/ichigozero/todokit/tasksvc/db/gorm"
	"github.com/ichigozero/todokit/tasksvc/db/inmem"
	"github.com/ichigozero/todokit/tasksvc/db/mongo"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/todokit/tasksvc/pkg/taskservice"
	"github.com/ichigozero/todokit/tasksvc/pkg/tasktransport"
	"github.com/oklog/oklog/pkg/group"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/twinj/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = level.NewFilter(logger, allowLevel(cfg.Log.Level))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

// run serves until interrupted.
func run(cfg *config.Config, logger log.Logger) error {
	taskRepository, closeRepository, err := openRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	defer closeRepository()

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			// Listings fall back to the store while Redis is unreachable.
			level.Warn(logger).Log("during", "redis ping", "err", err)
		}
		taskRepository = cache.New(taskRepository, rdb, cfg.Cache.TTL)
		level.Info(logger).Log("cache", "redis", "ttl", cfg.Cache.TTL)
	}

	fieldKeys := []string{"method", "error"}

	var service taskservice.Service
	{
		service = taskservice.New(taskRepository, logger)
		service = taskservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_latency_seconds",
				Help:      "Total duration of requests in seconds.",
			}, fieldKeys),
		)(service)
	}

	var (
		endpoints   = taskendpoint.New(service, logger)
		httpHandler = tasktransport.WithCORS(
			tasktransport.NewHTTPHandler(endpoints, log.With(logger, "component", "HTTP")),
			cfg.CORS.Origins,
		)
	)

	// Consul only learns about an address that is already listening.
	httpListener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTP.Addr, err)
	}
	defer httpListener.Close()

	if cfg.Consul.Addr != "" {
		registrar, err := newRegistrar(cfg, logger)
		if err != nil {
			return fmt.Errorf("consul registration: %w", err)
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	var g group.Group
	{
		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpHandler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		g.Add(func() error {
			level.Info(logger).Log("transport", "HTTP", "addr", cfg.HTTP.Addr)
			err := server.Serve(httpListener)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				level.Warn(logger).Log("transport", "HTTP", "during", "Shutdown", "err", err)
			}
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	level.Info(logger).Log("exit", g.Run())
	return nil
}

// openRepository picks the store from the database URL scheme.
func openRepository(cfg *config.Config, logger log.Logger) (tasksvc.TaskRepository, func(), error) {
	driver, err := cfg.Database.Driver()
	if err != nil {
		return nil, nil, err
	}
	level.Info(logger).Log("database", driver)

	switch driver {
	case config.DriverMemory:
		return inmem.NewTaskRepository(), func() {}, nil

	case config.DriverMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mc, err := mongo.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		db := mc.Database(cfg.Database.Name)
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			mc.Disconnect(context.Background())
			return nil, nil, err
		}
		return mongo.NewTaskRepository(db), func() { mc.Disconnect(context.Background()) }, nil
	}

	var dialector libgorm.Dialector
	if driver == config.DriverPostgres {
		dialector = postgres.Open(cfg.Database.URL)
	} else {
		dialector = sqlite.Open(cfg.SQLiteDSN())
	}

	db, err := libgorm.Open(dialector, &libgorm.Config{TranslateError: true})
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if driver == config.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := gorm.AutoMigrate(db); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}
	return gorm.NewTaskRepository(db), func() { sqlDB.Close() }, nil
}

func newRegistrar(cfg *config.Config, logger log.Logger) (*consulsd.Registrar, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Consul.Addr
	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(cfg.HTTP.Addr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	asr := &api.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    client.ServiceName,
		Address: host,
		Port:    p,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s/healthz", net.JoinHostPort(host, port)),
			Interval: "10s",
			Timeout:  "1s",
		},
	}

	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), asr, logger), nil
}

func allowLevel(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	}
	return level.AllowInfo()
}
