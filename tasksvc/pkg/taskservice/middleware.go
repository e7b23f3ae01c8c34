package taskservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/ichigozero/todokit/tasksvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Tasks(ctx context.Context, f tasksvc.Filter) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"filter", f.Key(),
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, f)
}

func (mw loggingMiddleware) Task(ctx context.Context, customID int64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"custom_id", customID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, customID)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, title string) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"title", title,
			"custom_id", t.CustomID,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, title)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, customID int64, p tasksvc.Patch) (t tasksvc.Task, err error) {
	defer func() {
		keyvals := []interface{}{"method", "UpdateTask", "custom_id", customID}
		if p.Title != nil {
			keyvals = append(keyvals, "title", *p.Title)
		}
		if p.Completed != nil {
			keyvals = append(keyvals, "completed", *p.Completed)
		}
		mw.logger.Log(append(keyvals, "err", err)...)
	}()
	return mw.next.UpdateTask(ctx, customID, p)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, customID int64) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"custom_id", customID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, customID)
}

func (mw loggingMiddleware) ToggleTask(ctx context.Context, customID int64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "ToggleTask",
			"custom_id", customID,
			"completed", t.Completed,
			"err", err,
		)
	}()
	return mw.next.ToggleTask(ctx, customID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time, err error) {
	failed := "false"
	if err != nil {
		failed = "true"
	}
	mw.requestCount.With("method", method, "error", failed).Add(1)
	mw.requestLatency.With("method", method, "error", failed).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, f tasksvc.Filter) (t []tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("tasks", begin, err) }(time.Now())
	return mw.next.Tasks(ctx, f)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, customID int64) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("task", begin, err) }(time.Now())
	return mw.next.Task(ctx, customID)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, title string) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("create_task", begin, err) }(time.Now())
	return mw.next.CreateTask(ctx, title)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, customID int64, p tasksvc.Patch) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("update_task", begin, err) }(time.Now())
	return mw.next.UpdateTask(ctx, customID, p)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, customID int64) (err error) {
	defer func(begin time.Time) { mw.observe("delete_task", begin, err) }(time.Now())
	return mw.next.DeleteTask(ctx, customID)
}

func (mw instrumentingMiddleware) ToggleTask(ctx context.Context, customID int64) (t tasksvc.Task, err error) {
	defer func(begin time.Time) { mw.observe("toggle_task", begin, err) }(time.Now())
	return mw.next.ToggleTask(ctx, customID)
}
