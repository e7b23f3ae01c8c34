package main

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/ichigozero/todokit/tasksvc/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDoesNotRegisterWhenListenFails(t *testing.T) {
	var agentCalls int32
	consul := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/agent/service/") {
			atomic.AddInt32(&agentCalls, 1)
		}
	}))
	defer consul.Close()

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := &config.Config{
		HTTP:     config.HTTPConfig{Addr: taken.Addr().String()},
		Database: config.DatabaseConfig{URL: "memory", Name: "todo"},
		Consul:   config.ConsulConfig{Addr: strings.TrimPrefix(consul.URL, "http://")},
		Log:      config.LogConfig{Level: "info"},
		Shutdown: config.ShutdownConfig{Timeout: time.Second},
	}

	err = run(cfg, log.NewNopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on "+cfg.HTTP.Addr)
	assert.Zero(t, atomic.LoadInt32(&agentCalls))
}
