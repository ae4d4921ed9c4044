package main

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Fusion831/Async-Task-Processor-API/internal/config"
	"github.com/Fusion831/Async-Task-Processor-API/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()

	log := slog.Default()
	queue := task.NewQueue(1, log)
	t.Cleanup(queue.Close)

	return &application{
		config: &config.Config{},
		logger: log,
		queue:  queue,
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestUnknownRoute(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/nope", nil)
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	app := newTestApplication(t)
	router := app.setupRouter()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/process", nil)
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
