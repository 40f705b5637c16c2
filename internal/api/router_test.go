package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/noesis-dev/noesis/internal/domain"
	"github.com/noesis-dev/noesis/internal/service"
	"go.uber.org/zap"
)

type staticStatus struct {
	status service.ControllerStatus
}

func (s staticStatus) Status() service.ControllerStatus { return s.status }

func TestStatusEndpoint(t *testing.T) {
	runID := uuid.New()
	router := NewRouter(nil, staticStatus{status: service.ControllerStatus{
		Running:      true,
		RunID:        runID,
		Topic:        "the nature of memory",
		CurrentAgent: domain.AgentExplorer,
		Phase:        domain.PhaseResponding,
		StepCount:    12,
	}}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got service.ControllerStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RunID != runID || got.StepCount != 12 || !got.Running {
		t.Errorf("got %+v", got)
	}
}

func TestHealthEndpointWithoutDatabase(t *testing.T) {
	router := NewRouter(nil, staticStatus{}, zap.NewNop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}
