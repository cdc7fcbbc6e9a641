package tables

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appetiteclub/apt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func newTestHandler(repo *MockTableRepo) *Handler {
	reg := NewRegistry(repo, NewMockPublisher(), apt.NewNoopLogger())
	return NewHandler(repo, reg, apt.NewConfig(), apt.NewNoopLogger())
}

func TestHandlerCreateTable(t *testing.T) {
	tests := []struct {
		name           string
		payload        string
		seed           func(*MockTableRepo)
		expectedStatus int
	}{
		{
			name:           "success",
			payload:        `{"number":"Window-1","capacity":4}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missingNumber",
			payload:        `{"capacity":4}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "zeroCapacity",
			payload:        `{"number":"Window-1"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalidJSON",
			payload:        `{"number":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:    "duplicateNumber",
			payload: `{"number":"Window-1","capacity":4}`,
			seed: func(repo *MockTableRepo) {
				existing := NewTable()
				existing.Number = "Window-1"
				repo.AddTable(existing)
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTableRepo()
			if tt.seed != nil {
				tt.seed(repo)
			}
			h := newTestHandler(repo)

			req := httptest.NewRequest(http.MethodPost, "/tables", bytes.NewBufferString(tt.payload))
			w := httptest.NewRecorder()
			h.CreateTable(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("CreateTable() status = %d, want %d (%s)", w.Code, tt.expectedStatus, w.Body.String())
			}
		})
	}
}

func TestHandlerGetTable(t *testing.T) {
	repo := NewMockTableRepo()
	table := NewTable()
	table.Number = "Patio-3"
	repo.AddTable(table)
	h := newTestHandler(repo)

	tests := []struct {
		name           string
		id             string
		expectedStatus int
	}{
		{name: "found", id: table.ID.String(), expectedStatus: http.StatusOK},
		{name: "notFound", id: uuid.New().String(), expectedStatus: http.StatusNotFound},
		{name: "invalidID", id: "not-a-uuid", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			h.RegisterRoutes(r)
			req := httptest.NewRequest(http.MethodGet, "/tables/"+tt.id, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("GetTable() status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandlerReserveTable(t *testing.T) {
	repo := NewMockTableRepo()
	table := NewTable()
	table.Number = "Booth-7"
	repo.AddTable(table)
	h := newTestHandler(repo)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPatch, "/tables/"+table.ID.String()+"/reserve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("ReserveTable() status = %d (%s)", w.Code, w.Body.String())
	}

	var resp struct {
		Data Table `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("cannot decode response: %v", err)
	}
	if resp.Data.Status != "reserved" {
		t.Errorf("status = %s, want reserved", resp.Data.Status)
	}

	// Reserving again conflicts
	req = httptest.NewRequest(http.MethodPatch, "/tables/"+table.ID.String()+"/reserve", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("second reserve status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Free is always legal
	req = httptest.NewRequest(http.MethodPatch, "/tables/"+table.ID.String()+"/free", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("free status = %d, want %d", w.Code, http.StatusOK)
	}
}
