package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klop2495/art-grants-agent/internal/models"
)

func testRecord() *models.OpportunityRecord {
	return &models.OpportunityRecord{
		ExternalID:       "ext-1",
		Title:            "Island Residency 2026",
		Summary:          "A three month residency for emerging artists.",
		Content:          strings.Repeat("Hosts artists each summer on the island, with studio space. ", 3),
		ProgramType:      "residency",
		OrganizationName: "Island Arts Foundation",
		Deadline:         "2026-05-01",
		Source:           models.Source{Name: "resartis", URL: "https://resartis.org/call/1"},
	}
}

func TestCheck_NotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	rec, err := NewClient(srv.URL, "key").Check(context.Background(), "ext-1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for 404, got %+v", rec)
	}
}

func TestSync_CreatesNewRecord(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "uuid-1", "action": "created"})
		}
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionCreated || result.ID != "uuid-1" {
		t.Fatalf("result: %+v", result)
	}
	if gotAuth != "Bearer key" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotPath != "/api/opportunities/ext-1" {
		t.Fatalf("path: %q", gotPath)
	}
}

func TestSync_ServerActionIsAuthoritative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			// The record exists but the server still decides the action.
			json.NewEncoder(w).Encode(RemoteRecord{ID: "uuid-1", ExternalID: "ext-1"})
		case http.MethodPut:
			json.NewEncoder(w).Encode(map[string]string{"id": "uuid-1", "action": "updated"})
		}
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionUpdated {
		t.Fatalf("expected updated, got %+v", result)
	}
}

func TestSync_DeletedRecordIsSkippedWithoutUpsert(t *testing.T) {
	deletedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var putCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(RemoteRecord{ID: "uuid-1", ExternalID: "ext-1", DeletedAt: &deletedAt})
		case http.MethodPut:
			putCalls++
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionSkipped || result.Reason != ReasonDeletedByUser {
		t.Fatalf("result: %+v", result)
	}
	if putCalls != 0 {
		t.Fatal("deleted record must never be resent")
	}
}

func TestSync_TBDDeadlineTravelsEmpty(t *testing.T) {
	var sent models.OpportunityRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&sent)
			json.NewEncoder(w).Encode(map[string]string{"id": "uuid-1", "action": "created"})
		}
	}))
	defer srv.Close()

	rec := testRecord()
	rec.Deadline = models.DeadlineTBD
	if _, err := NewClient(srv.URL, "key").Sync(context.Background(), rec); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if sent.Deadline != "" {
		t.Fatalf("deadline sent as %q, want empty", sent.Deadline)
	}
	if rec.Deadline != models.DeadlineTBD {
		t.Fatal("caller's record must not be mutated")
	}
}

func TestSync_UpsertFailureIsHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			http.Error(w, "schema rejected", http.StatusUnprocessableEntity)
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord())
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("expected a status 422 error, got %v", err)
	}
}

func TestSync_SkippedUpsertAnswerCarriesReason(t *testing.T) {
	// The record may be deleted server-side between our GET and PUT.
	// The upsert then answers skipped instead of created or updated.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			json.NewEncoder(w).Encode(map[string]string{
				"id": "uuid-1", "action": "skipped", "reason": "deleted_by_user",
			})
		}
	}))
	defer srv.Close()

	result, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Action != ActionSkipped || result.Reason != ReasonDeletedByUser {
		t.Fatalf("result: %+v", result)
	}
	if result.ID != "uuid-1" {
		t.Fatalf("id: %q", result.ID)
	}
}

func TestSync_UnknownActionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.NotFound(w, r)
		case http.MethodPut:
			json.NewEncoder(w).Encode(map[string]string{"id": "uuid-1", "action": "merged"})
		}
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "key").Sync(context.Background(), testRecord()); err == nil {
		t.Fatal("expected an error for an unknown action")
	}
}
