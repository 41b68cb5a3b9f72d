package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/veridianhq/veridian-ledger/pkg/client"
)

var ctx = context.Background()

func TestAppendEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/events" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["action"] != "application_submitted" {
			t.Errorf("action = %v", req["action"])
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"sequence": 0, "hash": "aa", "prev_hash": "genesis",
			"action": "application_submitted",
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	e, err := c.AppendEvent(ctx, client.AppendRequest{
		ActorType: "human",
		ActorID:   "sponsor@example.com",
		Action:    "application_submitted",
		Payload:   json.RawMessage(`{"x":1}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.Sequence != 0 || e.Hash != "aa" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestRunAnchors_sendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer seekret" {
			t.Errorf("auth header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"head": map[string]any{"sequence": 4, "hash": "dd"},
			"results": []map[string]any{
				{"method": "gist", "status": "anchored"},
			},
		})
	}))
	defer srv.Close()

	c := client.New(srv.URL, client.WithAnchorToken("seekret"))
	report, err := c.RunAnchors(ctx, "gist")
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Results) != 1 || report.Results[0].Status != "anchored" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestDo_surfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "append contention, retry the request"})
	}))
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.AppendEvent(ctx, client.AppendRequest{
		ActorType: "system", ActorID: "svc", Action: "x",
	})
	if err == nil || !strings.Contains(err.Error(), "append contention") {
		t.Errorf("expected API error message, got %v", err)
	}
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ledger/verify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"events": 3, "valid": false,
			"first_broken_sequence": 1, "reason": "hash-mismatch",
		})
	}))
	defer srv.Close()

	r, err := client.New(srv.URL).Verify(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if r.Valid || r.FirstBrokenSequence != 1 || r.Reason != "hash-mismatch" {
		t.Errorf("unexpected result: %+v", r)
	}
}
