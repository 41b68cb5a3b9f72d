package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/veridianhq/veridian-ledger/internal/api"
	"github.com/veridianhq/veridian-ledger/internal/ledger"
	"go.uber.org/zap"
)

func setupLedgerRouter(t *testing.T) (*gin.Engine, *ledger.MemoryLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	log := ledger.NewMemoryLog()
	h := api.NewLedgerHandler(log, zap.NewNop())
	v1 := r.Group("/api/v1")
	h.Register(v1)
	return r, log
}

func postEvent(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const submitBody = `{
	"actor_type": "human",
	"actor_id": "sponsor@example.com",
	"entity_type": "application",
	"entity_id": "app-9",
	"action": "application_submitted",
	"payload": {"score": 82, "tract": "36061002901"}
}`

func TestAppendEvent_201(t *testing.T) {
	r, _ := setupLedgerRouter(t)

	w := postEvent(t, r, submitBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var e ledger.Event
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Sequence != 0 {
		t.Errorf("sequence = %d, want 0", e.Sequence)
	}
	if e.Hash == "" || e.PrevHash == "" {
		t.Error("response must include assigned hash and prev_hash")
	}
}

func TestAppendEvent_400_missingFields(t *testing.T) {
	r, log := setupLedgerRouter(t)

	w := postEvent(t, r, `{"actor_id": "x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if n, _ := log.Len(t.Context()); n != 0 {
		t.Error("invalid request must not append")
	}
}

func TestAppendEvent_400_badActorType(t *testing.T) {
	r, _ := setupLedgerRouter(t)

	w := postEvent(t, r, `{"actor_type":"robot","actor_id":"x","action":"a"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOverview(t *testing.T) {
	r, _ := setupLedgerRouter(t)
	postEvent(t, r, submitBody)
	postEvent(t, r, submitBody)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Events int64       `json:"events"`
		Head   ledger.Head `json:"head"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Events != 2 || resp.Head.Sequence != 1 {
		t.Errorf("overview = %+v, want 2 events with head sequence 1", resp)
	}
}

func TestReadRange_endpoint(t *testing.T) {
	r, _ := setupLedgerRouter(t)
	for i := 0; i < 4; i++ {
		postEvent(t, r, submitBody)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/events?from=1&to=2", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp struct {
		Events []ledger.Event `json:"events"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Events) != 2 || resp.Events[0].Sequence != 1 {
		t.Errorf("got %d events starting at %v, want 2 starting at 1",
			len(resp.Events), resp.Events)
	}
}

func TestGetEvent_404(t *testing.T) {
	r, _ := setupLedgerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/events/7", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestVerify_emptyLedgerDistinctFromBroken(t *testing.T) {
	r, _ := setupLedgerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true {
		t.Error("empty ledger must verify as valid")
	}
	if resp["events"].(float64) != 0 {
		t.Error("empty ledger must report zero events")
	}
}

func TestVerify_validChain(t *testing.T) {
	r, _ := setupLedgerRouter(t)
	for i := 0; i < 3; i++ {
		postEvent(t, r, submitBody)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true || resp["checked"].(float64) != 3 {
		t.Errorf("verify response = %v", resp)
	}
}

func TestVerify_fromBeyondHead_400(t *testing.T) {
	r, _ := setupLedgerRouter(t)
	for i := 0; i < 3; i++ {
		postEvent(t, r, submitBody)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify?from=5", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for from beyond head, got %d: %s", w.Code, w.Body.String())
	}

	// A to beyond the head is clamped, not rejected.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify?from=0&to=50", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for clamped to, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != true || resp["checked"].(float64) != 3 {
		t.Errorf("verify response = %v", resp)
	}
}

func TestVerify_reportsTampering(t *testing.T) {
	r, log := setupLedgerRouter(t)
	for i := 0; i < 3; i++ {
		postEvent(t, r, submitBody)
	}

	// Alter stored state behind the API's back.
	e, err := log.Get(t.Context(), 1)
	if err != nil {
		t.Fatal(err)
	}
	e.Payload = json.RawMessage(`{"score":100}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/verify", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["valid"] != false {
		t.Fatal("tampered ledger reported valid")
	}
	if resp["first_broken_sequence"].(float64) != 1 {
		t.Errorf("first_broken_sequence = %v, want 1", resp["first_broken_sequence"])
	}
	if resp["reason"] != "hash-mismatch" {
		t.Errorf("reason = %v, want hash-mismatch", resp["reason"])
	}
}
