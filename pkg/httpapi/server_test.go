package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/conduit-run/conduit/pkg/conduiterr"
	"github.com/conduit-run/conduit/pkg/runner"

	_ "github.com/conduit-run/conduit/pkg/elements/source"
	_ "github.com/conduit-run/conduit/pkg/elements/transform"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleRunSuccessReturns200WithResult(t *testing.T) {
	router := NewRouter(nil)
	rec := doRequest(t, router, http.MethodPost, "/run", map[string]any{
		"pipeline": []map[string]any{
			{"id": "conduit.Input", "data": []any{map[string]any{"message": "hi"}}},
			{"id": "conduit.Console", "format": "{{ input.message }}"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["success"] != true {
		t.Fatalf("got %v", body)
	}
}

func TestHandleRunUnknownElementReturns404(t *testing.T) {
	router := NewRouter(nil)
	rec := doRequest(t, router, http.MethodPost, "/run", map[string]any{
		"pipeline": []map[string]any{
			{"id": "conduit.DoesNotExist"},
		},
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error to be an object with kind/message, got %v", body["error"])
	}
	if errObj["kind"] != string(conduiterr.KindUnknownElement) {
		t.Fatalf("got kind %v", errObj["kind"])
	}
	if errObj["message"] == "" {
		t.Fatalf("expected a non-empty message, got %v", errObj)
	}
}

func TestHandleRunMissingPipelineReturns400(t *testing.T) {
	router := NewRouter(nil)
	rec := doRequest(t, router, http.MethodPost, "/run", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleRunMalformedJSONReturns400(t *testing.T) {
	router := NewRouter(nil)
	req := httptest.NewRequest(http.MethodPost, "/run", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestHandleSchemaReturnsElementList(t *testing.T) {
	router := NewRouter(nil)
	rec := doRequest(t, router, http.MethodGet, "/schema", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	oneOf, ok := doc["oneOf"].([]any)
	if !ok || len(oneOf) == 0 {
		t.Fatalf("expected a non-empty oneOf list, got %v", doc)
	}
}

func TestHealthzReturns200(t *testing.T) {
	router := NewRouter(nil)
	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
}

func TestStatusForMapsExitCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusBadRequest},
		{conduiterr.New(conduiterr.KindUnknownElement, "boom"), http.StatusNotFound},
		{conduiterr.New(conduiterr.KindSchemaMismatch, "boom"), http.StatusUnprocessableEntity},
		{conduiterr.New(conduiterr.KindParse, "boom"), http.StatusBadRequest},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Fatalf("statusFor(%v): got %d, want %d", c.err, got, c.want)
		}
	}
}

func TestStatusForResultReturns200WhenResultPresentEvenOnError(t *testing.T) {
	result := &runner.Result{Success: false, Error: "item failed"}
	if got := statusForResult(result, errors.New("item failed")); got != http.StatusOK {
		t.Fatalf("got %d, want 200 for a completed-but-failed run", got)
	}
}

func TestStatusForResultFallsBackToStatusForWhenResultIsNil(t *testing.T) {
	if got := statusForResult(nil, nil); got != http.StatusBadRequest {
		t.Fatalf("got %d", got)
	}
}
