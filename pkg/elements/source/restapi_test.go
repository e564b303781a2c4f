package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/conduit-run/conduit/pkg/element"
	"github.com/conduit-run/conduit/pkg/iter"
)

func TestRestApiJSONArrayYieldsOneItemPerElement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[1, 2, 3]`))
	}))
	defer srv.Close()

	el, err := newRestAPI(element.BuildContext{Args: map[string]any{"url": srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*RestApi).Open(context.Background(), iter.Empty())
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %v", got)
	}
}

func TestRestApiJSONObjectYieldsSingleItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "alice"}`))
	}))
	defer srv.Close()

	el, err := newRestAPI(element.BuildContext{Args: map[string]any{"url": srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*RestApi).Open(context.Background(), iter.Empty())
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %v", got)
	}
	rec, ok := got[0].(map[string]any)
	if !ok || rec["name"] != "alice" {
		t.Fatalf("got %v", got[0])
	}
}

func TestRestApiTextResponseFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("plain text body"))
	}))
	defer srv.Close()

	el, err := newRestAPI(element.BuildContext{Args: map[string]any{
		"url":             srv.URL,
		"response_format": "text",
	}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*RestApi).Open(context.Background(), iter.Empty())
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "plain text body" {
		t.Fatalf("got %v", got[0])
	}
}

func TestRestApiHeadersAreSentOnRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`"ok"`))
	}))
	defer srv.Close()

	el, err := newRestAPI(element.BuildContext{Args: map[string]any{
		"url":     srv.URL,
		"headers": map[string]any{"X-Token": "secret"},
	}})
	if err != nil {
		t.Fatal(err)
	}
	out, err := el.(*RestApi).Open(context.Background(), iter.Empty())
	if err != nil {
		t.Fatal(err)
	}
	got, err := iter.Drain(context.Background(), out)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "ok" {
		t.Fatalf("got %v", got)
	}
}

func TestRestApiClientErrorStatusIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	el, err := newRestAPI(element.BuildContext{Args: map[string]any{"url": srv.URL}})
	if err != nil {
		t.Fatal(err)
	}
	_, err = el.(*RestApi).Open(context.Background(), iter.Empty())
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if calls != 1 {
		t.Fatalf("expected a 4xx to be permanent (no retries), got %d calls", calls)
	}
}

func TestRestApiRequiresURL(t *testing.T) {
	if _, err := newRestAPI(element.BuildContext{Args: map[string]any{}}); err == nil {
		t.Fatal("expected an error for missing `url`")
	}
}
