package kube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bridgecrew-perf6/k8deployer/pkg/k8api"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), zerolog.Nop()), srv
}

func TestClient_PostSendsJSONAndHeader(t *testing.T) {
	var gotHeader, gotContentType string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Client")
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))

	d := &k8api.Deployment{Metadata: k8api.ObjectMeta{Name: "web"}}
	if _, err := client.Post(context.Background(), "/apis/apps/v1/namespaces/default/deployments", d); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotHeader != "k8deployer" {
		t.Errorf("Expected X-Client header, got %q", gotHeader)
	}
	if gotContentType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotContentType)
	}
}

func TestClient_DeleteNotFound(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	err := client.Delete(context.Background(), "/api/v1/namespaces/default/services/gone")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got: %v", err)
	}
}

func TestClient_StatusError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.Post(context.Background(), "/api/v1/namespaces/default/services", map[string]any{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got: %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", statusErr.Code)
	}
}

func TestClient_GetDecodes(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"metadata":{"name":"prod"},"status":{"phase":"Active"}}`))
	}))

	var ns k8api.Namespace
	if err := client.Get(context.Background(), "/api/v1/namespaces/prod", &ns); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if ns.Metadata.Name != "prod" || ns.Status.Phase != "Active" {
		t.Errorf("Decoded wrong object: %+v", ns)
	}
}

func TestClient_WatchEventsStreamsInOrder(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("watch") != "true" {
			t.Errorf("Expected watch=true, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"type":"ADDED","object":{"reason":"Created","involvedObject":{"kind":"Pod","name":"web-1"}}}`))
		_, _ = w.Write([]byte(`{"type":"ADDED","object":{"reason":"Started","involvedObject":{"kind":"Pod","name":"web-1"}}}`))
	}))

	var reasons []string
	err := client.WatchEvents(context.Background(), func(ev *k8api.Event) {
		reasons = append(reasons, ev.Reason)
	})
	if err != nil {
		t.Fatalf("Expected clean stream end, got: %v", err)
	}

	if len(reasons) != 2 || reasons[0] != "Created" || reasons[1] != "Started" {
		t.Errorf("Expected ordered reasons [Created Started], got %v", reasons)
	}
}
