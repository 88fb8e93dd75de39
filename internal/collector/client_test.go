package collector

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIdentifierField(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{"click", "result_id"},
		{"add_to_cart", "result_id"},
		{"purchase", "result_id"},
		{"redirect", "redirect_id"},
		{"promotion_click", "banner_id"},
		{"custom_event", "result_id"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			if got := IdentifierField(tt.eventType); got != tt.want {
				t.Errorf("IdentifierField(%q) = %q, want %q", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestTrackEventURL(t *testing.T) {
	got := TrackEventURL("https://search.example.com/", "products")
	want := "https://search.example.com/v4/collections/products:trackEvent"
	if got != want {
		t.Errorf("TrackEventURL = %q, want %q", got, want)
	}
}

func TestTrackEventRequest(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &gotBody); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Collection: "products", AccountID: "acct-1"})

	resp, err := client.TrackEvent(context.Background(), "q1", "purchase", Payload{
		ID:       "sku-A",
		Metadata: map[string]any{"price": 9.5, "gift": true},
	})
	if err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}
	if string(resp) != `{"status":"ok"}` {
		t.Errorf("response = %s", resp)
	}

	if gotPath != "/v4/collections/products:trackEvent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotHeaders.Get("Accept") != "application/json" {
		t.Errorf("Accept = %q", gotHeaders.Get("Accept"))
	}
	if gotHeaders.Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get("Account-Id") != "acct-1" {
		t.Errorf("Account-Id = %q", gotHeaders.Get("Account-Id"))
	}
	if !strings.HasPrefix(gotHeaders.Get("User-Agent"), "search-tracker/") {
		t.Errorf("User-Agent = %q", gotHeaders.Get("User-Agent"))
	}

	if gotBody["query_id"] != "q1" || gotBody["type"] != "purchase" || gotBody["result_id"] != "sku-A" {
		t.Errorf("unexpected body: %v", gotBody)
	}
	meta, ok := gotBody["metadata"].(map[string]any)
	if !ok || meta["price"] != 9.5 || meta["gift"] != true {
		t.Errorf("metadata = %v", gotBody["metadata"])
	}
}

func TestTrackEventIdentifierFieldByType(t *testing.T) {
	tests := []struct {
		eventType string
		field     string
	}{
		{"redirect", "redirect_id"},
		{"promotion_click", "banner_id"},
		{"click", "result_id"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			var body map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&body)
				w.Write([]byte(`{}`))
			}))
			defer server.Close()

			client := NewClient(Config{Endpoint: server.URL, Collection: "c"})
			if _, err := client.TrackEvent(context.Background(), "q", tt.eventType, Payload{ID: "v1"}); err != nil {
				t.Fatalf("TrackEvent failed: %v", err)
			}

			if body[tt.field] != "v1" {
				t.Errorf("expected %s=v1, body %v", tt.field, body)
			}
			if _, ok := body["metadata"]; ok {
				t.Error("metadata should be omitted when empty")
			}
			for _, other := range []string{"result_id", "redirect_id", "banner_id"} {
				if other == tt.field {
					continue
				}
				if _, ok := body[other]; ok {
					t.Errorf("unexpected field %s in body", other)
				}
			}
		})
	}
}

func TestTrackEventErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		unauthorized bool
		wantMessage  string
	}{
		{"forbidden with message", http.StatusForbidden, `{"message":"domain not allowed"}`, true, "domain not allowed"},
		{"forbidden without body", http.StatusForbidden, ``, true, "Forbidden"},
		{"bad request with message", http.StatusBadRequest, `{"message":"unknown collection"}`, false, "unknown collection"},
		{"server error non-JSON", http.StatusInternalServerError, `oops`, false, "Internal Server Error"},
		{"not found without message field", http.StatusNotFound, `{"error":"x"}`, false, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{Endpoint: server.URL, Collection: "c"})
			_, err := client.TrackEvent(context.Background(), "q", "click", Payload{ID: "v"})
			if err == nil {
				t.Fatal("expected error")
			}

			var unauthorized *UnauthorizedDomainError
			var configErr *ConfigurationError
			switch {
			case tt.unauthorized:
				if !errors.As(err, &unauthorized) {
					t.Fatalf("expected UnauthorizedDomainError, got %T: %v", err, err)
				}
				if unauthorized.StatusCode != tt.status || unauthorized.Message != tt.wantMessage {
					t.Errorf("got status %d message %q", unauthorized.StatusCode, unauthorized.Message)
				}
				if errors.Unwrap(err) == nil {
					t.Error("expected wrapped cause")
				}
			default:
				if !errors.As(err, &configErr) {
					t.Fatalf("expected ConfigurationError, got %T: %v", err, err)
				}
				if configErr.StatusCode != tt.status || configErr.Message != tt.wantMessage {
					t.Errorf("got status %d message %q", configErr.StatusCode, configErr.Message)
				}
				if !strings.Contains(err.Error(), tt.wantMessage) {
					t.Errorf("error text %q missing message", err.Error())
				}
			}
		})
	}
}

func TestTrackEventTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	client := NewClient(Config{Endpoint: endpoint, Collection: "c"})
	if _, err := client.TrackEvent(context.Background(), "q", "click", Payload{ID: "v"}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestTrackEventEmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(Config{Endpoint: server.URL, Collection: "c"})
	resp, err := client.TrackEvent(context.Background(), "q", "click", Payload{ID: "v"})
	if err != nil {
		t.Fatalf("TrackEvent failed: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil body, got %s", resp)
	}
}
