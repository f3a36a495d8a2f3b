package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient(WithUserAgent("ossinventory-test"))

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.http.Timeout != 0 {
		t.Errorf("http.Client.Timeout = %v, want 0 (downloads are bounded by the idle timeout)", client.http.Timeout)
	}
	if client.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.timeout, DefaultTimeout)
	}
	if client.idleTimeout != DefaultIdleTimeout {
		t.Errorf("idleTimeout = %v, want %v", client.idleTimeout, DefaultIdleTimeout)
	}
	if client.headers["User-Agent"] != "ossinventory-test" {
		t.Error("NewClient() headers not set correctly")
	}
	if client.attempts != 1 {
		t.Errorf("attempts = %d, want 1", client.attempts)
	}
}

func TestClientGetJSON(t *testing.T) {
	type response struct {
		Message string `json:"message"`
	}

	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(response{Message: "hello"})
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithUserAgent("ossinventory-test"))

	var resp response
	if err := client.GetJSON(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("GetJSON() message = %q, want %q", resp.Message, "hello")
	}
	if gotUA != "ossinventory-test" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "ossinventory-test")
	}
}

func TestClientGetJSONDecodeError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithRetries(3), WithRetryDelay(time.Millisecond))

	var v map[string]any
	err := client.GetJSON(context.Background(), server.URL, &v)
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("GetJSON() error = %v, want ErrDecode", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, decode errors must not be retried", calls.Load())
	}
}

func TestClientGet404(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))

	var resp map[string]string
	err := client.GetJSON(context.Background(), server.URL, &resp)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON() error = %v, want ErrNotFound", err)
	}
	if code := StatusCode(err); code != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want 404", code)
	}
}

func TestClientNoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))

	var resp map[string]string
	err := client.GetJSON(context.Background(), server.URL, &resp)
	if err == nil {
		t.Fatal("GetJSON() should return error for 503")
	}
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("GetJSON() error = %v, want ErrUnexpectedStatus", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientRetries5xx(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":"yes"}`))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithRetries(2), WithRetryDelay(time.Millisecond))

	var resp map[string]string
	if err := client.GetJSON(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("GetJSON() error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientOpen(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "7")
		w.Write([]byte("tarball"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))

	body, size, err := client.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer body.Close()

	data, _ := io.ReadAll(body)
	if string(data) != "tarball" {
		t.Errorf("body = %q, want %q", data, "tarball")
	}
	if size != 7 {
		t.Errorf("size = %d, want 7", size)
	}
}

func TestClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient()
	_, _, err := client.Open(context.Background(), url)
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Open() error = %v, want ErrNetwork", err)
	}
	if StatusCode(err) != 0 {
		t.Errorf("StatusCode() = %d, want 0 for transport error", StatusCode(err))
	}
}

func TestClientCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithHTTPClient(server.Client()), WithRetries(3), WithRetryDelay(time.Millisecond))
	var v map[string]any
	err := client.GetJSON(ctx, server.URL, &v)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetJSON() error = %v, want context.Canceled", err)
	}
}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		wantErr    bool
		wantType   error
		isRetryErr bool
	}{
		{name: "200 OK", code: 200},
		{name: "404 Not Found", code: 404, wantErr: true, wantType: ErrNotFound},
		{name: "429 Too Many Requests", code: 429, wantErr: true, wantType: ErrUnexpectedStatus, isRetryErr: true},
		{name: "500 Internal Server Error", code: 500, wantErr: true, isRetryErr: true},
		{name: "502 Bad Gateway", code: 502, wantErr: true, isRetryErr: true},
		{name: "400 Bad Request", code: 400, wantErr: true, wantType: ErrUnexpectedStatus},
		{name: "403 Forbidden", code: 403, wantErr: true, wantType: ErrUnexpectedStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkStatus(tt.code, "https://registry.example/pkg/1.0.0")

			if !tt.wantErr {
				if err != nil {
					t.Errorf("checkStatus() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("checkStatus() should return error")
			}
			if tt.wantType != nil && !errors.Is(err, tt.wantType) {
				t.Errorf("checkStatus() error = %v, want %v", err, tt.wantType)
			}
			if StatusCode(err) != tt.code {
				t.Errorf("StatusCode() = %d, want %d", StatusCode(err), tt.code)
			}
			if got := isRetryable(err); got != tt.isRetryErr {
				t.Errorf("isRetryable() = %v, want %v", got, tt.isRetryErr)
			}
		})
	}
}

// trickle writes chunks of 1 KiB with pause between them, flushing each.
func trickle(chunks int, pause time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chunk := make([]byte, 1024)
		for range chunks {
			if _, err := w.Write(chunk); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(pause):
			}
		}
	}
}

func TestClientOpenSlowSteadyBody(t *testing.T) {
	server := httptest.NewServer(trickle(10, 50*time.Millisecond))
	defer server.Close()

	client := NewClient(
		WithHTTPClient(server.Client()),
		WithTimeout(100*time.Millisecond),
		WithIdleTimeout(300*time.Millisecond),
	)
	body, _, err := client.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer body.Close()

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		t.Fatalf("read body after %d bytes: %v", n, err)
	}
	if n != 10*1024 {
		t.Errorf("read %d bytes, want %d", n, 10*1024)
	}
}

func TestClientOpenStalledBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithIdleTimeout(100*time.Millisecond))
	body, _, err := client.Open(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer body.Close()

	_, err = io.ReadAll(body)
	if !errors.Is(err, ErrStalled) || !errors.Is(err, ErrNetwork) {
		t.Errorf("read error = %v, want ErrStalled wrapped in ErrNetwork", err)
	}
}

func TestClientOpenStalledHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithIdleTimeout(100*time.Millisecond))
	_, _, err := client.Open(context.Background(), server.URL)
	if !errors.Is(err, ErrStalled) {
		t.Errorf("Open() error = %v, want ErrStalled", err)
	}
}

func TestClientGetJSONTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()), WithTimeout(100*time.Millisecond))
	var v map[string]any
	err := client.GetJSON(context.Background(), server.URL, &v)
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetJSON() error = %v, want ErrNetwork with context.DeadlineExceeded", err)
	}
}
