package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openrev/rqcbridge/transport"
)

func newTestClient() *transport.Client {
	return transport.NewClient(5*time.Second, true)
}

func TestCallSendsProtocolHeaders(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.CheckAPIKey(context.Background(), srv.URL, "journal-1", "secret-key")

	if res.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", res.StatusCode)
	}
	if got := gotHeaders.Get("Authorization"); got != "Bearer secret-key" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer secret-key")
	}
	if got := gotHeaders.Get("X-RQC-API-VERSION"); got != transport.APIVersion {
		t.Errorf("X-RQC-API-VERSION = %q, want %q", got, transport.APIVersion)
	}
	if got := gotHeaders.Get("X-RQC-MHS-ADAPTER"); got != transport.AdapterName {
		t.Errorf("X-RQC-MHS-ADAPTER = %q, want %q", got, transport.AdapterName)
	}
	if got := gotHeaders.Get("X-RQC-MHS-VERSION"); got != transport.AdapterVersion {
		t.Errorf("X-RQC-MHS-VERSION = %q, want %q", got, transport.AdapterVersion)
	}
	if got := gotHeaders.Get("X-RQC-TIME"); got == "" {
		t.Error("X-RQC-TIME header missing")
	} else if _, err := time.Parse("2006-01-02T15:04:05Z", got); err != nil {
		t.Errorf("X-RQC-TIME %q not ISO-8601 UTC: %v", got, err)
	}
}

func TestPostSubmissionURLAndBody(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.PostSubmission(context.Background(), srv.URL+"/", "journal-1", 42, "key", map[string]string{"title": "hello"})

	if want := "/api/mhs_submission/journal-1/42"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}
	if gotBody["title"] != "hello" {
		t.Errorf("body title = %v, want hello", gotBody["title"])
	}
	if res.Outcome() != transport.Success {
		t.Errorf("Outcome = %v, want Success", res.Outcome())
	}
}

func TestCallConnectionRefused(t *testing.T) {
	// Grab a port that nothing listens on.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient()
	res := client.CheckAPIKey(context.Background(), url, "journal-1", "key")

	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", res.StatusCode)
	}
	if res.Error == "" {
		t.Error("expected a transport error message")
	}
	if res.Outcome() != transport.RetryableFailure {
		t.Errorf("Outcome = %v, want RetryableFailure", res.Outcome())
	}
}

func TestCallTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := transport.NewClient(50*time.Millisecond, true)
	res := client.CheckAPIKey(context.Background(), srv.URL, "journal-1", "key")

	if res.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 on timeout", res.StatusCode)
	}
	if res.Outcome() != transport.RetryableFailure {
		t.Errorf("Outcome = %v, want RetryableFailure", res.Outcome())
	}
}

func TestCallMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.CheckAPIKey(context.Background(), srv.URL, "journal-1", "key")

	if !res.Malformed {
		t.Error("expected Malformed on unparsable 200 body")
	}
	if res.Outcome() != transport.PermanentFailure {
		t.Errorf("Outcome = %v, want PermanentFailure", res.Outcome())
	}
}

func TestCallNonJSONContentTypeOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<html>login page</html>`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.CheckAPIKey(context.Background(), srv.URL, "journal-1", "key")

	if !res.Malformed {
		t.Error("expected Malformed on non-JSON 200 response")
	}
	if !strings.Contains(res.Error, "unexpected content type") {
		t.Errorf("Error = %q, want content type complaint", res.Error)
	}
}

func TestCallMalformedErrorBodyStaysClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.CheckAPIKey(context.Background(), srv.URL, "journal-1", "key")

	if res.Malformed {
		t.Error("unparsable body on an error status must not set Malformed")
	}
	if res.Outcome() != transport.RetryableFailure {
		t.Errorf("Outcome = %v, want RetryableFailure", res.Outcome())
	}
}

func TestCall303KeepsRedirectTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "https://example.org/elsewhere")
		w.WriteHeader(http.StatusSeeOther)
		_, _ = w.Write([]byte(`{"redirect_target":"https://example.org/report/42"}`))
	}))
	defer srv.Close()

	client := newTestClient()
	res := client.PostSubmission(context.Background(), srv.URL, "journal-1", 42, "key", map[string]string{})

	if res.StatusCode != 303 {
		t.Fatalf("StatusCode = %d, want 303 (redirect must not be followed)", res.StatusCode)
	}
	if res.Outcome() != transport.Success {
		t.Errorf("Outcome = %v, want Success", res.Outcome())
	}
	if got := res.RedirectTarget(); got != "https://example.org/report/42" {
		t.Errorf("RedirectTarget = %q, want report URL", got)
	}
}
