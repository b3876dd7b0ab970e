// Package transport executes single HTTPS calls against the RQC grading
// service and classifies their responses.
//
// The client never retries; retry policy lives with the caller and the queue
// drainer. Expected failures (network errors, error statuses, unparsable
// bodies) are reported through Result, never as a Go error, so callers can
// branch on outcome uniformly.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Protocol constants sent as headers on every call.
const (
	APIVersion  = "2023-09-06"
	AdapterName = "github.com/openrev/rqcbridge"

	// AdapterVersion is the version of this adapter reported to the service.
	AdapterVersion = "1.0.0"
)

// maxResponseBody caps how much of a response body is retained for
// diagnostics and parsing.
const maxResponseBody = 64 * 1024

// Result holds the outcome of a single call to the grading service.
//
// StatusCode is 0 when no response was received at all (network, DNS, or TLS
// failure); Classify treats 0 as retryable. Malformed is set when a
// success-looking status carried a body that was not parsable JSON, a
// protocol mismatch callers must treat as permanent.
type Result struct {
	StatusCode int
	Body       map[string]any
	RawBody    string
	Error      string
	Malformed  bool
	LatencyMs  int
}

// Outcome classifies the result's status code.
func (r Result) Outcome() Outcome {
	if r.Malformed {
		return PermanentFailure
	}
	return Classify(r.StatusCode)
}

// RedirectTarget returns the redirect_target field of a 303 response body,
// or an empty string.
func (r Result) RedirectTarget() string {
	if r.Body == nil {
		return ""
	}
	target, _ := r.Body["redirect_target"].(string)
	return target
}

// Client performs authenticated HTTPS calls against the grading service.
type Client struct {
	client *http.Client
}

// NewClient creates a client with the given per-call timeout. strictTLS
// must be true outside of developer and test setups; when false, peer and
// hostname verification are disabled.
func NewClient(timeout time.Duration, strictTLS bool) *Client {
	c := &http.Client{
		Timeout: timeout,
		// 303 bodies carry the redirect target for the interactive caller;
		// following the redirect here would lose it.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	if !strictTLS {
		c.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // developer/test mode only
		}
	}
	return &Client{client: c}
}

// CheckAPIKey verifies the per-journal credentials against the service.
// 200 means valid, 400/404 a bad journal id, 403 a bad key, 5xx a server
// error.
func (c *Client) CheckAPIKey(ctx context.Context, serverURL, rqcJournalID, apiKey string) Result {
	url := fmt.Sprintf("%s/api/mhs_apikeycheck/%s", strings.TrimRight(serverURL, "/"), rqcJournalID)
	return c.Call(ctx, http.MethodGet, url, apiKey, nil)
}

// PostSubmission delivers a submission payload to the service.
func (c *Client) PostSubmission(ctx context.Context, serverURL, rqcJournalID string, submissionID int64, apiKey string, payload any) Result {
	url := fmt.Sprintf("%s/api/mhs_submission/%s/%d", strings.TrimRight(serverURL, "/"), rqcJournalID, submissionID)
	return c.Call(ctx, http.MethodPost, url, apiKey, payload)
}

// Call executes one HTTP call with the full RQC header set. A non-nil body
// is serialized as JSON. Call never returns a Go error; transport-level
// failures produce a Result with StatusCode 0.
func (c *Client) Call(ctx context.Context, method, url, apiKey string, body any) Result {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return Result{Error: fmt.Sprintf("marshal payload: %v", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("X-RQC-API-VERSION", APIVersion)
	req.Header.Set("X-RQC-MHS-ADAPTER", AdapterName)
	req.Header.Set("X-RQC-MHS-VERSION", AdapterVersion)
	req.Header.Set("X-RQC-TIME", time.Now().UTC().Format("2006-01-02T15:04:05Z"))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := int(time.Since(start).Milliseconds())

	if err != nil {
		return Result{
			Error:     err.Error(),
			LatencyMs: latency,
		}
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if readErr != nil {
		return Result{
			StatusCode: resp.StatusCode,
			Error:      fmt.Sprintf("read response: %v", readErr),
			LatencyMs:  latency,
		}
	}

	res := Result{
		StatusCode: resp.StatusCode,
		RawBody:    string(raw),
		LatencyMs:  latency,
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var parsed map[string]any
		if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
			res.Error = fmt.Sprintf("parse response: %v", jsonErr)
			res.Malformed = acceptedStatus(resp.StatusCode)
		} else {
			res.Body = parsed
		}
	} else {
		res.Error = fmt.Sprintf("unexpected content type %q", contentType)
		res.Malformed = acceptedStatus(resp.StatusCode)
	}

	return res
}

// acceptedStatus reports whether a status would otherwise count as accepted,
// in which case an unparsable body indicates a protocol mismatch.
func acceptedStatus(code int) bool {
	return code == 200 || code == 303
}
