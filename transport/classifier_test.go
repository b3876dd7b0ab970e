package transport_test

import (
	"testing"

	"github.com/openrev/rqcbridge/transport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   transport.Outcome
	}{
		{"200 OK → Success", 200, transport.Success},
		{"303 See Other → Success", 303, transport.Success},
		{"no response → Retryable", 0, transport.RetryableFailure},
		{"408 Request Timeout → Retryable", 408, transport.RetryableFailure},
		{"429 Too Many Requests → Retryable", 429, transport.RetryableFailure},
		{"500 Internal Server Error → Retryable", 500, transport.RetryableFailure},
		{"502 Bad Gateway → Retryable", 502, transport.RetryableFailure},
		{"503 Service Unavailable → Retryable", 503, transport.RetryableFailure},
		{"599 → Retryable", 599, transport.RetryableFailure},
		{"400 Bad Request → Permanent", 400, transport.PermanentFailure},
		{"401 Unauthorized → Permanent", 401, transport.PermanentFailure},
		{"403 Forbidden → Permanent", 403, transport.PermanentFailure},
		{"404 Not Found → Permanent", 404, transport.PermanentFailure},
		{"301 Moved Permanently → Permanent", 301, transport.PermanentFailure},
		{"302 Found → Permanent", 302, transport.PermanentFailure},
		{"201 Created → Permanent", 201, transport.PermanentFailure},
		{"204 No Content → Permanent", 204, transport.PermanentFailure},
		{"600 → Permanent", 600, transport.PermanentFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := transport.Classify(tt.status); got != tt.want {
				t.Errorf("Classify(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestResultOutcomeMalformed(t *testing.T) {
	res := transport.Result{StatusCode: 200, Malformed: true}
	if got := res.Outcome(); got != transport.PermanentFailure {
		t.Errorf("malformed 200 response: Outcome() = %v, want PermanentFailure", got)
	}

	res = transport.Result{StatusCode: 200}
	if got := res.Outcome(); got != transport.Success {
		t.Errorf("well-formed 200 response: Outcome() = %v, want Success", got)
	}
}
