package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 4 << 20

const timeoutMessage = "Request timed out"

// postJSON sends body to url and returns the decoded 200 response in out.
// Any other outcome is returned as a Failure; a nil Failure means success.
func postJSON(ctx context.Context, client *http.Client, url string, header http.Header, body, out any) *Failure {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Failure{Category: FailureUnknown, Message: "encode request: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &Failure{Category: FailureUnknown, Message: "create request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportFailure(err)
	}

	if f := statusFailure(resp.StatusCode, raw); f != nil {
		return f
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Failure{Category: FailureUnknown, Message: invalidShapeMessage}
	}
	return nil
}

const invalidShapeMessage = "Invalid response shape"

// statusFailure maps a non-200 status to a Failure.
func statusFailure(status int, body []byte) *Failure {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized:
		return &Failure{Category: FailureAuth, Message: "Unauthorized"}
	case status >= 400 && status < 500:
		return &Failure{Category: FailureClient, Message: bodyText(body)}
	case status >= 500:
		return &Failure{Category: FailureServer, Message: bodyText(body)}
	default:
		return &Failure{Category: FailureUnknown, Message: bodyText(body)}
	}
}

// transportFailure classifies an error from the HTTP round trip.
func transportFailure(err error) *Failure {
	if isTimeout(err) {
		return &Failure{Category: FailureTimeout, Message: timeoutMessage}
	}
	return &Failure{Category: FailureUnknown, Message: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func bodyText(body []byte) string {
	return strings.TrimSpace(string(body))
}
