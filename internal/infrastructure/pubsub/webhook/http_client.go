package webhookpubsub

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// maxResponseSize caps the amount of the response body read back from a
	// webhook endpoint.
	maxResponseSize = 1 << 16
	userAgent       = "watchdescriptor-webhook"
)

type client struct {
	*http.Client
}

func newHTTPClient(requestTimeout time.Duration) *client {
	return &client{&http.Client{Timeout: requestTimeout}}
}

// deliver posts the JSON payload to the endpoint, with the bearer token if
// not empty, and fails for any non-2xx response.
func (c *client) deliver(endpoint, payload, token string) error {
	req, err := http.NewRequest(
		http.MethodPost, endpoint, strings.NewReader(payload),
	)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if len(token) > 0 {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	status, body, err := c.doRequest(req)
	if err != nil {
		return err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return fmt.Errorf(
			"responded with status %d: %s", status, strings.TrimSpace(body),
		)
	}
	return nil
}

func (c *client) doRequest(req *http.Request) (int, string, error) {
	rs, err := c.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer rs.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(rs.Body, maxResponseSize))
	if err != nil {
		return -1, "", err
	}
	return rs.StatusCode, string(bodyBytes), nil
}
