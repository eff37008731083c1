package client

import (
	"bytes"
	"context"
	"emsp/ocpi"
	"emsp/utility"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultAttempts = 3

// StatusError is a response with an unexpected HTTP status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received non-2xx status code: %d", e.Code)
}

type Client struct {
	client   *http.Client
	url      string
	token    string
	attempts int
	backoff  time.Duration
}

func New(url, token string) *Client {
	return &Client{
		url:      url,
		token:    token,
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: defaultAttempts,
		backoff:  time.Second,
	}
}

// WithBackoff sets the pause before the n-th retry to n*backoff.
func (c *Client) WithBackoff(backoff time.Duration) *Client {
	c.backoff = backoff
	return c
}

// Post sends data to the endpoint and decodes the OCPI envelope of the answer.
// Transport failures and 5xx answers are retried, anything else is returned at once.
func (c *Client) Post(ctx context.Context, endpoint string, data any) (*ocpi.Response, []byte, error) {
	body, err := utility.Json.Marshal(data)
	if err != nil {
		return nil, nil, fmt.Errorf("marshalling body: %w", err)
	}
	var resp []byte
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
		resp, err = c.doRequest(ctx, endpoint, body)
		if err == nil {
			break
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code < http.StatusInternalServerError {
			return nil, nil, err
		}
		if ctx.Err() != nil {
			return nil, nil, err
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	envelope, payload, err := ocpi.ParseResponse(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding response: %w", err)
	}
	return envelope, payload, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	url := fmt.Sprintf("%v%v", c.url, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Token "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
