package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/chatlink/internal/reconnect"
	"github.com/rickgao/chatlink/internal/version"
)

// Retry bounds for history requests.
const (
	maxRetryDelay  = 10 * time.Second
	maxMessageSize = 200
)

// Errors a ServerError can be matched against with errors.Is.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// ServerError is a non-2xx answer from the chat server. The server maps
// every RuntimeException to a 400 with the exception message as a
// plain-text body, so Message carries that text when it is short enough
// to show.
type ServerError struct {
	StatusCode int
	Message    string
	Body       []byte
	RetryAfter time.Duration
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("chat server returned %d: %s", e.StatusCode, e.Message)
}

// Is classifies the server's free-text failures.
func (e *ServerError) Is(target error) bool {
	msg := strings.ToLower(e.Message)
	switch target {
	case ErrRoomNotFound:
		return e.StatusCode == http.StatusNotFound ||
			(e.StatusCode == http.StatusBadRequest && strings.Contains(msg, "room not found"))
	case ErrNotLoggedIn:
		return e.StatusCode == http.StatusUnauthorized ||
			(e.StatusCode == http.StatusBadRequest &&
				(strings.Contains(msg, "not logged in") || strings.Contains(msg, "session expired")))
	}
	return false
}

// Temporary reports whether repeating the request may succeed.
func (e *ServerError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func newServerError(resp *http.Response, body []byte) *ServerError {
	msg := strings.TrimSpace(string(body))
	if msg == "" || len(msg) > maxMessageSize {
		msg = http.StatusText(resp.StatusCode)
	}
	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Body:       body,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
}

// parseRetryAfter reads a Retry-After value in either delta-seconds or
// HTTP-date form. Unparseable or past values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// doRequest sends one request and returns the body of a 2xx answer.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newServerError(resp, body)
	}
	return body, nil
}

// retryDelay is the wait before retry k (1-based). A server-supplied
// Retry-After wins over the exponential schedule, up to maxRetryDelay.
func (c *Client) retryDelay(k int, serr *ServerError) time.Duration {
	if serr != nil && serr.RetryAfter > 0 {
		return min(serr.RetryAfter, maxRetryDelay)
	}
	if c.retryBackoff <= 0 {
		return 0
	}
	return reconnect.Backoff(k, c.retryBackoff, maxRetryDelay)
}

// doWithRetry repeats doRequest while the server reports a temporary
// failure, up to maxRetries extra attempts.
func (c *Client) doWithRetry(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	var serr *ServerError
	for k := 0; ; k++ {
		if k > 0 {
			delay := c.retryDelay(k, serr)
			c.logger.Debug("retrying history request", "path", path, "retry", k, "delay", delay, "status", serr.StatusCode)
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		body, err := c.doRequest(ctx, method, path, query)
		if err == nil {
			return body, nil
		}
		if !errors.As(err, &serr) || !serr.Temporary() {
			return nil, err
		}
		if k >= c.maxRetries {
			return nil, fmt.Errorf("giving up after %d retries: %w", k, err)
		}
	}
}

// get fetches path and decodes the JSON answer into result.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := c.doWithRetry(ctx, http.MethodGet, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
