// Package httpclient provides the HTTP client used to reach model and search backends.
package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/moktashif/pkg/utils/json"
)

// StatusError is returned when the backend answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// Client wraps http.Client with retries and trace propagation.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	maxRetries   int
	backoff      time.Duration
}

// NewClient creates a new HTTP client wrapper.
// timeout bounds unary calls only; streaming calls are bounded by the request context.
func NewClient(timeout time.Duration, maxRetries int) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		maxRetries:   maxRetries,
		backoff:      500 * time.Millisecond,
	}
}

// DoRequest executes an HTTP request, retrying transport errors and 5xx responses.
func (c *Client) DoRequest(req *http.Request) (*http.Response, error) {
	return c.do(c.httpClient, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	c.injectTraceContext(req)

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		_ = req.Body.Close()
	}

	var lastErr error
	for i := 0; i <= c.maxRetries; i++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := hc.Do(req)
		if err == nil {
			if resp.StatusCode < 500 {
				return resp, nil
			}
			// 服务端错误可重试，先关闭响应体
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("server error, status code %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		if i < c.maxRetries {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(i+1) * c.backoff):
			}
		}
	}
	return nil, lastErr
}

// DoJSON executes a JSON request, decodes the response, and ensures the body is closed.
func (c *Client) DoJSON(req *http.Request, v interface{}) error {
	resp, err := c.DoRequest(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// DoStream executes a request whose response body is consumed incrementally.
// The caller owns the returned body and must close it.
func (c *Client) DoStream(req *http.Request) (io.ReadCloser, error) {
	resp, err := c.do(c.streamClient, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	return resp.Body, nil
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// 无活跃 Span 或未设置全局传播器时不做任何修改。
func (c *Client) injectTraceContext(req *http.Request) {
	if req == nil || req.Context() == nil {
		return
	}

	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
