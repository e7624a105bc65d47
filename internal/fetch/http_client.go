package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// ErrStatus is wrapped by every error caused by a non-200 response.
var ErrStatus = errors.New("unexpected HTTP status")

// maxBodyBytes bounds how much of a response body is read into memory.
const maxBodyBytes = 8 << 20

// ClientOptions for the fetch client.
type ClientOptions struct {
	Timeout   time.Duration
	UserAgent string
	// RetryMax is the number of retries after the first attempt. Zero means
	// a failed request is reported to the caller as is.
	RetryMax int
	Logger   *zap.Logger
}

// Client is a small wrapper around retryablehttp to provide timeouts and UA.
type Client struct {
	inner     *retryablehttp.Client
	userAgent string
}

// NewClient creates a new Client.
func NewClient(opts ClientOptions) *Client {
	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	r.RetryWaitMin = 200 * time.Millisecond
	r.RetryWaitMax = 2 * time.Second
	r.HTTPClient.Timeout = opts.Timeout
	// hand non-2xx responses back instead of a "giving up" error
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Logger != nil {
		r.Logger = leveled{opts.Logger.Named("http")}
	} else {
		r.Logger = nil
	}
	return &Client{inner: r, userAgent: opts.UserAgent}
}

// Get issues a GET bound to ctx. The caller closes the response body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.inner.Do(req)
}

// GetBody fetches url and returns the body of a 200 response.
func (c *Client) GetBody(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w %d from %s", ErrStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// StandardClient returns an *http.Client backed by the retrying transport.
func (c *Client) StandardClient() *http.Client {
	return c.inner.StandardClient()
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct {
	l *zap.Logger
}

func (z leveled) Error(msg string, kv ...interface{}) { z.l.Sugar().Errorw(msg, kv...) }
func (z leveled) Info(msg string, kv ...interface{})  { z.l.Sugar().Infow(msg, kv...) }
func (z leveled) Debug(msg string, kv ...interface{}) { z.l.Sugar().Debugw(msg, kv...) }
func (z leveled) Warn(msg string, kv ...interface{})  { z.l.Sugar().Warnw(msg, kv...) }

var _ retryablehttp.LeveledLogger = leveled{}
