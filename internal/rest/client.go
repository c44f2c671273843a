// Package rest issues signed requests against the venue's REST API and
// batches order submissions.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"coinflow/internal/sign"
	"coinflow/logger"
)

// APIError is a venue-reported request failure, including signature
// rejections from clock skew. It fails the single request, never the
// connection.
type APIError struct {
	Code string
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue error code=%s msg=%s", e.Code, e.Msg)
}

// envelope is the venue's REST response wrapper.
type envelope struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type ClientOptions struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	Burst             int
}

// Client signs every outbound request with a fresh timestamp and rate
// limits them client side.
type Client struct {
	base    string
	http    *http.Client
	signer  sign.Signer
	limiter *rate.Limiter
	log     *logger.Log
}

func NewClient(opts ClientOptions, signer sign.Signer, log *logger.Log) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = opts.RequestsPerSecond
	}
	return &Client{
		base:    opts.BaseURL,
		http:    &http.Client{Timeout: opts.Timeout},
		signer:  signer,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		log:     log,
	}
}

// Do signs and executes one request. path must include any query
// string, because the query is part of the signed payload. out, when
// non-nil, receives the decoded data field.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	ts := sign.Timestamp()
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = c.signer.Headers(ts, method, path, string(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response for %s %s: %w", method, path, err)
	}
	if env.Code != "" && env.Code != "0" {
		return &APIError{Code: env.Code, Msg: env.Msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data for %s %s: %w", method, path, err)
		}
	}
	return nil
}

// Get issues a signed GET with query values.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	if len(query) > 0 {
		path = path + "?" + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, path, nil, out)
}
