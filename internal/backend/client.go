// Package backend implements the HTTP client for the commerce backend:
// catalog/customer lookups, order submission, and order retrieval. It
// speaks the backend's legacy envelope ({"data": ...} on success,
// {"error": true, "message", "data": {field: msg}} on rejection) and
// converts every failure into a typed error at this boundary.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/order-composer/internal/domain/catalog"
)

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 1 << 20

// Config holds the backend client settings.
type Config struct {
	// BaseURL is the backend root, e.g. https://api.example.com.
	BaseURL string
	// Token is the opaque bearer credential attached to every request.
	// The client never validates or refreshes it.
	Token string
	// Timeout bounds a single request attempt.
	Timeout time.Duration
	// RetryMax is the number of additional attempts for idempotent
	// lookup calls. Submissions are never retried.
	RetryMax int
	// RetryBackoff is the base delay between retry attempts.
	RetryBackoff time.Duration
	// TracerProvider instruments outgoing requests; the global provider
	// is used when nil.
	TracerProvider trace.TracerProvider
}

func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryMax == 0 {
		c.RetryMax = 2
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
}

// Client is the commerce backend API client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	retries int
	backoff time.Duration
	lg      *zap.Logger
}

var _ catalog.Searcher = (*Client)(nil)

// New creates a backend client. The transport is instrumented with
// otelhttp so every backend call is traced.
func New(cfg Config, lg *zap.Logger) *Client {
	cfg.setDefaults()
	if lg == nil {
		lg = zap.NewNop()
	}
	var opts []otelhttp.Option
	if cfg.TracerProvider != nil {
		opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
	}
	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		retries: cfg.RetryMax,
		backoff: cfg.RetryBackoff,
		lg:      lg,
	}
}

// Search queries the catalog or customer directory and returns the
// candidates for selection. Transient transport failures are retried
// with backoff since lookups are idempotent.
func (c *Client) Search(ctx context.Context, q catalog.Query) ([]catalog.Candidate, error) {
	var path string
	switch q.Kind {
	case catalog.KindProduct:
		path = "/v1/products/getList"
	case catalog.KindCustomer:
		path = "/v1/customers/getList"
	default:
		return nil, catalog.ErrUnknownKind
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("search", func(e *jx.Encoder) { e.Str(q.Search) })
		e.Field("page", func(e *jx.Encoder) { e.Int(max(q.Page, 1)) })
		e.Field("per_page", func(e *jx.Encoder) { e.Int(perPageOrDefault(q.PerPage)) })
	})

	data, err := c.doRetry(ctx, http.MethodPost, path, e.Bytes())
	if err != nil {
		return nil, err
	}
	candidates, err := decodeCandidates(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode candidates")
	}
	return candidates, nil
}

// SubmitItem is one serialized draft line item.
type SubmitItem struct {
	ProductID string
	Quantity  int
	Discount  decimal.Decimal
	UnitPrice decimal.Decimal
}

// CreateOrder submits the serialized draft. It performs exactly one
// network attempt: a submission is never retried once started, so a
// partially accepted order cannot be duplicated.
func (c *Client) CreateOrder(ctx context.Context, customerID string, items []SubmitItem) (*Order, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("customer_id", func(e *jx.Encoder) { e.Str(customerID) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("discount", func(e *jx.Encoder) { e.Raw(jx.Raw(item.Discount.String())) })
						e.Field("unit_price", func(e *jx.Encoder) { e.Raw(jx.Raw(item.UnitPrice.String())) })
					})
				}
			})
		})
	})

	data, err := c.do(ctx, http.MethodPost, "/v1/orders", e.Bytes())
	if err != nil {
		return nil, err
	}
	o, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return o, nil
}

// GetOrder fetches a confirmed order for redisplay.
func (c *Client) GetOrder(ctx context.Context, id string) (*Order, error) {
	data, err := c.doRetry(ctx, http.MethodGet, "/v1/orders/"+id, nil)
	if err != nil {
		return nil, err
	}
	o, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return o, nil
}

// Ping reports whether the backend answers HTTP at all. Any response,
// including an error status, counts as reachable; only a transport
// failure does not.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "backend unreachable")
	}
	return resp.Body.Close()
}

// doRetry runs do with backoff retries on transport failures. Rejections
// are returned immediately: the backend saw the request.
func (c *Client) doRetry(ctx context.Context, method, path string, body []byte) (jx.Raw, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.lg.Debug("retrying backend request",
				zap.String("path", path), zap.Int("attempt", attempt))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}

		data, err := c.do(ctx, method, path, body)
		if err == nil {
			return data, nil
		}
		var rej *RejectionError
		if errors.As(err, &rej) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// do performs one request attempt and decodes the envelope. A response
// with the error flag (or a non-2xx status) becomes a RejectionError;
// anything else that goes wrong is a transport failure.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (jx.Raw, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "backend request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		if resp.StatusCode >= 400 {
			// Malformed error body: still a rejection, but without
			// field detail.
			return nil, &RejectionError{
				Status:  resp.StatusCode,
				Message: http.StatusText(resp.StatusCode),
			}
		}
		return nil, errors.Wrap(err, "malformed response")
	}

	if env.err || resp.StatusCode >= 400 {
		rej := &RejectionError{
			Status:  resp.StatusCode,
			Message: env.message,
		}
		if rej.Message == "" {
			rej.Message = http.StatusText(resp.StatusCode)
		}
		if env.hasFields {
			rej.Fields = env.fields
		}
		return nil, rej
	}
	if len(env.data) == 0 {
		return nil, errors.New("response data missing")
	}
	return env.data, nil
}

func perPageOrDefault(n int) int {
	if n <= 0 {
		return 20
	}
	return n
}
