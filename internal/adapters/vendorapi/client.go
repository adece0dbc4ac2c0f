// Package vendorapi pulls maintenance records from vendor REST endpoints.
package vendorapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/okian/fleetready/internal/adapters/secrets"
	"github.com/okian/fleetready/internal/domain/model"
	"github.com/okian/fleetready/pkg/logger"
	"github.com/okian/fleetready/pkg/metrics"
)

// Auth schemes for Endpoint.AuthScheme.
const (
	AuthAPIKey = "api_key"
	AuthBearer = "bearer"
)

const maxErrorBody = 512

// Endpoint is one vendor feed.
type Endpoint struct {
	Name       string
	URL        string
	AuthScheme string
	// SecretKey names the credential in the secret store.
	SecretKey string
	// Fields maps canonical field names to gjson paths in each item.
	Fields map[string]string
}

// Client pulls vendor feeds. Each response is a JSON array; every element
// becomes one raw record of a single batch.
type Client struct {
	http    *resty.Client
	secrets secrets.Store
	log     logger.Logger
	now     func() time.Time
}

// New creates a Client resolving credentials from store.
func New(store secrets.Store, opts ...Option) *Client {
	c := &Client{
		secrets: store,
		log:     logger.Nop(),
		now:     time.Now,
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("Accept", "application/json").
			SetRetryCount(3).
			SetRetryWaitTime(200*time.Millisecond).
			SetRetryMaxWaitTime(5*time.Second),
	}
	c.http.AddRetryCondition(retryCondition)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pull fetches ep and returns its records as one batch.
func (c *Client) Pull(ctx context.Context, ep Endpoint) (model.Batch, error) {
	start := c.now()
	b, err := c.pull(ctx, ep)
	if err != nil {
		metrics.RecordVendorPull(ep.Name, "failed")
		c.log.Error(ctx, "vendor pull failed", logger.String("vendor", ep.Name), logger.Error(err))
		return model.Batch{}, err
	}
	metrics.RecordVendorPull(ep.Name, "ok")
	c.log.Info(ctx, "vendor pull finished",
		logger.String("vendor", ep.Name),
		logger.String("batch_id", b.ID),
		logger.Int("records", len(b.Records)),
		logger.Duration("elapsed", c.now().Sub(start)))
	return b, nil
}

func (c *Client) pull(ctx context.Context, ep Endpoint) (model.Batch, error) {
	req := c.http.R().SetContext(ctx)
	if ep.AuthScheme != "" {
		cred, err := c.secrets.Get(ctx, ep.SecretKey)
		if err != nil {
			return model.Batch{}, fmt.Errorf("%w: %s: %w", ErrCredentials, ep.Name, err)
		}
		switch ep.AuthScheme {
		case AuthAPIKey:
			req.SetHeader("X-API-Key", cred)
		case AuthBearer:
			req.SetAuthToken(cred)
		default:
			return model.Batch{}, fmt.Errorf("%w: %s: unsupported auth scheme %q", ErrCredentials, ep.Name, ep.AuthScheme)
		}
	}

	resp, err := req.Get(ep.URL)
	if err != nil {
		return model.Batch{}, fmt.Errorf("vendor %s: %w", ep.Name, err)
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return model.Batch{}, &StatusError{Vendor: ep.Name, Code: resp.StatusCode(), Body: body}
	}

	data := resp.Body()
	if !gjson.ValidBytes(data) {
		return model.Batch{}, fmt.Errorf("%w: %s: invalid json", ErrPayload, ep.Name)
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return model.Batch{}, fmt.Errorf("%w: %s: expected an array", ErrPayload, ep.Name)
	}

	b := model.Batch{ID: uuid.NewString(), Source: ep.Name, ReceivedAt: c.now().UTC()}
	for _, item := range doc.Array() {
		b.Records = append(b.Records, model.RawRecord{
			Source: ep.Name,
			Format: model.FormatJSON,
			Data:   []byte(item.Raw),
			Fields: ep.Fields,
		})
	}
	return b, nil
}

func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= http.StatusInternalServerError || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
