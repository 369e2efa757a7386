package reportapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
)

const (
	// DefaultBaseURL is the reports endpoint of the production API
	DefaultBaseURL = "https://mynaga.app/api/reports"
	// DefaultTimeout bounds one request
	DefaultTimeout = 30 * time.Second

	sortQuery         = `{"priority":-1,"status":1,"date_created":1}`
	unauthenticated   = "Unauthenticated."
	maxErrorBodyBytes = 512
)

// Report is one report object as returned by the API, kept untyped so that a
// malformed report fails only its own row
type Report map[string]any

// Service lists reports created within a time window
type Service interface {
	ListReports(ctx context.Context, from, to time.Time) ([]Report, error)
}

// client implements Service interface
type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for client configuration
type Option func(*client)

// WithBaseURL overrides the reports endpoint
func WithBaseURL(u string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// New creates a report API Service. The token is sent verbatim in the
// Authorization header, so it may carry its own "Bearer " prefix.
func New(token string, opts ...Option) (Service, error) {
	if token == "" {
		return nil, goerr.New("report API token is required")
	}

	c := &client{
		baseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) ListReports(ctx context.Context, from, to time.Time) ([]Report, error) {
	q := url.Values{}
	q.Set("filter_cancel", "1")
	q.Set("sortQuery", sortQuery)
	q.Set("date_created_from", from.UTC().Format("2006-01-02T15:04:05.000Z"))
	q.Set("date_created_to", to.UTC().Format("2006-01-02T15:04:05.000Z"))
	reqURL := c.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build report request", goerr.V(model.URLKey, c.baseURL))
	}
	req.Header.Set("Authorization", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to call report API", goerr.V(model.URLKey, c.baseURL))
	}
	defer safe.Close(ctx, resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to read report API response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, goerr.Wrap(model.ErrAuthentication, "report API rejected token",
			goerr.V(model.StatusCodeKey, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, goerr.Wrap(model.ErrSourceNotFound, "report API endpoint not found",
			goerr.V(model.URLKey, c.baseURL))
	case resp.StatusCode >= 300:
		return nil, goerr.Wrap(model.ErrTransport, "unexpected report API status",
			goerr.V(model.StatusCodeKey, resp.StatusCode),
			goerr.V("body", truncate(body)))
	}

	return decodeReports(body)
}

// decodeReports accepts a bare list or an object wrapping it in "data". An
// object carrying the "Unauthenticated." message is an auth failure even
// with a 2xx status.
func decodeReports(body []byte) ([]Report, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, goerr.Wrap(model.ErrTransport, "empty report API response")
	}

	var list []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to decode report list")
		}

	case '{':
		var envelope struct {
			Message string            `json:"message"`
			Data    []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to decode report envelope")
		}
		if envelope.Message == unauthenticated {
			return nil, goerr.Wrap(model.ErrAuthentication, "report API token is not authenticated")
		}
		if envelope.Data == nil {
			return nil, goerr.Wrap(model.ErrTransport, "report API response has no data",
				goerr.V("body", truncate(body)))
		}
		list = envelope.Data

	default:
		return nil, goerr.Wrap(model.ErrTransport, "report API response is not JSON",
			goerr.V("body", truncate(body)))
	}

	reports := make([]Report, 0, len(list))
	for _, raw := range list {
		var r Report
		if err := json.Unmarshal(raw, &r); err != nil || r == nil {
			// keep the position so the row fails on its own
			r = Report{"_raw": string(raw)}
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBodyBytes {
		return string(b[:maxErrorBodyBytes]) + "..."
	}
	return string(b)
}
