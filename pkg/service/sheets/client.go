package sheets

import (
	"context"
	"errors"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// DefaultTab is preferred when a sheet URL carries no gid
const DefaultTab = "Main"

// client implements Service interface
type client struct {
	api *gsheets.Service
}

type config struct {
	credentialsJSON []byte
	clientOptions   []option.ClientOption
}

// Option is a functional option for client configuration
type Option func(*config)

// WithCredentialsJSON authenticates with a service account key
func WithCredentialsJSON(data []byte) Option {
	return func(c *config) {
		c.credentialsJSON = data
	}
}

// WithClientOptions passes raw options to the underlying API client
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *config) {
		c.clientOptions = append(c.clientOptions, opts...)
	}
}

// New creates a Sheets API backed Service
func New(ctx context.Context, opts ...Option) (Service, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	if len(cfg.credentialsJSON) > 0 {
		clientOpts = append(clientOpts, option.WithCredentialsJSON(cfg.credentialsJSON))
	}
	clientOpts = append(clientOpts, cfg.clientOptions...)

	api, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create sheets service")
	}

	return &client{api: api}, nil
}

func (c *client) ResolveTab(ctx context.Context, spreadsheetID string, gid *int64) (string, error) {
	ss, err := c.api.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(err, "failed to get spreadsheet metadata", goerr.V("spreadsheet_id", spreadsheetID))
	}

	var first string
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		if first == "" {
			first = s.Properties.Title
		}
		if gid != nil && s.Properties.SheetId == *gid {
			return s.Properties.Title, nil
		}
		if gid == nil && s.Properties.Title == DefaultTab {
			return DefaultTab, nil
		}
	}

	if gid != nil {
		return "", goerr.Wrap(model.ErrSourceNotFound, "sheet gid not found in spreadsheet",
			goerr.V("spreadsheet_id", spreadsheetID),
			goerr.V("gid", *gid))
	}
	if first == "" {
		return "", goerr.Wrap(model.ErrSourceNotFound, "spreadsheet has no tabs", goerr.V("spreadsheet_id", spreadsheetID))
	}
	return first, nil
}

func (c *client) GetValues(ctx context.Context, spreadsheetID, a1Range string, render ValueRender) ([][]any, error) {
	resp, err := c.api.Spreadsheets.Values.Get(spreadsheetID, a1Range).
		ValueRenderOption(string(render)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(err, "failed to read sheet values",
			goerr.V("spreadsheet_id", spreadsheetID),
			goerr.V(model.RangeKey, a1Range))
	}

	values := make([][]any, len(resp.Values))
	for i, row := range resp.Values {
		values[i] = row
	}
	return values, nil
}

func (c *client) UpdateValues(ctx context.Context, spreadsheetID, a1Range string, values [][]any) error {
	vr := &gsheets.ValueRange{
		Range:  a1Range,
		Values: toInterfaceRows(values),
	}
	_, err := c.api.Spreadsheets.Values.Update(spreadsheetID, a1Range, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return classify(err, "failed to update sheet values",
			goerr.V("spreadsheet_id", spreadsheetID),
			goerr.V(model.RangeKey, a1Range))
	}
	return nil
}

func toInterfaceRows(values [][]any) [][]interface{} {
	rows := make([][]interface{}, len(values))
	for i, row := range values {
		rows[i] = row
	}
	return rows
}

// classify wraps an API error with the matching sync failure sentinel
func classify(err error, msg string, opts ...goerr.Option) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		opts = append(opts, goerr.V(model.StatusCodeKey, apiErr.Code))
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return goerr.Wrap(errors.Join(model.ErrAuthentication, err), msg, opts...)
		case http.StatusNotFound:
			return goerr.Wrap(errors.Join(model.ErrSourceNotFound, err), msg, opts...)
		}
	}
	return goerr.Wrap(errors.Join(model.ErrTransport, err), msg, opts...)
}
