package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// DefaultFetchTimeout bounds one fetch from the sheet
const DefaultFetchTimeout = 30 * time.Second

// Source is the tabular case source. With a Service it reads one tab through
// the Sheets API; without one it downloads the CSV export.
type Source struct {
	url        string
	ref        *model.SheetRef
	svc        Service
	httpClient *http.Client
	timeout    time.Duration
}

var _ interfaces.CaseSource = &Source{}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithService reads through the authenticated Sheets API
func WithService(svc Service) SourceOption {
	return func(s *Source) {
		s.svc = svc
	}
}

// WithTab pins the tab name instead of resolving it from the gid
func WithTab(tab string) SourceOption {
	return func(s *Source) {
		s.ref.Tab = tab
	}
}

// WithHTTPClient sets the client used for CSV downloads
func WithHTTPClient(c *http.Client) SourceOption {
	return func(s *Source) {
		s.httpClient = c
	}
}

// WithFetchTimeout bounds each FetchBatch call
func WithFetchTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		s.timeout = d
	}
}

// NewSource creates a tabular source for a sheet URL
func NewSource(sheetURL string, opts ...SourceOption) (*Source, error) {
	s := &Source{
		url:        strings.TrimSpace(sheetURL),
		ref:        &model.SheetRef{},
		httpClient: http.DefaultClient,
		timeout:    DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.svc != nil {
		ref, err := model.ParseSheetRef(s.url)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse sheet URL")
		}
		ref.Tab = s.ref.Tab
		s.ref = ref
	}
	return s, nil
}

func (s *Source) Type() types.SourceType {
	return types.SourceTypeSheet
}

// Ref returns the parsed sheet reference. Empty in CSV mode.
func (s *Source) Ref() model.SheetRef {
	return *s.ref
}

func (s *Source) FetchBatch(ctx context.Context) (*model.RawBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.svc != nil {
		return s.fetchAPI(ctx)
	}
	return s.fetchCSV(ctx)
}

func (s *Source) fetchAPI(ctx context.Context) (*model.RawBatch, error) {
	tab := s.ref.Tab
	if tab == "" {
		resolved, err := s.svc.ResolveTab(ctx, s.ref.SpreadsheetID, s.ref.GID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to resolve sheet tab")
		}
		tab = resolved
	}

	values, err := s.svc.GetValues(ctx, s.ref.SpreadsheetID, model.A1Tab(tab), RenderFormatted)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch sheet", goerr.V("tab", tab))
	}

	records := make([][]string, len(values))
	for i, row := range values {
		records[i] = make([]string, len(row))
		for j, v := range row {
			records[i][j] = cellText(v)
		}
	}
	return BuildBatch(types.SourceTypeSheet, records, func(sheetRow int) string {
		return fmt.Sprintf("%s!A%d", tab, sheetRow)
	}), nil
}

func (s *Source) fetchCSV(ctx context.Context) (*model.RawBatch, error) {
	url, err := CSVURL(s.url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build CSV URL")
	}
	records, err := FetchCSV(ctx, s.httpClient, url)
	if err != nil {
		return nil, err
	}
	return BuildBatch(types.SourceTypeSheet, records, func(sheetRow int) string {
		return fmt.Sprintf("sheet row %d", sheetRow)
	}), nil
}

// BuildBatch turns positional records into a batch. The first record is the
// header row; headers and cells are trimmed.
func BuildBatch(source types.SourceType, records [][]string, locate func(sheetRow int) string) *model.RawBatch {
	batch := &model.RawBatch{
		Source:  source,
		Aliases: model.SheetColumnAliases,
	}
	if len(records) == 0 {
		return batch
	}

	batch.Headers = make([]string, len(records[0]))
	for i, h := range records[0] {
		batch.Headers[i] = strings.TrimSpace(h)
	}

	for i, rec := range records[1:] {
		values := make([]string, len(rec))
		for j, v := range rec {
			values[j] = strings.TrimSpace(v)
		}
		batch.Rows = append(batch.Rows, model.RawRow{
			Row:     i + 1,
			Locator: locate(i + 2),
			Cells:   model.ZipRow(batch.Headers, values),
		})
	}
	return batch
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
