package reportapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// DefaultLinkBase is where a report can be opened by its id
const DefaultLinkBase = "https://mynaga.app/reports"

// flatHeaders is the fixed header set of every report batch
var flatHeaders = []string{
	model.ReportKeyControlNumber,
	model.ReportKeyReportType,
	model.ReportKeyRefinedCategory,
	model.ReportKeyLocation,
	model.ReportKeyBarangay,
	model.ReportKeyDescription,
	model.ReportKeyDateCreated,
	model.ReportKeyClusterStatus,
	model.ReportKeyOffices,
	model.ReportKeyUserName,
	model.ReportKeyUserMobile,
	model.ReportKeyImages,
	model.ReportKeyLink,
}

// Source is the report API case source
type Source struct {
	svc      Service
	linkBase string
	from, to *time.Time
	timeout  time.Duration
	clock    func() time.Time
}

var _ interfaces.CaseSource = &Source{}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithWindow fixes the creation-time window. Either bound may be nil.
func WithWindow(from, to *time.Time) SourceOption {
	return func(s *Source) {
		s.from = from
		s.to = to
	}
}

// WithLinkBase sets the base URL for report links
func WithLinkBase(base string) SourceOption {
	return func(s *Source) {
		s.linkBase = base
	}
}

// WithFetchTimeout bounds each FetchBatch call
func WithFetchTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		s.timeout = d
	}
}

// WithClock sets the time source used for the default window
func WithClock(clock func() time.Time) SourceOption {
	return func(s *Source) {
		s.clock = clock
	}
}

// NewSource creates a report API source
func NewSource(svc Service, opts ...SourceOption) *Source {
	s := &Source{
		svc:      svc,
		linkBase: DefaultLinkBase,
		timeout:  DefaultTimeout,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Type() types.SourceType {
	return types.SourceTypeReportAPI
}

// Window returns the creation-time window for a fetch at now. Missing bounds
// default to the start of the current month and now.
func (s *Source) Window(now time.Time) (time.Time, time.Time) {
	to := now
	if s.to != nil {
		to = *s.to
	}
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if s.from != nil {
		from = *s.from
	}
	return from, to
}

func (s *Source) FetchBatch(ctx context.Context) (*model.RawBatch, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	from, to := s.Window(s.clock())
	reports, err := s.svc.ListReports(ctx, from, to)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch reports",
			goerr.V("from", from),
			goerr.V("to", to))
	}

	batch := &model.RawBatch{
		Source:  types.SourceTypeReportAPI,
		Headers: flatHeaders,
		Aliases: model.ReportColumnAliases,
		Rows:    make([]model.RawRow, 0, len(reports)),
	}
	for i, r := range reports {
		cells := s.Flatten(r)
		locator := fmt.Sprintf("report #%d", i+1)
		if id := scalar(r["_id"]); id != "" {
			locator = "report " + id
		}
		batch.Rows = append(batch.Rows, model.RawRow{
			Row:     i + 1,
			Locator: locator,
			Cells:   cells,
		})
	}
	return batch, nil
}

// Flatten turns one nested report into flat cells keyed by the report column
// names. Values that should be scalars but are not are kept as-is so that the
// mapper rejects the row.
func (s *Source) Flatten(r Report) map[string]any {
	cells := map[string]any{
		model.ReportKeyControlNumber:   leaf(r["control_number"]),
		model.ReportKeyReportType:      nested(r, "report_type", "name"),
		model.ReportKeyRefinedCategory: leaf(r["refinedCategory"]),
		model.ReportKeyLocation:        leaf(r["location"]),
		model.ReportKeyBarangay:        nested(r, "barangay", "name"),
		model.ReportKeyDescription:     leaf(r["description"]),
		model.ReportKeyClusterStatus:   nested(r, "report_cluster", "status"),
		model.ReportKeyOffices:         joinNames(r["offices"], "name", ", "),
		model.ReportKeyUserName:        nested(r, "user", "name"),
		model.ReportKeyUserMobile:      nested(r, "user", "mobile"),
		model.ReportKeyImages:          joinNames(r["images"], "url", ","),
	}

	if raw := scalar(r["date_created"]); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cells[model.ReportKeyDateCreated] = ts
		} else {
			cells[model.ReportKeyDateCreated] = raw
		}
	}

	if id := scalar(r["_id"]); id != "" && s.linkBase != "" {
		cells[model.ReportKeyLink] = s.linkBase + "?_id=" + url.QueryEscape(id)
	}

	if raw, ok := r["_raw"]; ok {
		cells[model.ReportKeyControlNumber] = raw
		cells[model.ReportKeyDescription] = map[string]any{"undecodable": raw}
	}
	return cells
}

// leaf returns scalars as text and anything else unchanged
func leaf(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case map[string]any, []any:
		return v
	default:
		return scalar(v)
	}
}

func nested(r Report, obj, key string) any {
	switch o := r[obj].(type) {
	case nil:
		return ""
	case map[string]any:
		return leaf(o[key])
	default:
		return o
	}
}

// joinNames collects key from an object or a list of objects or strings
func joinNames(v any, key, sep string) any {
	var items []any
	switch x := v.(type) {
	case nil:
		return ""
	case map[string]any:
		items = []any{x}
	case []any:
		items = x
	case string:
		return x
	default:
		return v
	}

	var names []string
	for _, item := range items {
		switch it := item.(type) {
		case map[string]any:
			if s := scalar(it[key]); s != "" {
				names = append(names, s)
			}
		case string:
			if it != "" {
				names = append(names, it)
			}
		}
	}
	return strings.Join(names, sep)
}

func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}
