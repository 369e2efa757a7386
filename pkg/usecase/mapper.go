package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/ttacon/libphonenumber"
)

// DefaultPhoneRegion is used to interpret reporter numbers without a country code
const DefaultPhoneRegion = "PH"

// isoLayouts are tried after replacing '/' with '-' in the cell text
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// sheetLayouts cover dates typed by hand into a spreadsheet. Month-first
// wins for ambiguous dates; day-first only matches when the day exceeds 12.
var sheetLayouts = []string{
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02-Jan-2006",
}

// Mapper turns raw source rows into canonical case records. It holds no
// mutable state and is safe for concurrent use.
type Mapper struct {
	phoneRegion string
	nl          *when.Parser
}

// MapperOption configures a Mapper
type MapperOption func(*Mapper)

// WithPhoneRegion sets the region used to normalize reporter contact numbers
func WithPhoneRegion(region string) MapperOption {
	return func(m *Mapper) {
		m.phoneRegion = region
	}
}

// NewMapper creates a Mapper
func NewMapper(opts ...MapperOption) *Mapper {
	nl := when.New(nil)
	nl.Add(en.All...)
	nl.Add(common.All...)

	m := &Mapper{
		phoneRegion: DefaultPhoneRegion,
		nl:          nl,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map maps one row. A row without a business key yields (nil, nil) and is
// meant to be skipped. ingestedAt is the fallback creation time.
func (m *Mapper) Map(row model.RawRow, cols model.ColumnMap, source types.SourceType, ingestedAt time.Time) (*model.CaseRecord, error) {
	key, ok, err := m.text(row, cols, types.CaseFieldBusinessKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if err := validateBusinessKey(key); err != nil {
		return nil, goerr.Wrap(err, "invalid business key", goerr.V(RowKey, row.Row))
	}

	rec := &model.CaseRecord{
		Values: model.Case{
			BusinessKey: key,
			Source:      source,
		},
		Supplied: types.NewCaseFieldSet(types.CaseFieldBusinessKey),
		Row:      row.Row,
		Locator:  row.Locator,
	}

	textFields := []struct {
		field    types.CaseField
		dst      *string
		fallback string
	}{
		{types.CaseFieldCategory, &rec.Values.Category, model.DefaultCategory},
		{types.CaseFieldRefinedCategory, &rec.Values.RefinedCategory, ""},
		{types.CaseFieldLocation, &rec.Values.Location, model.DefaultLocation},
		{types.CaseFieldSubLocation, &rec.Values.SubLocation, model.DefaultSubLocation},
		{types.CaseFieldDescription, &rec.Values.Description, model.DefaultDescription},
		{types.CaseFieldAssignedCluster, &rec.Values.AssignedCluster, ""},
		{types.CaseFieldAssignedOffice, &rec.Values.AssignedOffice, ""},
		{types.CaseFieldExternalStatusLabel, &rec.Values.ExternalStatusLabel, ""},
		{types.CaseFieldReporterName, &rec.Values.ReporterName, ""},
		{types.CaseFieldMediaURLs, &rec.Values.MediaURLs, ""},
		{types.CaseFieldExternalLink, &rec.Values.ExternalLink, ""},
	}
	for _, tf := range textFields {
		v, ok, err := m.text(row, cols, tf.field)
		if err != nil {
			return nil, err
		}
		if ok {
			*tf.dst = v
			rec.Supplied.Add(tf.field)
		} else {
			*tf.dst = tf.fallback
		}
	}

	if v, ok, err := m.text(row, cols, types.CaseFieldStatus); err != nil {
		return nil, err
	} else if ok {
		rec.Values.Status = types.NormalizeCaseStatus(v)
		rec.Supplied.Add(types.CaseFieldStatus)
	} else {
		rec.Values.Status = types.CaseStatusOpen
	}

	if v, ok, err := m.text(row, cols, types.CaseFieldResponseMessage); err != nil {
		return nil, err
	} else if ok {
		rec.Values.ResponseMessage = model.StringPtr(v)
		rec.Supplied.Add(types.CaseFieldResponseMessage)
	}

	if v, ok, err := m.text(row, cols, types.CaseFieldReporterContact); err != nil {
		return nil, err
	} else if ok {
		rec.Values.ReporterContact = m.normalizePhone(v)
		rec.Supplied.Add(types.CaseFieldReporterContact)
	}

	rec.Values.CreatedAt = ingestedAt
	if raw, ok := m.cell(row, cols, types.CaseFieldCreatedAt); ok {
		if ts, ok := m.coerceTime(raw, ingestedAt); ok {
			rec.Values.CreatedAt = ts
			rec.Supplied.Add(types.CaseFieldCreatedAt)
		}
	}

	return rec, nil
}

// cell returns the raw value for field, treating blank cells as absent.
func (m *Mapper) cell(row model.RawRow, cols model.ColumnMap, field types.CaseField) (any, bool) {
	header, ok := cols.Header(field)
	if !ok {
		return nil, false
	}
	v, ok := row.Cells[header]
	if !ok || v == nil {
		return nil, false
	}
	switch x := v.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, false
		}
	case time.Time:
		if x.IsZero() {
			return nil, false
		}
	}
	return v, true
}

// text returns field as trimmed text. Scalars are formatted; nested values
// are a mapping error.
func (m *Mapper) text(row model.RawRow, cols model.ColumnMap, field types.CaseField) (string, bool, error) {
	v, ok := m.cell(row, cols, field)
	if !ok {
		return "", false, nil
	}

	var s string
	switch x := v.(type) {
	case string:
		s = x
	case time.Time:
		s = x.Format(time.RFC3339)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false, goerr.Wrap(model.ErrMapping, "unexpected cell shape",
			goerr.V(RowKey, row.Row),
			goerr.V("field", field.String()),
			goerr.V("type", fmt.Sprintf("%T", v)))
	}

	if !utf8.ValidString(s) {
		return "", false, goerr.Wrap(model.ErrMapping, "cell is not valid UTF-8",
			goerr.V(RowKey, row.Row),
			goerr.V("field", field.String()))
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

func validateBusinessKey(key string) error {
	if utf8.RuneCountInString(key) > model.MaxBusinessKeyLength {
		return goerr.Wrap(model.ErrMapping, "business key too long",
			goerr.V(model.BusinessKeyKey, key),
			goerr.V("max", model.MaxBusinessKeyLength))
	}
	if key == "." || key == ".." || isReservedDocID(key) {
		return goerr.Wrap(model.ErrMapping, "business key is reserved", goerr.V(model.BusinessKeyKey, key))
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return goerr.Wrap(model.ErrMapping, "business key contains control characters",
				goerr.V(model.BusinessKeyKey, key))
		}
	}
	return nil
}

// isReservedDocID matches the __name__ form Firestore keeps for itself
func isReservedDocID(key string) bool {
	return len(key) >= 4 && strings.HasPrefix(key, "__") && strings.HasSuffix(key, "__")
}

// coerceTime tries a structured value, ISO layouts, sheet layouts and then
// natural language, in that order.
func (m *Mapper) coerceTime(v any, base time.Time) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		return m.parseTime(strings.TrimSpace(x), base)
	default:
		return time.Time{}, false
	}
}

func (m *Mapper) parseTime(s string, base time.Time) (time.Time, bool) {
	iso := strings.ReplaceAll(s, "/", "-")
	for _, layout := range isoLayouts {
		if ts, err := time.Parse(layout, iso); err == nil {
			return ts, true
		}
	}
	for _, layout := range sheetLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}

	// Anchor on the ingestion day, not the instant, so a partial date such
	// as "Oct 18" maps to the same time on every run of that day.
	y, mo, d := base.Date()
	r, err := m.nl.Parse(s, time.Date(y, mo, d, 0, 0, 0, 0, base.Location()))
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// normalizePhone formats a number as E.164 when it can be parsed as a valid
// number, and keeps the raw text otherwise.
func (m *Mapper) normalizePhone(raw string) string {
	num, err := libphonenumber.Parse(raw, m.phoneRegion)
	if err != nil || !libphonenumber.IsValidNumber(num) {
		return raw
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}
