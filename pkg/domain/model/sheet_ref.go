package model

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	sheetGIDPattern      = regexp.MustCompile(`[?&#]gid=(\d+)`)
)

// SheetRef addresses one tab of one spreadsheet
type SheetRef struct {
	SpreadsheetID string
	// GID is the numeric sheet id from the URL, nil when absent
	GID *int64
	// Tab is an explicit tab name and takes precedence over GID
	Tab string
}

// ParseSheetRef extracts the spreadsheet id and gid from a sheet URL. A bare
// id is accepted as well.
func ParseSheetRef(raw string) (*SheetRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, goerr.New("sheet URL is empty")
	}

	ref := &SheetRef{}
	if m := spreadsheetIDPattern.FindStringSubmatch(raw); m != nil {
		ref.SpreadsheetID = m[1]
	} else if !strings.ContainsAny(raw, "/?#:") {
		ref.SpreadsheetID = raw
	} else {
		return nil, goerr.New("invalid sheet URL", goerr.V(URLKey, raw))
	}

	if m := sheetGIDPattern.FindStringSubmatch(raw); m != nil {
		gid, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid gid in sheet URL", goerr.V(URLKey, raw))
		}
		ref.GID = &gid
	}

	return ref, nil
}

// CSVExportURL returns the unauthenticated CSV export URL for the tab
func (r *SheetRef) CSVExportURL() string {
	u := "https://docs.google.com/spreadsheets/d/" + r.SpreadsheetID + "/export?format=csv"
	if r.GID != nil {
		u += "&gid=" + strconv.FormatInt(*r.GID, 10)
	}
	return u
}
