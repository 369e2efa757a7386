package sheets

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
)

// CSVURL returns the URL to download a sheet as CSV. Published and export
// URLs are kept; edit URLs are rewritten to the export endpoint.
func CSVURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "output=csv") || strings.Contains(raw, "format=csv") {
		return raw, nil
	}
	ref, err := model.ParseSheetRef(raw)
	if err != nil {
		return "", err
	}
	return ref.CSVExportURL(), nil
}

// FetchCSV downloads a CSV export without credentials and returns all records
func FetchCSV(ctx context.Context, httpClient *http.Client, url string) ([][]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build CSV request", goerr.V(model.URLKey, url))
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to download CSV", goerr.V(model.URLKey, url))
	}
	defer safe.Close(ctx, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, goerr.Wrap(model.ErrAuthentication, "sheet is not publicly readable; publish it to the web or configure service account credentials",
			goerr.V(model.URLKey, url),
			goerr.V(model.StatusCodeKey, resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, goerr.Wrap(model.ErrSourceNotFound, "sheet not found", goerr.V(model.URLKey, url))
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, goerr.Wrap(model.ErrTransport, "unexpected CSV response status",
			goerr.V(model.URLKey, url),
			goerr.V(model.StatusCodeKey, resp.StatusCode),
			goerr.V("body", string(body)))
	}

	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, goerr.Wrap(errors.Join(model.ErrTransport, err), "failed to parse CSV", goerr.V(model.URLKey, url))
	}
	if len(records) > 0 && len(records[0]) > 0 {
		records[0][0] = strings.TrimPrefix(records[0][0], "\ufeff")
	}
	return records, nil
}
