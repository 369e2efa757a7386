package sheets_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/service/sheets"
)

func TestCSVURL(t *testing.T) {
	t.Run("edit URL is rewritten to export", func(t *testing.T) {
		got, err := sheets.CSVURL("https://docs.google.com/spreadsheets/d/abc/edit#gid=7")
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal("https://docs.google.com/spreadsheets/d/abc/export?format=csv&gid=7")
	})

	t.Run("published URL is kept", func(t *testing.T) {
		u := "https://docs.google.com/spreadsheets/d/e/2PACX/pub?gid=0&single=true&output=csv"
		got, err := sheets.CSVURL(u)
		gt.NoError(t, err).Required()
		gt.Value(t, got).Equal(u)
	})
}

func TestFetchCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("parses records and strips BOM", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("\ufeffControl No.,Category\nOTH-1,\"Other, misc\"\nOTH-2\n"))
		}))
		defer srv.Close()

		records, err := sheets.FetchCSV(ctx, srv.Client(), srv.URL)
		gt.NoError(t, err).Required()
		gt.Array(t, records).Length(3)
		gt.Value(t, records[0][0]).Equal("Control No.")
		gt.Value(t, records[1][1]).Equal("Other, misc")
		gt.Array(t, records[2]).Length(1)
	})

	statusCases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: model.ErrAuthentication},
		{name: "forbidden", status: http.StatusForbidden, want: model.ErrAuthentication},
		{name: "not found", status: http.StatusNotFound, want: model.ErrSourceNotFound},
		{name: "server error", status: http.StatusBadGateway, want: model.ErrTransport},
	}
	for _, tc := range statusCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			_, err := sheets.FetchCSV(ctx, srv.Client(), srv.URL)
			gt.Value(t, err).NotNil()
			gt.Bool(t, errors.Is(err, tc.want)).True()
		})
	}

	t.Run("connection failure is transport", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := sheets.FetchCSV(ctx, http.DefaultClient, url)
		gt.Bool(t, errors.Is(err, model.ErrTransport)).True()
	})
}

func TestSource_CSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(" Control No. , Category ,Barangay\n OTH-1 ,, Concepcion Pequeña\nOTH-2,Flooding\n"))
	}))
	defer srv.Close()

	src, err := sheets.NewSource(srv.URL+"/pub?output=csv", sheets.WithHTTPClient(srv.Client()))
	gt.NoError(t, err).Required()

	batch, err := src.FetchBatch(context.Background())
	gt.NoError(t, err).Required()

	gt.Value(t, batch.Headers).Equal([]string{"Control No.", "Category", "Barangay"})
	gt.Array(t, batch.Rows).Length(2)

	first := batch.Rows[0]
	gt.Number(t, first.Row).Equal(1)
	gt.Value(t, first.Locator).Equal("sheet row 2")
	gt.Value(t, first.Cells["Control No."]).Equal(any("OTH-1"))
	gt.Value(t, first.Cells["Category"]).Equal(any(""))
	gt.Value(t, first.Cells["Barangay"]).Equal(any("Concepcion Pequeña"))

	second := batch.Rows[1]
	gt.Value(t, second.Cells["Barangay"]).Equal(any(""))
}
