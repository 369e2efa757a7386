package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
)

type sourceStatusResponse struct {
	Source          types.SourceType `json:"source"`
	Configured      bool             `json:"configured"`
	Scheduled       bool             `json:"scheduled"`
	Running         bool             `json:"running"`
	IntervalSeconds int64            `json:"interval_seconds"`
	LastRunAt       *time.Time       `json:"last_run_at"`
	LastRun         *model.SyncRun   `json:"last_run"`
}

func toStatusResponse(s model.SourceStatus) sourceStatusResponse {
	return sourceStatusResponse{
		Source:          s.Source,
		Configured:      s.Configured,
		Scheduled:       s.Scheduled,
		Running:         s.Running,
		IntervalSeconds: int64(s.Interval / time.Second),
		LastRunAt:       s.LastRunAt,
		LastRun:         s.LastRun,
	}
}

func syncStatusHandler(scheduler SyncScheduler) http.HandlerFunc {
	type response struct {
		Sources []sourceStatusResponse `json:"sources"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		statuses := scheduler.Status()
		resp := response{Sources: make([]sourceStatusResponse, len(statuses))}
		for i, s := range statuses {
			resp.Sources[i] = toStatusResponse(s)
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

func sourceParam(r *http.Request) (types.SourceType, error) {
	raw := chi.URLParam(r, "source")
	source, err := types.ParseSourceType(raw)
	if err != nil {
		return "", badRequest("unknown source", goerr.V(model.SourceKey, raw))
	}
	return source, nil
}

// syncTriggerHandler runs a sync and waits for it. A failed run is still a
// recorded run and is returned with 200; only a dropped trigger is an error.
func syncTriggerHandler(scheduler SyncScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		source, err := sourceParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		run, err := scheduler.Trigger(ctx, source)
		if run == nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, run)
	}
}

func syncStartHandler(scheduler SyncScheduler) http.HandlerFunc {
	type request struct {
		IntervalSeconds int64 `json:"interval_seconds"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		source, err := sourceParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		var req request
		if err := decodeJSON(r, w, &req); err != nil {
			writeError(ctx, w, err)
			return
		}
		if req.IntervalSeconds <= 0 {
			writeError(ctx, w, badRequest("interval_seconds must be positive",
				goerr.V("interval_seconds", req.IntervalSeconds)))
			return
		}

		if err := scheduler.Start(ctx, source, time.Duration(req.IntervalSeconds)*time.Second); err != nil {
			if errorStatus(err) == http.StatusInternalServerError {
				err = badRequest(err.Error())
			}
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusAccepted, map[string]any{
			"source":           source,
			"scheduled":        true,
			"interval_seconds": req.IntervalSeconds,
		})
	}
}

func syncStopHandler(scheduler SyncScheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		source, err := sourceParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		stopped := scheduler.Stop(source)
		writeJSON(ctx, w, http.StatusOK, map[string]any{
			"source":  source,
			"stopped": stopped,
		})
	}
}

func syncRunsHandler(history RunHistory) http.HandlerFunc {
	type response struct {
		Runs []*model.SyncRun `json:"runs"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var source types.SourceType
		if raw := q.Get("source"); raw != "" {
			st, err := types.ParseSourceType(raw)
			if err != nil {
				writeError(ctx, w, badRequest("unknown source", goerr.V(model.SourceKey, raw)))
				return
			}
			source = st
		}

		limit, err := limitParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		runs, err := history.ListRuns(ctx, source, limit)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if runs == nil {
			runs = []*model.SyncRun{}
		}
		writeJSON(ctx, w, http.StatusOK, response{Runs: runs})
	}
}

func limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("invalid limit", goerr.V("limit", raw))
	}
	return n, nil
}
