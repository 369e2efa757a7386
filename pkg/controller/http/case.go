package http

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/usecase"
)

// keyParam returns the business key from the path. Keys may contain an
// escaped slash.
func keyParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "key")
	key, err := url.PathUnescape(raw)
	if err != nil || key == "" {
		return "", badRequest("invalid business key", goerr.V(model.BusinessKeyKey, raw))
	}
	return key, nil
}

func listCasesHandler(uc CaseUseCase) http.HandlerFunc {
	type response struct {
		Cases []*model.Case `json:"cases"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var opts []interfaces.ListCaseOption
		if raw := q.Get("status"); raw != "" {
			status, err := types.ParseCaseStatus(raw)
			if err != nil {
				writeError(ctx, w, badRequest("unknown status", goerr.V("status", raw)))
				return
			}
			opts = append(opts, interfaces.WithStatus(status))
		}
		if raw := q.Get("source"); raw != "" {
			source, err := types.ParseSourceType(raw)
			if err != nil {
				writeError(ctx, w, badRequest("unknown source", goerr.V(model.SourceKey, raw)))
				return
			}
			opts = append(opts, interfaces.WithSource(source))
		}
		limit, err := limitParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if limit > 0 {
			opts = append(opts, interfaces.WithLimit(limit))
		}

		cases, err := uc.ListCases(ctx, opts...)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		if cases == nil {
			cases = []*model.Case{}
		}
		writeJSON(ctx, w, http.StatusOK, response{Cases: cases})
	}
}

func caseStatsHandler(uc CaseUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var opts []interfaces.ListCaseOption
		if raw := r.URL.Query().Get("source"); raw != "" {
			source, err := types.ParseSourceType(raw)
			if err != nil {
				writeError(ctx, w, badRequest("unknown source", goerr.V(model.SourceKey, raw)))
				return
			}
			opts = append(opts, interfaces.WithSource(source))
		}

		stats, err := uc.Stats(ctx, opts...)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, stats)
	}
}

func getCaseHandler(uc CaseUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, err := keyParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		c, err := uc.GetCase(ctx, key)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, c)
	}
}

// editCaseHandler stores a local edit. A failed write-back is reported in
// the body, not the status, since the edit itself is kept.
func editCaseHandler(uc CaseUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, err := keyParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		var edit usecase.CaseEdit
		if err := decodeJSON(r, w, &edit); err != nil {
			writeError(ctx, w, err)
			return
		}
		if edit.Status != nil {
			status, err := types.ParseCaseStatus(edit.Status.String())
			if err != nil {
				writeError(ctx, w, badRequest("unknown status", goerr.V("status", edit.Status.String())))
				return
			}
			edit.Status = &status
		}

		result, err := uc.EditCase(ctx, key, edit)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, result)
	}
}

func pushCaseHandler(uc CaseUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key, err := keyParam(r)
		if err != nil {
			writeError(ctx, w, err)
			return
		}

		if err := uc.PushCase(ctx, key); err != nil {
			writeError(ctx, w, err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, map[string]any{
			"business_key": key,
			"pushed":       true,
		})
	}
}
