package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/domain/model"
	"github.com/secmon-lab/casesync/pkg/domain/types"
	"github.com/secmon-lab/casesync/pkg/usecase"
	"github.com/secmon-lab/casesync/pkg/utils/errutil"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/secmon-lab/casesync/pkg/utils/safe"
)

// maxBodyBytes bounds JSON request bodies
const maxBodyBytes = 1 << 20

// SyncScheduler controls and reports the sync of each source
type SyncScheduler interface {
	Start(ctx context.Context, source types.SourceType, interval time.Duration) error
	Stop(source types.SourceType) bool
	Trigger(ctx context.Context, source types.SourceType) (*model.SyncRun, error)
	Status() []model.SourceStatus
}

// RunHistory lists past sync runs
type RunHistory interface {
	ListRuns(ctx context.Context, source types.SourceType, limit int) ([]*model.SyncRun, error)
}

// CaseUseCase reads and edits stored cases
type CaseUseCase interface {
	GetCase(ctx context.Context, businessKey string) (*model.Case, error)
	ListCases(ctx context.Context, opts ...interfaces.ListCaseOption) ([]*model.Case, error)
	EditCase(ctx context.Context, businessKey string, edit usecase.CaseEdit) (*usecase.EditResult, error)
	PushCase(ctx context.Context, businessKey string) error
	Stats(ctx context.Context, opts ...interfaces.ListCaseOption) (*usecase.CaseStats, error)
}

type Server struct {
	router    *chi.Mux
	scheduler SyncScheduler
	history   RunHistory
	cases     CaseUseCase
}

type Options func(*Server)

func WithScheduler(s SyncScheduler) Options {
	return func(srv *Server) {
		srv.scheduler = s
	}
}

func WithRunHistory(h RunHistory) Options {
	return func(srv *Server) {
		srv.history = h
	}
}

func WithCaseUseCase(uc CaseUseCase) Options {
	return func(srv *Server) {
		srv.cases = uc
	}
}

func New(opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{router: r}
	for _, opt := range opts {
		opt(s)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		if s.scheduler != nil {
			r.Route("/sync", func(r chi.Router) {
				r.Get("/status", syncStatusHandler(s.scheduler))
				if s.history != nil {
					r.Get("/runs", syncRunsHandler(s.history))
				}
				r.Route("/{source}", func(r chi.Router) {
					r.Post("/trigger", syncTriggerHandler(s.scheduler))
					r.Post("/start", syncStartHandler(s.scheduler))
					r.Post("/stop", syncStopHandler(s.scheduler))
				})
			})
		}

		if s.cases != nil {
			r.Route("/cases", func(r chi.Router) {
				r.Get("/", listCasesHandler(s.cases))
				r.Get("/{key}", getCaseHandler(s.cases))
				r.Put("/{key}", editCaseHandler(s.cases))
				r.Post("/{key}/push", pushCaseHandler(s.cases))
			})
			r.Get("/stats", caseStatsHandler(s.cases))
		}
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		logger := logging.From(r.Context()).With("request_id", middleware.GetReqID(r.Context()))
		r = r.WithContext(logging.With(r.Context(), logger))

		defer func() {
			logger.Info("access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	safe.Write(ctx, w, data)
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, usecase.ErrEmptyEdit):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrCaseNotFound), errors.Is(err, model.ErrSourceNotEnabled):
		return http.StatusNotFound
	case errors.Is(err, model.ErrAlreadyRunning),
		errors.Is(err, model.ErrWriteBackMismatch),
		errors.Is(err, usecase.ErrNoWriteBack):
		return http.StatusConflict
	case errors.Is(err, model.ErrAuthentication),
		errors.Is(err, model.ErrSourceNotFound),
		errors.Is(err, model.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string, opts ...goerr.Option) error {
	return goerr.Wrap(errBadRequest, msg, opts...)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	errutil.HandleHTTP(ctx, w, err, errorStatus(err))
}

func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body", goerr.V("cause", err.Error()))
	}
	return nil
}
