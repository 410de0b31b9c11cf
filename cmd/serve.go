package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/cache"
	"github.com/sells-group/listing-recon/internal/model"
	"github.com/sells-group/listing-recon/internal/monitoring"
	"github.com/sells-group/listing-recon/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the comparison API for the dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		eng, err := buildEngine(cfg)
		if err != nil {
			return err
		}
		defer eng.Close()

		a := newAPI(st, eng)

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(a, cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiStore is the persistence the HTTP API reads and writes.
type apiStore interface {
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	SaveComparison(ctx context.Context, pc *model.PropertyComparison) (*model.ComparisonRun, error)
	ListComparisons(ctx context.Context, filter store.ComparisonFilter) ([]model.ComparisonRun, error)
}

type api struct {
	store apiStore
	// comparer serves stored properties and may be cached; adhoc serves
	// request bodies and always runs live.
	comparer cache.Comparer
	adhoc    cache.Comparer
	sources  func() []model.SourceInfo
	metrics  http.Handler
}

func newAPI(st apiStore, eng *engine) *api {
	a := &api{
		store:    st,
		comparer: eng.comparer,
		adhoc:    eng.orchestrator,
		sources:  eng.orchestrator.Sources,
	}
	if eng.metrics != nil {
		a.metrics = eng.metrics.Handler()
	}
	return a
}

func newRouter(a *api, origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/sources", a.handleSources)
	r.Get("/properties/{id}/comparison", a.handlePropertyComparison)
	r.Get("/properties/{id}/comparisons", a.handleComparisonHistory)
	r.Post("/comparisons", a.handleAdhocComparison)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}
	return r
}

func (a *api) handleSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.sources())
}

// handlePropertyComparison compares a stored property. ?save=true records
// the run.
func (a *api) handlePropertyComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	prop, err := a.store.GetProperty(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "property not found")
			return
		}
		a.fail(w, r, err)
		return
	}

	a.compareAndRespond(w, r, a.comparer, *prop)
}

// handleAdhocComparison compares a property supplied in the request body.
func (a *api) handleAdhocComparison(w http.ResponseWriter, r *http.Request) {
	var prop model.Property
	if err := json.NewDecoder(r.Body).Decode(&prop); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if prop.Address == "" && prop.ID == "" {
		writeError(w, http.StatusBadRequest, "id or address is required")
		return
	}
	a.compareAndRespond(w, r, a.adhoc, prop)
}

func (a *api) compareAndRespond(w http.ResponseWriter, r *http.Request, c cache.Comparer, prop model.Property) {
	ctx := r.Context()
	pc, err := c.Compare(ctx, prop)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save && prop.ID != "" {
		run, err := a.store.SaveComparison(ctx, pc)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("X-Run-Id", run.ID)
	}
	writeJSON(w, http.StatusOK, pc)
}

func (a *api) handleComparisonHistory(w http.ResponseWriter, r *http.Request) {
	filter := store.ComparisonFilter{PropertyID: chi.URLParam(r, "id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := a.store.ListComparisons(r.Context(), filter)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.ComparisonRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
