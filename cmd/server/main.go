// Command server exposes the workflow automation engine over HTTP: rule
// CRUD, event dispatch, execution history and aggregate stats, scoped per
// organization. With DATABASE_URL set, rules and executions persist in
// PostgreSQL; otherwise everything runs in memory. With NATS_URL set,
// domain events are also consumed from the bus.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiftlane/automation/automation"
	"github.com/shiftlane/automation/eventbridge"
	"github.com/shiftlane/automation/internal/logger"
	"github.com/shiftlane/automation/internal/metrics"
	"github.com/shiftlane/automation/multiengine"
	"github.com/shiftlane/automation/workforce"
)

// defaultOrg scopes rules created without an explicit organization.
const defaultOrg = "global"

type Server struct {
	db      *sql.DB
	manager *multiengine.Manager
	router  *chi.Mux
}

func NewServer(databaseURL string) (*Server, error) {
	// The standalone server backs every collaborator with the in-memory
	// workforce store; a full deployment injects real implementations.
	world := workforce.NewMemoryStore()
	executor := &automation.Executor{
		Jobs:     world,
		Shifts:   world,
		Workers:  world,
		Notifier: world,
		Payments: world,
		Email:    world,
		Tasks:    world,
	}

	var (
		db     *sql.DB
		stores multiengine.StoreFactory
		logs   multiengine.LogFactory
		err    error
	)
	if databaseURL != "" {
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		stores = func(orgID string) automation.RuleStore {
			return automation.NewPostgresRuleStore(db, orgID)
		}
		logs = func(orgID string) automation.ExecutionLog {
			return automation.NewPostgresExecutionLog(db, orgID)
		}
	} else {
		stores = func(string) automation.RuleStore {
			return automation.NewInMemoryRuleStore()
		}
		logs = func(string) automation.ExecutionLog {
			return automation.NewInMemoryExecutionLog()
		}
	}

	manager := multiengine.NewManager(stores, logs, executor)
	manager.SetSuggestionProvider(automation.HeuristicSuggestionProvider{})

	if db != nil {
		if err := manager.LoadOrganizations(db); err != nil {
			return nil, fmt.Errorf("failed to load organizations: %w", err)
		}
		logger.Info("organizations loaded", "count", len(manager.List()))
	}

	s := &Server{db: db, manager: manager}
	if err := s.seedDefaultRules(); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

// seedDefaultRules installs the shipped automations into the default
// organization. Already-seeded rules are left alone.
func (s *Server) seedDefaultRules() error {
	engine, err := s.manager.EngineOrCreate(defaultOrg)
	if err != nil {
		return err
	}
	for _, rule := range automation.DefaultRules() {
		if err := engine.AddRule(rule); err != nil && !errors.Is(err, automation.ErrDuplicateRule) {
			return fmt.Errorf("seed rule %s: %w", rule.ID, err)
		}
	}
	return nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/api/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/api/v1/orgs/{orgId}", func(r chi.Router) {
		r.Post("/events", s.handleTriggerEvent)
		r.Get("/executions", s.handleListExecutions)
		r.Get("/stats", s.handleStats)

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Get("/{ruleId}", s.handleGetRule)
			r.Patch("/{ruleId}", s.handleUpdateRule)
			r.Delete("/{ruleId}", s.handleDeleteRule)
			r.Post("/{ruleId}/activate", s.handleActivateRule)
			r.Post("/{ruleId}/deactivate", s.handleDeactivateRule)
			r.Get("/{ruleId}/suggestions", s.handleSuggestions)
		})
	})

	s.router = r
}

func (s *Server) metricsHandler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(func() map[string]automation.ExecutionStats {
		out := make(map[string]automation.ExecutionStats)
		for _, orgID := range s.manager.List() {
			engine, err := s.manager.Engine(orgID)
			if err != nil {
				continue
			}
			stats, err := engine.Stats()
			if err != nil {
				continue
			}
			out[orgID] = stats
		}
		return out
	}))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*automation.Engine, bool) {
	orgID := chi.URLParam(r, "orgId")
	engine, err := s.manager.EngineOrCreate(orgID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load organization engine", err)
		return nil, false
	}
	return engine, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"organizationsLoaded": len(s.manager.List()),
	})
}

func (s *Server) handleTriggerEvent(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	var req TriggerEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "event type is required", nil)
		return
	}
	if req.Type == automation.TriggerScheduleTime {
		respondError(w, http.StatusBadRequest, "schedule_time fires from the scheduler, not from events", nil)
		return
	}

	records := engine.TriggerEvent(r.Context(), req.Type, req.Payload)
	respondJSON(w, http.StatusOK, TriggerEventResponse{Executions: records})
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	rules, err := engine.Rules()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}
	if rules == nil {
		rules = []*automation.Rule{}
	}
	respondJSON(w, http.StatusOK, RulesListResponse{Rules: rules})
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rule := &automation.Rule{
		ID:             req.ID,
		Name:           req.Name,
		Description:    req.Description,
		Trigger:        req.Trigger,
		Conditions:     req.Conditions,
		Actions:        req.Actions,
		Active:         req.Active,
		Expression:     req.Expression,
		OrganizationID: chi.URLParam(r, "orgId"),
	}

	if err := multiengine.ValidateRule(rule); err != nil {
		respondError(w, http.StatusBadRequest, "rule validation failed", err)
		return
	}
	if err := engine.AddRule(rule); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, automation.ErrDuplicateRule) {
			status = http.StatusConflict
		}
		respondError(w, status, "failed to add rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	rule, err := engine.Rule(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	var patch automation.RulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ruleID := chi.URLParam(r, "ruleId")
	if err := engine.UpdateRule(ruleID, patch); err != nil {
		status := http.StatusBadRequest
		if automation.IsNotFound(err) {
			status = http.StatusNotFound
		}
		respondError(w, status, "failed to update rule", err)
		return
	}

	rule, err := engine.Rule(ruleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load updated rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	if !engine.RemoveRule(chi.URLParam(r, "ruleId")) {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleActivateRule(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, true)
}

func (s *Server) handleDeactivateRule(w http.ResponseWriter, r *http.Request) {
	s.toggleRule(w, r, false)
}

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request, active bool) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	ruleID := chi.URLParam(r, "ruleId")
	var changed bool
	if active {
		changed = engine.ActivateRule(ruleID)
	} else {
		changed = engine.DeactivateRule(ruleID)
	}
	if !changed {
		respondError(w, http.StatusNotFound, "rule not found", nil)
		return
	}

	rule, err := engine.Rule(ruleID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load rule", err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	suggestions, err := engine.AnalyzeRule(r.Context(), chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusNotFound, "rule not found", err)
		return
	}
	if suggestions == nil {
		suggestions = []automation.Suggestion{}
	}
	respondJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	records, err := engine.Executions(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list executions", err)
		return
	}
	if records == nil {
		records = []*automation.ExecutionRecord{}
	}
	respondJSON(w, http.StatusOK, ExecutionsResponse{Executions: records})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	engine, ok := s.engine(w, r)
	if !ok {
		return
	}
	stats, err := engine.Stats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to aggregate stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

// busDispatcher routes bus events to the engine of the organization named
// in the payload, defaulting to the global organization.
type busDispatcher struct {
	manager *multiengine.Manager
}

func (d busDispatcher) TriggerEvent(ctx context.Context, eventType automation.TriggerType, payload map[string]any) []*automation.ExecutionRecord {
	orgID := defaultOrg
	if v, ok := payload["organizationId"].(string); ok && v != "" {
		orgID = v
	}
	engine, err := d.manager.EngineOrCreate(orgID)
	if err != nil {
		logger.Error("bus event dropped", "organization", orgID, "error", err)
		return nil
	}
	return engine.TriggerEvent(ctx, eventType, payload)
}

func main() {
	server, err := NewServer(os.Getenv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	if server.db != nil {
		defer server.db.Close()
	}

	var bridge *eventbridge.Bridge
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		nc, err := nats.Connect(natsURL, nats.Name("automation-server"))
		if err != nil {
			logger.Fatal("failed to connect to NATS", "error", err)
		}
		defer nc.Close()

		bridge = eventbridge.New(nc, busDispatcher{manager: server.manager})
		if err := bridge.Start(); err != nil {
			logger.Fatal("failed to start event bridge", "error", err)
		}
		logger.Info("event bridge started", "url", natsURL)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if bridge != nil {
		if err := bridge.Close(); err != nil {
			logger.Error("event bridge close error", "error", err)
		}
	}
	server.manager.StopAll()
	logger.Info("server stopped")
}
