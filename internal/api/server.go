package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/echobell/echobell/internal/app"
	"github.com/echobell/echobell/internal/doorbell"
	"github.com/echobell/echobell/internal/models"
	"github.com/echobell/echobell/internal/rules"
)

const (
	maxBodyBytes      = 1 << 20 // 1 MB
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// secretSettings are household settings never returned by the API.
var secretSettings = []string{"telegram_token"}

// Server is an HTTP API server exposing classification, vision mapping and ring handling.
type Server struct {
	app       *app.App
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server over the assembled application.
func NewServer(a *app.App, logger *slog.Logger, authToken string) *Server {
	return &Server{
		app:       a,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health and metrics: no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/classify", s.auth(s.handleClassify))
	mux.HandleFunc("POST /v1/vision/map", s.auth(s.handleVisionMap))
	mux.HandleFunc("POST /v1/ring", s.auth(s.handleRing))
	mux.HandleFunc("GET /v1/rules", s.auth(s.handleListRules))
	mux.HandleFunc("POST /v1/rules/reload", s.auth(s.handleReloadRules))
	mux.HandleFunc("GET /v1/events", s.auth(s.handleListEvents))
	mux.HandleFunc("GET /v1/household", s.auth(s.handleHousehold))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

// healthResponse is returned by GET /healthz.
type healthResponse struct {
	Status string       `json:"status"`
	Rules  rules.Health `json:"rules"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	h := s.app.Rules.Health()
	status := http.StatusOK
	if h.Status != rules.StatusOK {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, healthResponse{Status: h.Status, Rules: h})
}

// classifyRequest is the body accepted by POST /v1/classify.
type classifyRequest struct {
	Text       string             `json:"text"`
	Model      string             `json:"model"`
	Detections []models.Detection `json:"detections"`
	Uniform    string             `json:"uniform"`
	// Record stores the result as a classify event.
	Record bool `json:"record"`
}

// classifyResponse is returned by POST /v1/classify.
type classifyResponse struct {
	models.Classification
	Scene   *models.Scene `json:"scene,omitempty"`
	EventID string        `json:"event_id,omitempty"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !s.decode(w, r, &req) {
		return
	}

	var resp classifyResponse
	if len(req.Detections) > 0 || req.Uniform != "" {
		scene := s.app.Mapper.MapDetections(req.Model, req.Detections, req.Uniform)
		resp.Scene = &scene
		resp.Classification = s.app.Classifier.ClassifyScene(scene, req.Text)
	} else {
		resp.Classification = s.app.Classifier.Classify(req.Text)
	}

	if req.Record {
		ev := models.Event{
			ID:             uuid.NewString(),
			Type:           models.EventTypeClassify,
			Intent:         resp.Intent,
			Confidence:     resp.Confidence,
			Urgency:        resp.Urgency,
			Mode:           s.app.Household.Snapshot().ActiveMode(),
			Transcript:     req.Text,
			MatchedRuleIDs: resp.MatchedRuleIDs,
			RulesetVersion: resp.RulesetVersion,
			CreatedAt:      time.Now().UTC(),
		}
		if err := s.app.Store.RecordEvent(r.Context(), ev); err != nil {
			s.logger.Error("failed to record classify event", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to record event")
			return
		}
		resp.EventID = ev.ID
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// visionMapRequest is the body accepted by POST /v1/vision/map.
// Either Label or Detections must be set.
type visionMapRequest struct {
	Model      string             `json:"model"`
	Label      string             `json:"label"`
	Detections []models.Detection `json:"detections"`
	Uniform    string             `json:"uniform"`
}

// visionMapResponse is returned by POST /v1/vision/map.
type visionMapResponse struct {
	Model    string        `json:"model"`
	Label    string        `json:"label,omitempty"`
	Semantic string        `json:"semantic,omitempty"`
	Scene    *models.Scene `json:"scene,omitempty"`
}

func (s *Server) handleVisionMap(w http.ResponseWriter, r *http.Request) {
	var req visionMapRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Label == "" && len(req.Detections) == 0 {
		s.writeError(w, http.StatusBadRequest, "label or detections is required")
		return
	}
	model := req.Model
	if model == "" {
		model = s.app.Mapper.DefaultModel()
	}

	resp := visionMapResponse{Model: model}
	if req.Label != "" {
		resp.Label = req.Label
		resp.Semantic = s.app.Mapper.MapLabel(model, req.Label)
	}
	if len(req.Detections) > 0 {
		scene := s.app.Mapper.MapDetections(model, req.Detections, req.Uniform)
		resp.Scene = &scene
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRing(w http.ResponseWriter, r *http.Request) {
	var req doorbell.Ring
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.app.Agent.HandleRing(r.Context(), req)
	if err != nil {
		s.logger.Error("failed to handle ring", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// ruleView is one compiled pattern in GET /v1/rules.
type ruleView struct {
	models.PatternRule
	Target       string  `json:"target,omitempty"`
	Contribution float64 `json:"contribution"`
}

// rulesResponse is returned by GET /v1/rules.
type rulesResponse struct {
	Version        uint64                      `json:"version"`
	LoadedAt       time.Time                   `json:"loaded_at"`
	Intents        []models.IntentDefinition   `json:"intents"`
	Entities       []models.EntityDefinition   `json:"entities"`
	Patterns       []ruleView                  `json:"patterns"`
	VisionMappings []models.VisionClassMapping `json:"vision_mappings"`
	Invalid        []rules.RuleError           `json:"invalid"`
}

func (s *Server) handleListRules(w http.ResponseWriter, _ *http.Request) {
	snap := s.app.Rules.Snapshot()
	resp := rulesResponse{
		Version:        snap.Version,
		LoadedAt:       snap.LoadedAt,
		Intents:        snap.Intents,
		Entities:       make([]models.EntityDefinition, 0, len(snap.Entities)),
		Patterns:       make([]ruleView, 0, len(snap.Rules)),
		VisionMappings: snap.Mappings,
		Invalid:        snap.Invalid,
	}
	for _, e := range snap.Entities {
		resp.Entities = append(resp.Entities, e)
	}
	sort.Slice(resp.Entities, func(i, j int) bool { return resp.Entities[i].Name < resp.Entities[j].Name })
	for _, r := range snap.Rules {
		resp.Patterns = append(resp.Patterns, ruleView{PatternRule: r.PatternRule, Target: r.Target, Contribution: r.Contribution})
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// reloadResponse carries the rules report and any household failure.
type reloadResponse struct {
	*rules.Report
	HouseholdError string `json:"household_error,omitempty"`
}

func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.Reload(r.Context())
	if err != nil && report != nil {
		// Rules were published; only the household snapshot is stale.
		s.logger.Warn("reload published rules but household reload failed", "version", report.Version, "error", err)
		s.writeJSON(w, http.StatusOK, reloadResponse{Report: report, HouseholdError: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		if errors.Is(err, rules.ErrStoreUnavailable) {
			s.writeError(w, http.StatusServiceUnavailable, "rule store unavailable; previous rules remain active")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	s.writeJSON(w, http.StatusOK, reloadResponse{Report: report})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventLimit)
	}

	events, err := s.app.Store.ListEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// householdResponse is returned by GET /v1/household.
type householdResponse struct {
	Version    uint64           `json:"version"`
	ActiveMode string           `json:"active_mode"`
	QuietNow   bool             `json:"quiet_now"`
	Household  models.Household `json:"household"`
}

func (s *Server) handleHousehold(w http.ResponseWriter, _ *http.Request) {
	snap := s.app.Household.Snapshot()
	hh := snap.Household()

	settings := make(map[string]string, len(hh.Settings))
	for k, v := range hh.Settings {
		settings[k] = v
	}
	for _, k := range secretSettings {
		if settings[k] != "" {
			settings[k] = "***"
		}
	}
	hh.Settings = settings

	s.writeJSON(w, http.StatusOK, householdResponse{
		Version:    snap.Version,
		ActiveMode: snap.ActiveMode(),
		QuietNow:   snap.InQuietHours(time.Now()),
		Household:  hh,
	})
}

// --- helpers ---

// decode reads a JSON body into v, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
