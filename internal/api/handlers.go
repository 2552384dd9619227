package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"locksmith-coverage/internal/coverage"
	"locksmith-coverage/internal/db"
	"locksmith-coverage/internal/heatmap"
	"locksmith-coverage/internal/models"
	"locksmith-coverage/internal/parser"
	"locksmith-coverage/internal/profile"
	"locksmith-coverage/internal/readiness"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const defaultLimit = 100

type inferRequest struct {
	ToolID      string                `json:"tool_id"`
	Status      models.CoverageStatus `json:"status"`
	PlatformTag string                `json:"platform_tag"`
	Limitations []models.Limitation   `json:"limitations"`
	YearEnd     int                   `json:"year_end"`
}

type inferResponse struct {
	Verdict models.CoverageVerdict `json:"verdict"`
	Rule    coverage.Rule          `json:"rule"`
}

type vehicleRef struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year"`
}

// vehicle is the single-year vehicle the reference names
func (v vehicleRef) vehicle() models.Vehicle {
	return models.Vehicle{Make: v.Make, Model: v.Model, YearStart: v.Year, YearEnd: v.Year}
}

func (v vehicleRef) validate() error {
	if strings.TrimSpace(v.Make) == "" || strings.TrimSpace(v.Model) == "" {
		return errors.New("make and model are required")
	}
	if v.Year <= 0 {
		return errors.New("year is required")
	}
	return nil
}

type readinessRequest struct {
	vehicleRef
	Tools     models.OwnedToolSet `json:"tools"`
	ProfileID string              `json:"profile_id"`
}

type fleetRequest struct {
	Vehicles  []vehicleRef        `json:"vehicles"`
	Tools     models.OwnedToolSet `json:"tools"`
	ProfileID string              `json:"profile_id"`
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleListTiers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Registry().Tiers())
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.engine.Registry().Tools())
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parseVehicleQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	vehicles, err := s.db.ListVehicles(q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}

	respondWithMeta(w, http.StatusOK, vehicles, &meta{
		Total:   len(vehicles),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

// handleCreateVehicle registers a vehicle range. Re-posting an existing
// range updates its platform tag and chips.
func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	if errs := parser.ValidateVehicle(&v); len(errs) > 0 {
		respondError(w, http.StatusBadRequest, strings.Join(errs, "; "))
		return
	}

	if err := s.db.InsertVehicle(&v); err != nil {
		s.internalError(w, r, err)
		return
	}
	stored, err := s.db.GetVehicle(v.ID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid vehicle id")
		return
	}

	vehicle, err := s.db.GetVehicle(id)
	if errors.Is(err, db.ErrVehicleNotFound) {
		respondError(w, http.StatusNotFound, "vehicle not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleListBaselines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q, err := parseVehicleQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.db.ListBaselines(q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if results == nil {
		results = []models.CoverageBaseline{}
	}

	respondWithMeta(w, http.StatusOK, results, &meta{
		Total:   len(results),
		Limit:   q.Limit,
		Offset:  q.Offset,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleCreateBaseline(w http.ResponseWriter, r *http.Request) {
	b, err := parser.DecodeBaseline(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.InsertBaseline(&b); err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) handleBatchBaselines(w http.ResponseWriter, r *http.Request) {
	p := parser.NewParser("json", s.logger)
	records, err := p.Parse(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(records) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{Error: "no valid baselines", Meta: &meta{Warnings: p.Warnings()}})
		return
	}

	count, err := s.db.InsertBaselineBatch(records)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondWithMeta(w, http.StatusCreated, map[string]int64{"inserted": count}, &meta{Warnings: p.Warnings()})
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if strings.TrimSpace(req.ToolID) == "" {
		respondError(w, http.StatusBadRequest, "tool_id is required")
		return
	}

	verdict, rule := s.engine.Trace(req.ToolID, req.Status, req.PlatformTag, req.Limitations, req.YearEnd)
	s.metrics.ObserveInference(rule)
	respondJSON(w, http.StatusOK, inferResponse{Verdict: verdict, Rule: rule})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var req readinessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	owned, status, err := s.ownedTools(req.ProfileID, req.Tools)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	vehicle, baselines, err := s.db.Target(req.Make, req.Model, req.Year)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	result := s.assessor.Assess(vehicle, baselines, owned)
	s.metrics.ObserveReadiness(result.Status)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleFleetReadiness(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req fleetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Vehicles) == 0 {
		respondError(w, http.StatusBadRequest, "vehicles are required")
		return
	}

	owned, status, err := s.ownedTools(req.ProfileID, req.Tools)
	if err != nil {
		respondError(w, status, err.Error())
		return
	}

	// repeated vehicles share one lookup and one assessment
	hash := owned.Hash()
	slots := make([]int, len(req.Vehicles))
	seen := make(map[string]int, len(req.Vehicles))
	jobs := make([]readiness.Job, 0, len(req.Vehicles))
	for i, ref := range req.Vehicles {
		if err := ref.validate(); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("vehicles[%d]: %v", i, err))
			return
		}
		key := ref.vehicle().Key() + "#" + hash
		if j, ok := seen[key]; ok {
			slots[i] = j
			continue
		}
		vehicle, baselines, err := s.db.Target(ref.Make, ref.Model, ref.Year)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		seen[key] = len(jobs)
		slots[i] = len(jobs)
		jobs = append(jobs, readiness.Job{Vehicle: vehicle, Baselines: baselines, Owned: owned})
	}

	assessed, err := s.assessor.AssessFleet(r.Context(), jobs, s.workers)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	results := make([]models.Readiness, len(slots))
	for i, j := range slots {
		results[i] = assessed[j]
		s.metrics.ObserveReadiness(results[i].Status)
	}
	s.logger.Debug("fleet readiness",
		zap.Int("vehicles", len(results)),
		zap.Int("assessed", len(jobs)),
	)

	respondWithMeta(w, http.StatusOK, results, &meta{
		Total:   len(results),
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleHeatmap(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	q := models.VehicleQuery{
		Make:  r.URL.Query().Get("make"),
		Model: r.URL.Query().Get("model"),
	}

	baselines, err := s.db.ListBaselines(q)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	result := heatmap.Project(baselines)
	switch r.URL.Query().Get("sort") {
	case "", "vehicle":
	case "severity":
		result = heatmap.WorstFirst(result)
	default:
		respondError(w, http.StatusBadRequest, "sort must be vehicle or severity")
		return
	}
	s.metrics.ObserveHeatmap(result)
	respondWithMeta(w, http.StatusOK, result, &meta{
		Total:   result.Counts.Total,
		QueryMs: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	list, err := s.profiles.List()
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []models.OwnedProfile{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.profiles.Get(mux.Vars(r)["id"])
	if errors.Is(err, profile.ErrProfileNotFound) {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p models.OwnedProfile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	p.ID = mux.Vars(r)["id"]

	saved, err := s.profiles.Put(p)
	if errors.Is(err, profile.ErrMissingID) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.profiles.Delete(id)
	if errors.Is(err, profile.ErrProfileNotFound) {
		respondError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// ownedTools resolves the inventory for a request: the named profile when
// one is given, merged with any tools listed inline.
func (s *Server) ownedTools(profileID string, inline models.OwnedToolSet) (models.OwnedToolSet, int, error) {
	if strings.TrimSpace(profileID) == "" {
		return inline, http.StatusOK, nil
	}
	p, err := s.profiles.Get(profileID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		return models.OwnedToolSet{}, http.StatusNotFound, err
	}
	if err != nil {
		return models.OwnedToolSet{}, http.StatusInternalServerError, err
	}
	return models.OwnedToolSet{
		ToolIDs: append(p.Tools.ToolIDs, inline.ToolIDs...),
		Cables:  append(p.Tools.Cables, inline.Cables...),
	}, http.StatusOK, nil
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed",
		zap.String("request_id", r.Header.Get(requestIDHeader)),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func parseVehicleQuery(r *http.Request) (models.VehicleQuery, error) {
	values := r.URL.Query()
	q := models.VehicleQuery{
		Make:  values.Get("make"),
		Model: values.Get("model"),
		Limit: defaultLimit,
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{"year", &q.Year},
		{"limit", &q.Limit},
		{"offset", &q.Offset},
	}
	for _, f := range ints {
		v := values.Get(f.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("invalid %s: %q", f.key, v)
		}
		*f.dest = n
	}

	if v := values.Get("tool_family"); v != "" {
		family, err := models.ParseToolFamily(v)
		if err != nil {
			return q, err
		}
		q.ToolFamily = family
	}
	return q, nil
}
