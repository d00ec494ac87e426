package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/rewired-gh/curio/internal/logger"
	"github.com/rewired-gh/curio/internal/models"
	"github.com/rewired-gh/curio/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type collectibleRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	YearProduced string `json:"yearProduced"`
	Condition    string `json:"condition"`
	Notes        string `json:"notes"`
}

func (req collectibleRequest) apply(c *models.Collectible) {
	c.Name = strings.TrimSpace(req.Name)
	c.Category = strings.TrimSpace(req.Category)
	c.Type = strings.TrimSpace(req.Type)
	c.Manufacturer = strings.TrimSpace(req.Manufacturer)
	c.YearProduced = strings.TrimSpace(req.YearProduced)
	c.Condition = strings.TrimSpace(req.Condition)
	c.Notes = req.Notes
}

type listResponse struct {
	Items []*models.Collectible `json:"items"`
	Count int                   `json:"count"`
}

type estimateResponse struct {
	Collectible  *models.Collectible      `json:"collectible"`
	Distribution models.PriceDistribution `json:"distribution"`
	// Kept is set when the fresh estimate had no value and the stored one was left in place.
	Kept bool `json:"kept,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Error("Store operation failed: %v", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := models.Identity{
		Name:         strings.TrimSpace(q.Get("name")),
		Category:     strings.TrimSpace(q.Get("category")),
		Type:         strings.TrimSpace(q.Get("type")),
		Manufacturer: strings.TrimSpace(q.Get("manufacturer")),
		YearProduced: strings.TrimSpace(q.Get("year")),
		Condition:    strings.TrimSpace(q.Get("condition")),
	}
	if id.IsEmpty() {
		writeError(w, http.StatusBadRequest, "at least one of name, category, type, manufacturer or year is required")
		return
	}
	writeJSON(w, http.StatusOK, s.estimator.GetPriceEstimate(r.Context(), id))
}

func (s *Server) listCollectibles(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := s.store.List(r.Context(), userFrom(r.Context()), f)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, Count: len(items)})
}

func (s *Server) createCollectible(w http.ResponseWriter, r *http.Request) {
	var req collectibleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := &models.Collectible{UserID: userFrom(r.Context())}
	req.apply(c)
	if c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.store.Create(r.Context(), c); err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/collectibles/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCollectible(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.Get(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCollectible(w http.ResponseWriter, r *http.Request) {
	var req collectibleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c := &models.Collectible{ID: chi.URLParam(r, "id"), UserID: userFrom(r.Context())}
	req.apply(c)
	if c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.store.Update(r.Context(), c); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCollectible(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), userFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) estimateCollectible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := userFrom(ctx)
	c, err := s.store.Get(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}

	dist := s.estimator.GetPriceEstimate(ctx, c.Identity())
	est := models.NewPriceEstimate(dist, s.now().UTC())
	if !c.AcceptsEstimate(est) {
		logger.Debug("No fresh value for %s, keeping stored estimate", c.ID)
		writeJSON(w, http.StatusOK, estimateResponse{Collectible: c, Distribution: dist, Kept: true})
		return
	}
	if err := s.store.SetPriceEstimate(ctx, userID, c.ID, est); err != nil {
		writeStoreError(w, err)
		return
	}
	c.Estimate = &est
	writeJSON(w, http.StatusOK, estimateResponse{Collectible: c, Distribution: dist})
}

func parseFilter(r *http.Request) (storage.Filter, error) {
	q := r.URL.Query()
	f := storage.Filter{
		Category:   q.Get("category"),
		Condition:  q.Get("condition"),
		Query:      q.Get("q"),
		SortBy:     q.Get("sort"),
		Descending: strings.EqualFold(q.Get("order"), "desc"),
	}

	var err error
	if f.MinValue, err = optionalFloat(q.Get("min_value"), "min_value"); err != nil {
		return f, err
	}
	if f.MaxValue, err = optionalFloat(q.Get("max_value"), "max_value"); err != nil {
		return f, err
	}
	if f.Limit, err = optionalInt(q.Get("limit"), "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = optionalInt(q.Get("offset"), "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func optionalFloat(raw, name string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &v, nil
}

func optionalInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}
