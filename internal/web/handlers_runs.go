package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/catalogimport/internal/core"
	"github.com/JonMunkholm/catalogimport/internal/feed"
	"github.com/JonMunkholm/catalogimport/internal/logging"
)

type startRunRequest struct {
	EntityType string `json:"entity_type"`
}

type startRunResponse struct {
	RunID      string `json:"run_id"`
	EntityType string `json:"entity_type"`
}

// validateResponse is returned by the rows and feed endpoints.
type validateResponse struct {
	RunID       string           `json:"run_id"`
	Rows        int              `json:"rows"`
	InvalidRows int              `json:"invalid_rows"`
	Results     []core.RowResult `json:"results"`
}

// handleStartRun opens a run. An empty body starts a run for the configured entity type.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)

	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, badRequest("invalid request body: %w", err))
		return
	}
	if req.EntityType == "" {
		req.EntityType = s.cfg.Import.EntityType
	}

	id, err := s.runs.Start(r.Context(), req.EntityType)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.ForRun(r.Context(), id).Info("run opened", "entity_type", req.EntityType)
	writeJSON(w, http.StatusCreated, startRunResponse{RunID: id, EntityType: req.EntityType})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":    s.runs.List(),
		"limiter": s.runs.LimiterStatus(),
	})
}

func (s *Server) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.Summary(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFinishRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runs.Finish(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleValidateRows validates a JSON array of rows. Result lines are
// 1-based positions in the array.
func (s *Server) handleValidateRows(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFeedSize)

	var rows []core.RowData
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		respondError(w, r, bodyError("invalid rows", err))
		return
	}

	results, err := s.runs.Validate(r.Context(), runID, rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newValidateResponse(runID, results))
}

// handleValidateFeed validates a CSV body. Result lines are feed line numbers.
func (s *Server) handleValidateFeed(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	// Fail fast on unknown runs before reading a large body.
	if _, err := s.runs.Get(runID); err != nil {
		respondError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFeedSize)

	reader, err := feed.NewReader(r.Body)
	if err != nil {
		respondError(w, r, bodyError("read feed", err))
		return
	}
	feedRows, err := reader.ReadAll()
	if err != nil {
		respondError(w, r, bodyError("read feed", err))
		return
	}

	rows := make([]core.LineRow, len(feedRows))
	for i, fr := range feedRows {
		rows[i] = core.LineRow{Line: fr.Line, Data: core.RowData(fr.Data)}
	}

	results, err := s.runs.ValidateLines(r.Context(), runID, rows)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.ForRun(r.Context(), runID).Debug("feed validated",
		"columns", len(reader.Header()),
		"rows", len(rows),
	)
	writeJSON(w, http.StatusOK, newValidateResponse(runID, results))
}

// bodyError classifies a failure to read the request body.
func bodyError(op string, err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("feed too large: %w", tooLarge)
	}
	return badRequest("%s: %w", op, err)
}

func newValidateResponse(runID string, results []core.RowResult) validateResponse {
	resp := validateResponse{RunID: runID, Rows: len(results), Results: results}
	for _, res := range results {
		if !res.Valid {
			resp.InvalidRows++
		}
	}
	if resp.Results == nil {
		resp.Results = []core.RowResult{}
	}
	return resp
}
