package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/TobiSchelling/kdramadb/internal/database"
	"github.com/TobiSchelling/kdramadb/internal/ingest"
)

type pageInfo struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

type searchResponse struct {
	Dramas   []database.Drama `json:"dramas"`
	Total    int              `json:"total"`
	PageInfo pageInfo         `json:"page_info"`
}

type convertResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	Database         string `json:"database"`
	RecordsConverted int    `json:"records_converted"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleAPIRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":        "K-Drama Database API",
		"status":         "ready",
		"version":        s.opts.Version,
		"image_base_url": s.opts.ImageBaseURL,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r.URL.Query(), s.opts.DefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := s.db.SearchDramas(r.Context(), params)
	if database.IsValidation(err) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Search failed")
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Dramas: res.Dramas,
		Total:  res.Total,
		PageInfo: pageInfo{
			Limit:   res.Limit,
			Offset:  res.Offset,
			HasMore: res.HasMore,
		},
	})
}

func parseSearchParams(q url.Values, defaultLimit int) (database.SearchParams, error) {
	p := database.SearchParams{
		Term:   q.Get("q"),
		Genre:  q.Get("genre"),
		Status: q.Get("status"),
		Limit:  defaultLimit,
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, &database.ValidationError{Field: "limit", Message: "must be an integer"}
		}
	}
	if v := q.Get("offset"); v != "" {
		if p.Offset, err = strconv.Atoi(v); err != nil {
			return p, &database.ValidationError{Field: "offset", Message: "must be an integer"}
		}
	}
	if v := q.Get("min_rating"); v != "" {
		if p.MinRating, err = strconv.ParseFloat(v, 64); err != nil {
			return p, &database.ValidationError{Field: "min_rating", Message: "must be a number"}
		}
	}
	return p, nil
}

func (s *Server) handleDrama(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("tmdb_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid tmdb_id: must be an integer")
		return
	}

	d, err := s.db.GetDrama(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Drama not found")
		return
	}
	if err != nil {
		s.logger.Error("drama lookup failed", "tmdb_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Database error")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Stats error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	s.convertMu.Lock()
	defer s.convertMu.Unlock()

	// A client hanging up must not abort a half-done load.
	ctx := context.WithoutCancel(r.Context())
	res, err := s.ingester.Run(ctx, s.opts.CSVPath)
	if errors.Is(err, ingest.ErrSourceNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("CSV file %s not found", s.opts.CSVPath))
		return
	}
	if err != nil {
		s.logger.Error("conversion failed", "error", err)
		writeError(w, http.StatusInternalServerError, "INGESTION_ERROR", "Conversion failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, convertResponse{
		Success:          true,
		Message:          "Conversion completed successfully",
		Database:         s.db.Location(),
		RecordsConverted: res.Count,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint: errcheck
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}
