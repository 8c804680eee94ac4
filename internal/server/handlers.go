package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dyike/CortexTrade/consts"
	"github.com/dyike/CortexTrade/internal/metrics"
	"github.com/dyike/CortexTrade/internal/stream"
	"github.com/dyike/CortexTrade/internal/utils"
	"github.com/dyike/CortexTrade/models"
)

const maxUploadBytes = 1 << 20

// handleQuery always answers 200 with either an answer or an error field.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			metrics.QueriesTotal.WithLabelValues(consts.Status_Error).Inc()
			s.log.Error().Interface("panic", v).Msg("query panicked")
			writeJSON(w, http.StatusOK, models.QueryResponse{Error: fmt.Sprintf("query failed: %v", v)})
		}
	}()

	var req models.QueryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadBytes)).Decode(&req); err != nil {
		metrics.QueriesTotal.WithLabelValues(consts.Status_Error).Inc()
		writeJSON(w, http.StatusOK, models.QueryResponse{Error: "invalid request body"})
		return
	}
	if s.deps.Answerer == nil {
		metrics.QueriesTotal.WithLabelValues(consts.Status_Error).Inc()
		writeJSON(w, http.StatusOK, models.QueryResponse{Error: "query answering is not configured"})
		return
	}
	answer, err := s.deps.Answerer.Answer(r.Context(), req.Query)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(consts.Status_Error).Inc()
		s.log.Warn().Err(err).Msg("query failed")
		writeJSON(w, http.StatusOK, models.QueryResponse{Error: err.Error()})
		return
	}
	metrics.QueriesTotal.WithLabelValues(consts.Status_OK).Inc()
	writeJSON(w, http.StatusOK, models.QueryResponse{Answer: answer})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Scorer.Records(s.deps.View.Snapshot())
	writeJSON(w, http.StatusOK, records)
}

type feedResponse struct {
	Ticks []models.Tick        `json:"ticks"`
	News  []stream.NewsSummary `json:"news"`
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, feedResponse{Ticks: s.deps.View.Ticks(), News: s.deps.View.News()})
}

// handleUpload accepts CSV rows symbol,quantity,price either as the raw
// body or as the "file" field of a multipart form.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.PortfolioLog == "" && s.deps.Holdings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "portfolio ingestion is not running"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
			return
		}
		defer file.Close()
		body = file
	}

	holdings, err := utils.ParseHoldingsCSV(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if s.deps.PortfolioLog != "" {
		// the portfolio tail delivers appended rows to the dataflow
		for _, h := range holdings {
			if err := stream.AppendJSONL(s.deps.PortfolioLog, h); err != nil {
				s.log.Error().Err(err).Str("path", s.deps.PortfolioLog).Msg("append holding")
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store holdings"})
				return
			}
		}
	} else {
		for _, h := range holdings {
			select {
			case s.deps.Holdings <- h:
			case <-r.Context().Done():
				return
			}
		}
	}
	s.log.Info().Int("rows", len(holdings)).Msg("portfolio uploaded")
	writeJSON(w, http.StatusOK, map[string]int{"accepted": len(holdings)})
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if s.deps.History == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "decision history is not configured"})
		return
	}
	q := r.URL.Query()
	limit := 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, 200)
	}
	var cursor int64
	if v := q.Get("cursor"); v != "" {
		c, err := strconv.ParseInt(v, 10, 64)
		if err != nil || c < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid cursor"})
			return
		}
		cursor = c
	}

	items, err := s.deps.History.ListDecisions(r.Context(), q.Get("symbol"), cursor, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list decisions")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list decisions"})
		return
	}
	resp := map[string]any{"decisions": items}
	if len(items) == limit {
		resp["next_cursor"] = items[len(items)-1].RowID
	}
	writeJSON(w, http.StatusOK, resp)
}
