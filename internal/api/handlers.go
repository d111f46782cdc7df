package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/easeaico/mirror-clarity/internal/clarity"
	"github.com/easeaico/mirror-clarity/internal/types"
)

const maxBodyBytes = 1 << 20

type quizRequest struct {
	Selections []int `json:"selections"`
	Retake     bool  `json:"retake"`
}

type inputRequest struct {
	Category string `json:"category"`
}

type textRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

type memoriesResponse struct {
	Memories []types.ScoredMemory `json:"memories"`
}

type recordsResponse struct {
	Memories []types.MemoryRecord `json:"memories"`
}

type historyResponse struct {
	History []types.ClaritySnapshot `json:"history"`
	// Journal is omitted when no journal is configured.
	Journal []types.JournalEntry `json:"journal,omitempty"`
}

type journalResponse struct {
	Entries []types.JournalEntry `json:"entries"`
}

func logRequest(r *http.Request, route string, status int, d time.Duration) {
	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	slog.Log(r.Context(), level, "http request",
		"method", r.Method, "route", route, "status", status, "duration_ms", d.Milliseconds())
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: invalid request body: %v", types.ErrInvalidArgument, err)
}

func userID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "userID"))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Quiz())
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profile(r.Context(), userID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) takeQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	take := s.svc.TakeQuiz
	if req.Retake {
		take = s.svc.RetakeQuiz
	}
	result, err := take(r.Context(), userID(r), req.Selections)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) applyInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		handleError(w, r, fmt.Errorf("%w: category is required", types.ErrInvalidArgument))
		return
	}
	result, err := s.svc.ApplyCategory(r.Context(), userID(r), clarity.ParseInputCategory(req.Category))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) observe(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	source := types.MemorySourceChat
	if req.Source != "" {
		parsed, err := types.ParseMemorySource(req.Source)
		if err != nil {
			handleError(w, r, err)
			return
		}
		source = parsed
	}
	result, err := s.svc.Observe(r.Context(), userID(r), req.Text, source)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) reflect(w http.ResponseWriter, r *http.Request) {
	if !s.svc.HasClassifier() {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "signal classifier not configured")
		return
	}
	var req textRequest
	if err := decode(r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	var source types.MemorySource
	if req.Source != "" {
		parsed, err := types.ParseMemorySource(req.Source)
		if err != nil {
			handleError(w, r, err)
			return
		}
		source = parsed
	}
	result, err := s.svc.Reflect(r.Context(), userID(r), req.Text, source)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) negativeFeedback(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.NegativeFeedback(r.Context(), userID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) recalibrate(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Recalibrate(r.Context(), userID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Reset(r.Context(), userID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// queryLimit reads ?limit=, which defaults to 0 (no limit).
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: limit must be a non-negative integer", types.ErrInvalidArgument)
	}
	return v, nil
}

func (s *Server) recall(w http.ResponseWriter, r *http.Request) {
	if !s.svc.HasMemories() {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "memory index not configured")
		return
	}
	query := r.URL.Query()
	if query.Get("q") == "" && query.Get("top") == "" {
		s.listMemories(w, r)
		return
	}
	topN := s.topN
	if raw := r.URL.Query().Get("top"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			handleError(w, r, fmt.Errorf("%w: top must be an integer", types.ErrInvalidArgument))
			return
		}
		topN = v
	}
	memories, err := s.svc.Recall(r.Context(), userID(r), r.URL.Query().Get("q"), topN)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memoriesResponse{Memories: memories})
}

func (s *Server) promptContext(w http.ResponseWriter, r *http.Request) {
	pc, err := s.svc.PromptContext(r.Context(), userID(r), r.URL.Query().Get("q"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pc)
}

func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	source := types.MemorySource(r.URL.Query().Get("source"))
	records, err := s.svc.Memories(r.Context(), userID(r), source, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordsResponse{Memories: records})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	history, err := s.svc.History(r.Context(), userID(r), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	resp := historyResponse{History: history}
	if s.svc.HasJournal() {
		resp.Journal, err = s.svc.Journal(r.Context(), userID(r), limit)
		if err != nil {
			handleError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) journal(w http.ResponseWriter, r *http.Request) {
	if !s.svc.HasJournal() {
		writeError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "journal not configured")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	entries, err := s.svc.Journal(r.Context(), userID(r), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journalResponse{Entries: entries})
}
