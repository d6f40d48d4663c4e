package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wingmanhq/wingman/internal/coaching"
	"github.com/wingmanhq/wingman/internal/knowledge"
	"github.com/wingmanhq/wingman/internal/orchestrator"
	"github.com/wingmanhq/wingman/internal/prompt"
	"github.com/wingmanhq/wingman/internal/retrieval"
	"github.com/wingmanhq/wingman/internal/thread"
)

func (s *Server) registerAPI(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/threads", func(r chi.Router) {
			r.Post("/", s.handleCreateThread)
			r.Get("/", s.handleListThreads)
			r.Get("/{id}", s.handleGetThread)
			r.Delete("/{id}", s.handleDeleteThread)
			r.Post("/{id}/turns", s.handleTurn)
			r.Get("/{id}/next-question", s.handleNextQuestion)
			r.Delete("/{id}/context/{field}", s.handleClearField)
		})
		r.Post("/retrieval/rank", s.handleRank)
		r.Get("/platforms/{key}", s.handlePlatform)
	})
}

type createThreadRequest struct {
	Title string `json:"title"`
	Goal  string `json:"goal"`
	Style string `json:"style"`
}

func (s *Server) handleCreateThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	// An empty body creates a thread with default preferences.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := s.engine.CreateThread(r.Context(), req.Title, coaching.Preferences{Goal: req.Goal, Style: req.Style})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := s.engine.ListThreads(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if threads == nil {
		threads = []*thread.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

func (s *Server) handleGetThread(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.GetThread(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.DeleteThread(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// turnRequest is the wire form of a turn, shared by HTTP and websocket.
// ImageData is base64 in JSON.
type turnRequest struct {
	Text      string               `json:"text"`
	ImageURL  string               `json:"image_url"`
	ImageData []byte               `json:"image_data"`
	ImageMIME string               `json:"image_mime"`
	Answer    *orchestrator.Answer `json:"answer"`
}

func (req turnRequest) input() orchestrator.Input {
	in := orchestrator.Input{Text: req.Text, Answer: req.Answer}
	if req.ImageURL != "" || len(req.ImageData) > 0 {
		in.Image = &orchestrator.Image{
			URL:      req.ImageURL,
			MIMEType: req.ImageMIME,
			Data:     req.ImageData,
		}
	}
	return in
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.engine.HandleTurn(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type nextQuestionResponse struct {
	EnoughContext bool               `json:"enough_context"`
	Question      *coaching.Question `json:"question,omitempty"`
}

func (s *Server) handleNextQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.engine.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextQuestionResponse{EnoughContext: q == nil, Question: q})
}

func (s *Server) handleClearField(w http.ResponseWriter, r *http.Request) {
	key := coaching.FieldKey(strings.ToLower(chi.URLParam(r, "field")))
	t, err := s.engine.ClearField(r.Context(), chi.URLParam(r, "id"), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type rankRequest struct {
	retrieval.Query
	Limit int `json:"limit"`
}

type rankResponse struct {
	Results   []retrieval.Scored `json:"results"`
	Formatted string             `json:"formatted"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var corpus []knowledge.Conversation
	if kb := s.engine.Knowledge(); kb != nil {
		corpus = kb.Conversations
	}
	scored := retrieval.RankScored(req.Query, corpus, req.Limit)
	examples := make([]knowledge.Conversation, len(scored))
	for i, sc := range scored {
		examples[i] = sc.Conversation
	}
	writeJSON(w, http.StatusOK, rankResponse{
		Results:   scored,
		Formatted: prompt.FormatExamples(examples),
	})
}

type platformResponse struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Context     string `json:"context"`
}

func (s *Server) handlePlatform(w http.ResponseWriter, r *http.Request) {
	kb := s.engine.Knowledge()
	key := chi.URLParam(r, "key")
	p, ok := kb.Platform(key)
	if !ok {
		writeErrorMessage(w, http.StatusNotFound, "unknown platform")
		return
	}
	writeJSON(w, http.StatusOK, platformResponse{
		Key:         p.Key,
		DisplayName: p.DisplayName,
		Context:     prompt.FormatPlatformContext(kb, key),
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, thread.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, orchestrator.ErrInvalidInput), errors.Is(err, orchestrator.ErrUnknownField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		writeErrorMessage(w, status, "internal error")
		return
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
