// Package http exposes the game over plain HTTP endpoints and a WebSocket
// realtime channel.
package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"brainplay/internal/app"
	"brainplay/internal/csvimport"
	"brainplay/internal/domain"
	"brainplay/internal/game"
	"github.com/gorilla/websocket"
)

// Options carries game pacing and lobby policy for new games.
type Options struct {
	QuestionTime         time.Duration
	ResultsTime          time.Duration
	AllowLateJoin        bool
	PenalizeWrongAnswers bool
}

type Handler struct {
	service  *app.GameService
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandler(service *app.GameService, opts Options) *Handler {
	if opts.QuestionTime <= 0 {
		opts.QuestionTime = game.DefaultQuestionTime
	}
	if opts.ResultsTime <= 0 {
		opts.ResultsTime = game.DefaultResultsTime
	}
	return &Handler{
		service: service,
		opts:    opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Routes wires the handler into a mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/games", h.handleGames)
	mux.HandleFunc("/games/leaderboard", h.handleLeaderboard)
	mux.HandleFunc("/games/results.csv", h.handleResultsCSV)
	mux.HandleFunc("/ws", h.ServeWS)
	return mux
}

// handleGames creates a game from an uploaded CSV question bank (POST) or
// looks up a game by PIN (GET).
func (h *Handler) handleGames(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createGame(w, r)
	case http.MethodGet:
		h.getGame(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	allowLateJoin := queryBool(r, "allowLateJoin", h.opts.AllowLateJoin)
	penalize := queryBool(r, "penalizeWrongAnswers", h.opts.PenalizeWrongAnswers)
	quiz, err := h.service.CreateGameFromCSV(r.Context(), r.Body, allowLateJoin, penalize)
	if err != nil {
		var verr *app.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": verr.Problems})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hostQuizView(quiz))
}

func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	quiz, ok, err := h.service.GetQuizByPin(r.Context(), pin)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, domain.ErrGameNotFound)
		return
	}
	writeJSON(w, http.StatusOK, playerQuizView(quiz))
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if _, ok, err := h.service.GetQuizByPin(r.Context(), pin); err != nil || !ok {
		if err != nil {
			writeError(w, err)
			return
		}
		writeError(w, domain.ErrGameNotFound)
		return
	}
	entries, err := h.service.Leaderboard(r.Context(), pin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

// handleResultsCSV streams the final standings as a CSV download.
func (h *Handler) handleResultsCSV(w http.ResponseWriter, r *http.Request) {
	pin := r.URL.Query().Get("pin")
	if _, ok, err := h.service.GetQuizByPin(r.Context(), pin); err != nil || !ok {
		if err != nil {
			writeError(w, err)
			return
		}
		writeError(w, domain.ErrGameNotFound)
		return
	}
	entries, err := h.service.Leaderboard(r.Context(), pin)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="results-`+pin+`.csv"`)
	if err := csvimport.WriteResults(w, entries); err != nil {
		log.Printf("write results csv for %s: %v", pin, err)
	}
}

func queryBool(r *http.Request, key string, fallback bool) bool {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrGameNotFound),
		errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNicknameTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrGameEnded):
		status = http.StatusGone
	case errors.Is(err, domain.ErrGameLocked):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrQuestionIndexOutOfBounds):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
