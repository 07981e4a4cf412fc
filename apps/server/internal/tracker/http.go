package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pumpkin-tracker/tally"

	"go.uber.org/zap"
)

const (
	maxPasteBytes   = 1 << 20
	maxPageSize     = 100
	emptyInputText  = "Please paste some giveaway data first!"
	noMatchesText   = "No winners found! Make sure the data is in the correct format."
	confirmHintText = "Confirm to clear all pumpkin tracking data."
)

type HTTPHandler struct {
	tracker *Tracker
	logger  *zap.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type pasteRequest struct {
	Text string `json:"text"`
}

type confirmClearRequest struct {
	Token string `json:"token"`
}

type leaderboardResponse struct {
	tally.Page
	Stats    tally.Stats `json:"stats"`
	Cap      int         `json:"cap"`
	Revision string      `json:"revision"`
}

type clearTicketResponse struct {
	ClearTicket
	Message string `json:"message"`
}

func NewHTTPHandler(t *Tracker, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{tracker: t, logger: logger.Named("http")}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/winners", h.handleLeaderboard)
	mux.HandleFunc("/api/winners/paste", h.handlePaste)
	mux.HandleFunc("/api/winners/export", h.handleExport)
	mux.HandleFunc("/api/winners/clear", h.handleClear)
	mux.HandleFunc("/api/winners/clear/confirm", h.handleConfirmClear)
}

func (h *HTTPHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, rev := h.tracker.Snapshot()
	etag := strconv.Quote(rev)
	if rev != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	q := ParseQuery(r)
	if rev != "" {
		w.Header().Set("ETag", etag)
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Page:     h.tracker.View(q),
		Stats:    h.tracker.Stats(),
		Cap:      tally.Cap,
		Revision: rev,
	})
}

func (h *HTTPHandler) handlePaste(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req pasteRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxPasteBytes)
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()
	out, err := h.tracker.Submit(ctx, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, tally.ErrEmptyInput):
			writeError(w, http.StatusBadRequest, emptyInputText)
		case errors.Is(err, tally.ErrNoMatches):
			writeError(w, http.StatusUnprocessableEntity, noMatchesText)
		default:
			h.logger.Error("submit failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "submit failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name, body, err := h.tracker.Export()
	if err != nil {
		h.logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *HTTPHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, clearTicketResponse{
		ClearTicket: h.tracker.RequestClear(),
		Message:     confirmHintText,
	})
}

func (h *HTTPHandler) handleConfirmClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req confirmClearRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()
	out, err := h.tracker.ConfirmClear(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		switch {
		case errors.Is(err, ErrConfirmationRequired):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrConfirmationInvalid):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "clear failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ParseQuery reads leaderboard view parameters from the URL.
func ParseQuery(r *http.Request) tally.Query {
	v := r.URL.Query()
	hide, _ := strconv.ParseBool(strings.TrimSpace(v.Get("hide_promoted")))
	return tally.Query{
		Search:       v.Get("search"),
		HidePromoted: hide,
		Page:         parsePositive(v.Get("page"), 1),
		PageSize:     min(parsePositive(v.Get("page_size"), 0), maxPageSize),
	}
}

func parsePositive(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
