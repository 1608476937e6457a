package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"alertcast/internal/alerts"
	"alertcast/internal/api"
	"alertcast/internal/config"
	"alertcast/internal/logging"
	"alertcast/internal/queue"
)

type apiServer struct {
	bind     string
	token    string
	logger   *slog.Logger
	daemon   *Daemon
	queueSvc *api.QueueService
	pageSize int

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:     bind,
		token:    strings.TrimSpace(cfg.Paths.APIToken),
		logger:   logger,
		daemon:   d,
		queueSvc: api.NewQueueService(d.store),
		pageSize: cfg.Queue.HistoryPageSize,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.protect(srv.handleStatus))
	mux.HandleFunc("/api/queue", srv.protect(srv.handleQueue))
	mux.HandleFunc("/api/queue/count", srv.protect(srv.handleQueueCount))
	mux.HandleFunc("/api/queue/history", srv.protect(srv.handleQueueHistory))
	mux.HandleFunc("/api/queue/", srv.protect(srv.handleQueueEntry))
	mux.HandleFunc("/api/pause", srv.protect(srv.handlePause))
	mux.HandleFunc("/api/trigger/", srv.protect(srv.handleTrigger))
	mux.HandleFunc("/api/queue/clear-completed", srv.protect(srv.handleClearCompleted))
	mux.HandleFunc("/api/sweep", srv.protect(srv.handleSweep))
	mux.HandleFunc("/api/stats/leaderboard", srv.protect(srv.handleLeaderboard))
	mux.HandleFunc("/api/alerts", srv.protect(srv.handleAlerts))
	mux.HandleFunc("/api/notifications/test", srv.protect(srv.handleTestNotification))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) protect(next http.HandlerFunc) http.HandlerFunc {
	return authMiddleware(s.token, next)
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", slog.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Paused:       status.Paused,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		QueueStats:   api.MergeQueueStats(status.QueueStats),
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", trimmed))
			return
		}
		statuses = append(statuses, status)
	}

	entries, err := s.queueSvc.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Entries: entries})
}

func (s *apiServer) handleQueueCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.queueSvc.Count(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueCountResponse{Count: count})
}

func (s *apiServer) handleQueueHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", s.pageSize)
	entries, err := s.queueSvc.History(r.Context(), page, pageSize)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueListResponse{Entries: entries})
}

// handleQueueEntry serves /api/queue/{id} and /api/queue/{id}/complete.
func (s *apiServer) handleQueueEntry(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue entry id")
		return
	}

	switch {
	case action == "complete" && r.Method == http.MethodPost:
		entry, won, err := s.daemon.CompleteEntry(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !won {
			// Someone else already completed it, or it was never playing.
			s.writeJSON(w, http.StatusOK, map[string]bool{"completed": false})
			return
		}
		s.daemon.MediaEnded(r.Context(), id)
		s.writeJSON(w, http.StatusOK, api.QueueEntryResponse{Entry: api.FromQueueEntry(entry)})
	case action == "" && r.Method == http.MethodGet:
		entry, err := s.queueSvc.Describe(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entry == nil {
			s.writeError(w, http.StatusNotFound, "queue entry not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueEntryResponse{Entry: *entry})
	case action == "" && r.Method == http.MethodDelete:
		removed, err := s.daemon.RemoveEntry(r.Context(), id)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "queue entry not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handlePause(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		paused, err := s.daemon.IsPaused(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.PauseStateResponse{Paused: paused})
	case http.MethodPut:
		var body api.PauseStateResponse
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid pause payload")
			return
		}
		if err := s.daemon.SetPaused(r.Context(), body.Paused); err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.PauseStateResponse{Paused: body.Paused})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTrigger maps a human-readable alert slug to an enqueue call, the way
// browser-source URLs invoke alerts.
func (s *apiServer) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/trigger/"), "/")
	if slug == "" {
		s.writeError(w, http.StatusBadRequest, "missing alert slug")
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	giftCount := int64(queryInt(r, "gift_count", 0))

	entries, err := s.daemon.Trigger(r.Context(), slug, username, giftCount)
	if errors.Is(err, alerts.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TriggerResponse{Entries: api.FromQueueEntries(entries)})
}

func (s *apiServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	removed, err := s.daemon.ClearCompleted(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearCompletedResponse{Removed: removed})
}

// handleSweep runs one reconciliation pass on demand, outside the timer.
func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.Sweep(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.SweepResponse{
		Promoted:       summary.Promoted,
		Expired:        summary.Expired,
		Stale:          summary.Stale,
		ForceCompleted: summary.ForceCompleted,
	})
}

func (s *apiServer) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.daemon.TestNotification(r.Context()); err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (s *apiServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := queryInt(r, "limit", 10)
	visible, records, err := s.daemon.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LeaderboardResponse{
		Visible: visible,
		Entries: api.FromGiftStats(records),
	})
}

func (s *apiServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		defs, err := s.daemon.ListAlerts(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		dtos := make([]api.AlertDefinition, 0, len(defs))
		for _, def := range defs {
			dtos = append(dtos, api.FromDefinition(def))
		}
		s.writeJSON(w, http.StatusOK, api.AlertListResponse{Alerts: dtos})
	case http.MethodPost:
		var dto api.AlertDefinition
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid alert payload")
			return
		}
		def := &alerts.Definition{
			ID:              dto.ID,
			Slug:            dto.Slug,
			Title:           dto.Title,
			MediaPath:       dto.MediaPath,
			MediaKind:       alerts.MediaKind(dto.MediaKind),
			DurationSeconds: dto.DurationSeconds,
			IsGiftAlert:     dto.IsGiftAlert,
			RepeatCount:     dto.RepeatCount,
			RepeatDelay:     time.Duration(dto.RepeatDelayMS) * time.Millisecond,
		}
		if err := s.daemon.SaveAlert(r.Context(), def); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromDefinition(def))
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
