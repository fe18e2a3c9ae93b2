package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/foxseedlab/kaiwarank/internal/config"
	"github.com/foxseedlab/kaiwarank/internal/observability"
	"github.com/foxseedlab/kaiwarank/internal/ranking"
	"github.com/foxseedlab/kaiwarank/internal/repository"
)

// Server is the read API behind the public dashboard. Every scoring
// endpoint is a pure projection; only registration completion writes.
type Server struct {
	cfg      *config.Config
	rankings *ranking.Service
	repo     repository.Repository
	metrics  *observability.Metrics
}

func New(cfg *config.Config, rankings *ranking.Service, repo repository.Repository, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:      cfg,
		rankings: rankings,
		repo:     repo,
		metrics:  metrics,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/ranking", s.handleRanking)
	r.Get("/api/stats", s.handleStats)
	r.Get("/api/guilds/{guildID}/stats", s.handleGuildStats)
	r.Get("/api/servers", s.handleServers)
	r.Post("/api/register", s.handleCompleteRegistration)

	// Destructive reset endpoint, development environments only.
	if s.cfg.IsDevelopment() {
		r.Post("/api/admin/clear", s.handleClearAllData)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"status":    "online",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	ranked, err := s.rankings.Ranking(r.Context())
	if err != nil {
		slog.Error("ranking query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "ranking_failed", "failed to compute ranking")
		return
	}
	if ranked == nil {
		ranked = []ranking.GuildRanking{}
	}
	respondData(w, http.StatusOK, ranked)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rankings.GlobalStats(r.Context())
	if err != nil {
		slog.Error("global stats query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "stats_failed", "failed to compute statistics")
		return
	}
	respondData(w, http.StatusOK, stats)
}

type guildStatsResponse struct {
	Participating bool `json:"participating"`
	ranking.GuildStats
}

func (s *Server) handleGuildStats(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if guildID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "guild id is required")
		return
	}

	guild, err := s.repo.GetGuild(r.Context(), guildID)
	if err != nil {
		slog.Error("guild lookup failed", "error", err, "guild_id", guildID)
		respondError(w, http.StatusInternalServerError, "stats_failed", "failed to compute statistics")
		return
	}
	stats, err := s.rankings.GuildStats(r.Context(), guildID)
	if err != nil {
		slog.Error("guild stats query failed", "error", err, "guild_id", guildID)
		respondError(w, http.StatusInternalServerError, "stats_failed", "failed to compute statistics")
		return
	}

	respondData(w, http.StatusOK, guildStatsResponse{
		Participating: guild != nil,
		GuildStats:    stats,
	})
}

type serverEntry struct {
	GuildID            string    `json:"guildId"`
	GuildName          string    `json:"guildName"`
	TotalScore         float64   `json:"totalScore"`
	ConversationsCount int       `json:"conversationsCount"`
	LastUpdated        time.Time `json:"lastUpdated"`
}

func (s *Server) handleServers(w http.ResponseWriter, r *http.Request) {
	guilds, err := s.repo.ListGuilds(r.Context())
	if err != nil {
		slog.Error("guild list query failed", "error", err)
		respondError(w, http.StatusInternalServerError, "servers_failed", "failed to list servers")
		return
	}
	entries := make([]serverEntry, 0, len(guilds))
	for _, g := range guilds {
		entries = append(entries, serverEntry{
			GuildID:            g.GuildID,
			GuildName:          g.GuildName,
			TotalScore:         g.TotalScore,
			ConversationsCount: g.ConversationsCount,
			LastUpdated:        g.LastUpdated,
		})
	}
	respondData(w, http.StatusOK, entries)
}

type completeRegistrationRequest struct {
	Token string `json:"token"`
}

type completeRegistrationResponse struct {
	GuildID   string `json:"guildId"`
	GuildName string `json:"guildName"`
	InviteURL string `json:"inviteUrl"`
}

func (s *Server) handleCompleteRegistration(w http.ResponseWriter, r *http.Request) {
	var req completeRegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.Token = strings.ToUpper(strings.TrimSpace(req.Token))
	if req.Token == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	reg, err := s.repo.GetRegistrationByToken(r.Context(), req.Token)
	if err != nil {
		slog.Error("registration lookup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "registration_failed", "failed to look up registration")
		return
	}
	if reg == nil {
		respondError(w, http.StatusNotFound, "unknown_token", "no registration matches this token")
		return
	}
	if reg.Status == repository.RegistrationStatusCompleted {
		respondError(w, http.StatusConflict, "already_completed", "this registration is already completed")
		return
	}
	if time.Now().After(reg.ExpiresAt) {
		respondError(w, http.StatusGone, "token_expired", "this registration token has expired")
		return
	}

	if err := s.repo.CompleteRegistration(r.Context(), reg.ID); err != nil {
		slog.Error("registration completion failed", "error", err, "registration_id", reg.ID)
		respondError(w, http.StatusInternalServerError, "registration_failed", "failed to complete registration")
		return
	}
	slog.Info("registration completed", "guild_id", reg.GuildID, "registration_id", reg.ID)

	respondData(w, http.StatusOK, completeRegistrationResponse{
		GuildID:   reg.GuildID,
		GuildName: reg.GuildName,
		InviteURL: reg.InviteURL,
	})
}

func (s *Server) handleClearAllData(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.ClearAllData(r.Context()); err != nil {
		slog.Error("data reset failed", "error", err)
		respondError(w, http.StatusInternalServerError, "clear_failed", "failed to clear data")
		return
	}
	slog.Warn("all scoring data cleared")
	respondData(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, dataResponse{Success: true, Data: data})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}
