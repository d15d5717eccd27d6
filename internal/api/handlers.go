package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/sorare-alert-bot/internal/commands"
	"github.com/maltedev/sorare-alert-bot/internal/database"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

// Scanner is the orchestrator surface exposed over HTTP.
type Scanner interface {
	TriggerScan() error
	State() scanner.State
	Stats(ctx context.Context) models.Stats
	RequestImport(ctx context.Context, slug string, rarity models.Rarity) (scanner.ImportResult, error)
	RequestImportAll(ctx context.Context) (scanner.BatchImportResult, error)
}

// CommandRunner answers chat-style commands.
type CommandRunner interface {
	Handle(ctx context.Context, text string) commands.Reply
}

// OutboxMonitor reports the backlog of the alert outbox.
type OutboxMonitor interface {
	Backlog(ctx context.Context) (database.Backlog, error)
}

type Handlers struct {
	watchlist *watchlist.Store
	scanner   Scanner
	prices    *history.PriceStore
	sales     *history.SalesStore
	commands  CommandRunner
	outbox    OutboxMonitor
	logger    *slog.Logger

	importTimeout time.Duration
}

func NewHandlers(store *watchlist.Store, sc Scanner, prices *history.PriceStore, sales *history.SalesStore, cmds CommandRunner, logger *slog.Logger) *Handlers {
	return &Handlers{
		watchlist: store,
		scanner:   sc,
		prices:    prices,
		sales:     sales,
		commands:  cmds,
		logger:    logger.With("component", "api"),

		importTimeout: 30 * time.Minute,
	}
}

// WithImportTimeout bounds how long import and command requests may run.
func (h *Handlers) WithImportTimeout(d time.Duration) *Handlers {
	if d > 0 {
		h.importTimeout = d
	}
	return h
}

// WithOutbox enables outbox figures in the health check.
func (h *Handlers) WithOutbox(m OutboxMonitor) *Handlers {
	h.outbox = m
	return h
}

// Health reports liveness and, when an outbox is wired, its backlog.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if h.outbox != nil {
		backlog, err := h.outbox.Backlog(r.Context())
		if err != nil {
			h.logger.Warn("failed to read outbox backlog", "error", err)
		}
		health["outbox"] = backlog

		if backlog.Pending > 1000 {
			health["status"] = "warning"
			health["message"] = "High number of pending outbox events"
		}
		if backlog.DeadLetter > 100 {
			health["status"] = "error"
			health["message"] = "High number of dead letter events"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

// StatusResponse describes the running bot
type StatusResponse struct {
	Status       string         `json:"status"`
	State        scanner.State  `json:"state"`
	LastScan     *time.Time     `json:"lastScan"`
	TotalScans   int64          `json:"totalScans"`
	AlertsSent   int64          `json:"alertsSent"`
	Errors       int64          `json:"errors"`
	SeenListings int64          `json:"seenListings"`
	Watchlist    map[string]int `json:"watchlist"`
}

func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.scanner.Stats(r.Context())
	clubs, players := h.watchlist.Len()

	h.respondJSON(w, http.StatusOK, StatusResponse{
		Status:       "running",
		State:        h.scanner.State(),
		LastScan:     stats.LastScan,
		TotalScans:   stats.TotalScans,
		AlertsSent:   stats.AlertsSent,
		Errors:       stats.Errors,
		SeenListings: stats.SeenListings,
		Watchlist:    map[string]int{"clubs": clubs, "players": players},
	})
}

func (h *Handlers) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.watchlist.List())
}

// AddEntityRequest adds a player or a club
type AddEntityRequest struct {
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Rarity   string   `json:"rarity"`
	MaxPrice *float64 `json:"maxPrice"`
}

// WatchlistResponse is returned by every watchlist mutation
type WatchlistResponse struct {
	Success   bool                `json:"success"`
	Entity    *models.WatchEntity `json:"entity,omitempty"`
	Removed   int                 `json:"removed,omitempty"`
	Watchlist watchlist.Snapshot  `json:"watchlist"`
}

func (h *Handlers) AddEntity(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	var req AddEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Slug) == "" || req.Rarity == "" {
		h.respondError(w, http.StatusBadRequest, "slug and rarity are required")
		return
	}
	rarity, err := models.ParseRarity(req.Rarity)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unknown rarity "+req.Rarity)
		return
	}
	ceiling, ok := h.ceiling(w, req.MaxPrice)
	if !ok {
		return
	}

	entity, err := h.watchlist.Add(models.WatchEntity{
		Kind:        kind,
		Slug:        req.Slug,
		DisplayName: req.Name,
		Rarity:      rarity,
		Ceiling:     ceiling,
	})
	switch {
	case errors.Is(err, watchlist.ErrDuplicate):
		h.respondError(w, http.StatusConflict, string(kind)+" already on the watchlist")
		return
	case err != nil:
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("watch entity added", "kind", kind, "slug", entity.Slug, "rarity", entity.Rarity)
	h.respondJSON(w, http.StatusCreated, WatchlistResponse{Success: true, Entity: &entity, Watchlist: h.watchlist.List()})
}

func (h *Handlers) RemoveEntity(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")

	removed := h.watchlist.Remove(kind, slug)
	if removed == 0 {
		h.respondError(w, http.StatusNotFound, string(kind)+" not found")
		return
	}

	h.logger.Info("watch entity removed", "kind", kind, "slug", slug, "count", removed)
	h.respondJSON(w, http.StatusOK, WatchlistResponse{Success: true, Removed: removed, Watchlist: h.watchlist.List()})
}

// SetPriceRequest sets or clears (null) a ceiling
type SetPriceRequest struct {
	MaxPrice *float64 `json:"maxPrice"`
}

func (h *Handlers) SetPrice(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}

	var req SetPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ceiling, ok := h.ceiling(w, req.MaxPrice)
	if !ok {
		return
	}

	entity, err := h.watchlist.SetCeiling(kind, chi.URLParam(r, "slug"), ceiling)
	if err != nil {
		h.respondError(w, http.StatusNotFound, string(kind)+" not found")
		return
	}

	h.logger.Info("ceiling updated", "kind", kind, "slug", entity.Slug, "max_price", entity.Ceiling.String())
	h.respondJSON(w, http.StatusOK, WatchlistResponse{Success: true, Entity: &entity, Watchlist: h.watchlist.List()})
}

func (h *Handlers) TriggerScan(w http.ResponseWriter, r *http.Request) {
	err := h.scanner.TriggerScan()
	switch {
	case errors.Is(err, scanner.ErrScanInProgress):
		h.respondError(w, http.StatusConflict, "scan already in progress")
		return
	case err != nil:
		h.logger.Error("failed to queue scan", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "scan could not be started")
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"message": "scan started"})
}

// PricesResponse is the stored history of one watched entity
type PricesResponse struct {
	Kind    models.Kind         `json:"kind"`
	Player  string              `json:"player"`
	Rarity  models.Rarity       `json:"rarity"`
	Trend   history.Trend       `json:"trend"`
	History []models.PricePoint `json:"history"`
	Sales   []models.SaleRecord `json:"sales"`
}

// GetPrices serves the series of one watched entity. kind defaults to player;
// without a rarity the first entry with the slug is used.
func (h *Handlers) GetPrices(w http.ResponseWriter, r *http.Request) {
	kind := models.KindPlayer
	if raw := r.URL.Query().Get("kind"); raw != "" {
		parsed, err := models.ParseKind(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "unknown watchlist kind")
			return
		}
		kind = parsed
	}

	lookup := models.Key{Slug: chi.URLParam(r, "slug")}
	if raw := r.URL.Query().Get("rarity"); raw != "" {
		parsed, err := models.ParseRarity(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "unknown rarity "+raw)
			return
		}
		lookup.Rarity = parsed
	}

	entity, ok := h.watchlist.FindKey(kind, lookup)
	if !ok {
		h.respondError(w, http.StatusNotFound, string(kind)+" not found")
		return
	}

	key := entity.Key()
	h.respondJSON(w, http.StatusOK, PricesResponse{
		Kind:    entity.Kind,
		Player:  entity.DisplayName,
		Rarity:  entity.Rarity,
		Trend:   h.prices.Trend(key, 7*24*time.Hour),
		History: nonNil(h.prices.Series(key)),
		Sales:   nonNil(h.sales.All(key)),
	})
}

// MarketEntry is the latest observation for one watched entity
type MarketEntry struct {
	Kind         models.Kind   `json:"kind"`
	Slug         string        `json:"slug"`
	Name         string        `json:"name"`
	Rarity       models.Rarity `json:"rarity"`
	MinPrice     models.Price  `json:"minPrice"`
	MedianPrice  models.Price  `json:"medianPrice"`
	ListingCount int           `json:"listingsCount"`
	ChangePct    *float64      `json:"changePct"`
	UpdatedAt    *time.Time    `json:"updatedAt"`
}

func (h *Handlers) GetMarket(w http.ResponseWriter, r *http.Request) {
	snap := h.watchlist.List()
	entries := make([]MarketEntry, 0, len(snap.Clubs)+len(snap.Players))

	for _, e := range append(snap.Clubs, snap.Players...) {
		entry := MarketEntry{Kind: e.Kind, Slug: e.Slug, Name: e.DisplayName, Rarity: e.Rarity}
		if latest, ok := h.prices.Latest(e.Key()); ok {
			at := latest.Timestamp
			entry.MinPrice = latest.MinPrice
			entry.MedianPrice = latest.MedianPrice
			entry.ListingCount = latest.ListingCount
			entry.UpdatedAt = &at
			entry.ChangePct = h.prices.Trend(e.Key(), 7*24*time.Hour).ChangePct
		}
		entries = append(entries, entry)
	}

	h.respondJSON(w, http.StatusOK, entries)
}

func (h *Handlers) ImportSales(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var rarity models.Rarity
	if raw := r.URL.Query().Get("rarity"); raw != "" {
		parsed, err := models.ParseRarity(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "unknown rarity "+raw)
			return
		}
		rarity = parsed
	}

	res, err := h.scanner.RequestImport(r.Context(), slug, rarity)
	switch {
	case errors.Is(err, watchlist.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "player not found, pass a rarity to import an unwatched player")
		return
	case err != nil:
		h.logger.Error("import failed", "slug", slug, "error", err)
		h.respondError(w, http.StatusBadGateway, "import failed")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) ImportAllSales(w http.ResponseWriter, r *http.Request) {
	res, err := h.scanner.RequestImportAll(r.Context())
	if err != nil {
		h.logger.Error("batch import failed", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "import failed")
		return
	}
	h.respondJSON(w, http.StatusOK, res)
}

// CommandRequest carries one chat-style command line
type CommandRequest struct {
	Text string `json:"text"`
}

func (h *Handlers) RunCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		h.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	h.respondJSON(w, http.StatusOK, h.commands.Handle(r.Context(), req.Text))
}

func (h *Handlers) kind(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := models.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "unknown watchlist kind")
		return "", false
	}
	return kind, true
}

func (h *Handlers) ceiling(w http.ResponseWriter, v *float64) (models.Price, bool) {
	if v == nil {
		return models.UnknownPrice(), true
	}
	p := models.NewPrice(*v)
	if !p.Known() {
		h.respondError(w, http.StatusBadRequest, "maxPrice must be a positive number")
		return p, false
	}
	return p, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
