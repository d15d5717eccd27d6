package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/ledger"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/notify"
	"github.com/maltedev/sorare-alert-bot/internal/queue"
	"github.com/maltedev/sorare-alert-bot/internal/ratelimit"
	"github.com/maltedev/sorare-alert-bot/internal/scraper"
	"github.com/maltedev/sorare-alert-bot/internal/sink"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

var ErrScanInProgress = errors.New("scan already in progress")

// ListingSource fetches live listings and completed sales.
type ListingSource interface {
	FetchPlayerListings(ctx context.Context, r scraper.Renderer, slug string, rarity models.Rarity) []models.Listing
	FetchClubListings(ctx context.Context, r scraper.Renderer, slug string, rarity models.Rarity) []models.Listing
	FetchSalesHistory(ctx context.Context, slug string, rarity models.Rarity) ([]models.SaleRecord, error)
}

// Session is a rendering session shared by every fetch of one cycle.
type Session interface {
	scraper.Renderer
	Close() error
}

type SessionFactory func(ctx context.Context) (Session, error)

type Dispatcher interface {
	Dispatch(ctx context.Context, p notify.Payload) bool
}

type RowSink interface {
	Append(ctx context.Context, destination string, rows [][]string)
}

// Deps are the collaborators of the orchestrator.
type Deps struct {
	Watchlist *watchlist.Store
	Ledger    ledger.Ledger
	Prices    *history.PriceStore
	Sales     *history.SalesStore
	Source    ListingSource
	Sessions  SessionFactory
	Notifier  Dispatcher
	Sink      RowSink
	Formatter *notify.Formatter
	Queue     queue.Queue

	EntityPause ratelimit.RateLimiter
	SalesPause  ratelimit.RateLimiter
	ImportPause ratelimit.RateLimiter
}

type Orchestrator struct {
	Deps

	logger   *slog.Logger
	now      func() time.Time
	state    atomic.Int32
	scanning atomic.Bool

	mu    sync.Mutex
	stats models.Stats
}

func New(deps Deps, logger *slog.Logger) *Orchestrator {
	if deps.Queue == nil {
		deps.Queue = queue.NewInMemoryQueue()
	}
	if deps.Formatter == nil {
		deps.Formatter = notify.NewFormatter()
	}
	if deps.EntityPause == nil {
		deps.EntityPause = ratelimit.NewFixed(0)
	}
	if deps.SalesPause == nil {
		deps.SalesPause = ratelimit.NewFixed(0)
	}
	if deps.ImportPause == nil {
		deps.ImportPause = ratelimit.NewFixed(0)
	}

	return &Orchestrator{
		Deps:   deps,
		logger: logger.With("component", "scanner"),
		now:    time.Now,
	}
}

// State returns the current market scan phase.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Stats returns a copy of the process counters.
func (o *Orchestrator) Stats(ctx context.Context) models.Stats {
	o.mu.Lock()
	s := o.stats
	o.mu.Unlock()

	if n, err := o.Ledger.Len(ctx); err == nil {
		s.SeenListings = n
	}
	return s
}

func (o *Orchestrator) count(f func(s *models.Stats)) {
	o.mu.Lock()
	f(&o.stats)
	o.mu.Unlock()
}

// pending collects the rows a cycle writes back.
type pending struct {
	timeline [][]string
	listings [][]string
}

// ScanMarket runs one market cycle: clubs first, then players, each in
// watchlist order. A failed cycle is counted and logged; it never panics.
func (o *Orchestrator) ScanMarket(ctx context.Context) (err error) {
	o.scanning.Store(true)
	started := o.now()
	o.count(func(s *models.Stats) {
		s.LastScan = &started
		s.TotalScans++
	})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scan panicked: %v", r)
		}
		if err != nil {
			o.setState(StateFailed)
			o.count(func(s *models.Stats) { s.Errors++ })
			o.logger.Error("market scan failed", "error", err)
		}
		o.setState(StateIdle)
		o.scanning.Store(false)
	}()

	snapshot := o.Watchlist.List()
	o.logger.Info("market scan started", "clubs", len(snapshot.Clubs), "players", len(snapshot.Players))

	o.setState(StateSessionOpen)
	session, err := o.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to open rendering session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			o.logger.Warn("failed to close rendering session", "error", cerr)
		}
	}()

	var rows pending

	o.setState(StateScanningClubs)
	for _, club := range snapshot.Clubs {
		if err := o.scanEntity(ctx, session, club, &rows); err != nil {
			return err
		}
	}

	o.setState(StateScanningPlayers)
	for _, player := range snapshot.Players {
		if err := o.scanEntity(ctx, session, player, &rows); err != nil {
			return err
		}
	}

	o.setState(StateWriteback)
	o.Sink.Append(ctx, sink.PriceTimeline, rows.timeline)
	o.Sink.Append(ctx, sink.Listings, rows.listings)

	seen, _ := o.Ledger.Len(ctx)
	o.logger.Info("market scan finished",
		"duration", o.now().Sub(started).String(),
		"seen_listings", seen)
	return nil
}

// scanEntity processes one watched entity and then pauses. Only context
// cancellation and ledger failures abort the cycle.
func (o *Orchestrator) scanEntity(ctx context.Context, r scraper.Renderer, w models.WatchEntity, rows *pending) error {
	var listings []models.Listing
	if w.Kind == models.KindClub {
		listings = o.Source.FetchClubListings(ctx, r, w.Slug, w.Rarity)
	} else {
		listings = o.Source.FetchPlayerListings(ctx, r, w.Slug, w.Rarity)
	}

	at := o.now()
	point := history.Summarize(listings, at)
	o.Prices.Append(w.Key(), point)
	if point.ListingCount > 0 {
		rows.timeline = append(rows.timeline, timelineRow(w, point))
	}

	o.logger.Info("entity scanned",
		"kind", w.Kind,
		"slug", w.Slug,
		"rarity", w.Rarity,
		"listings", len(listings),
		"min_price", point.MinPrice.String())

	for _, l := range listings {
		added, err := o.Ledger.AddIfAbsent(ctx, models.SeenID(w.Kind, l.ItemID))
		if err != nil {
			return fmt.Errorf("failed to record listing %s: %w", l.ItemID, err)
		}
		if !added {
			continue
		}
		rows.listings = append(rows.listings, listingRow(w, l, len(listings), at))

		if !w.Eligible(l.Price) {
			o.logger.Debug("listing above ceiling", "slug", w.Slug, "item_id", l.ItemID, "price", l.Price.String())
			continue
		}

		payload := o.Formatter.FormatListing(l, w, w.Ceiling.Known())
		if o.Notifier.Dispatch(ctx, payload) {
			o.count(func(s *models.Stats) { s.AlertsSent++ })
			o.logger.Info("alert sent", "slug", w.Slug, "item_id", l.ItemID, "price", l.Price.String())
		}
	}

	return o.EntityPause.Wait(ctx)
}

func timelineRow(w models.WatchEntity, p models.PricePoint) []string {
	return []string{
		p.Timestamp.UTC().Format(time.RFC3339),
		w.DisplayName,
		w.Slug,
		string(w.Rarity),
		cell(p.MinPrice),
		cell(p.MedianPrice),
		strconv.Itoa(p.ListingCount),
		string(w.Kind),
	}
}

func listingRow(w models.WatchEntity, l models.Listing, total int, at time.Time) []string {
	name := w.DisplayName
	if l.SubjectName != "" {
		name = l.SubjectName
	}
	at = at.UTC()
	return []string{
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		name,
		w.Slug,
		string(w.Rarity),
		cell(l.Price),
		strconv.Itoa(total),
		l.ItemID,
	}
}

func cell(p models.Price) string {
	if !p.Known() {
		return ""
	}
	return p.String()
}
