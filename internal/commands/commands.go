package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maltedev/sorare-alert-bot/internal/chart"
	"github.com/maltedev/sorare-alert-bot/internal/history"
	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/notify"
	"github.com/maltedev/sorare-alert-bot/internal/parser"
	"github.com/maltedev/sorare-alert-bot/internal/scanner"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

const (
	colorUp   = 0xEF4444
	colorDown = 0x22C55E
	colorFlat = 0x6B7280

	defaultHistoryDays = 30
	trendWindow        = 7 * 24 * time.Hour
)

// Scanner is the part of the orchestrator the commands drive.
type Scanner interface {
	TriggerScan() error
	Stats(ctx context.Context) models.Stats
	RequestImport(ctx context.Context, slug string, rarity models.Rarity) (scanner.ImportResult, error)
	RequestImportAll(ctx context.Context) (scanner.BatchImportResult, error)
}

// Reply is what a command answers: plain text, an embed, or both.
type Reply struct {
	Text  string          `json:"text,omitempty"`
	Embed *notify.Payload `json:"embed,omitempty"`
}

type Handler struct {
	watchlist *watchlist.Store
	scanner   Scanner
	prices    *history.PriceStore
	sales     *history.SalesStore
	formatter *notify.Formatter
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(store *watchlist.Store, sc Scanner, prices *history.PriceStore, sales *history.SalesStore, logger *slog.Logger) *Handler {
	return &Handler{
		watchlist: store,
		scanner:   sc,
		prices:    prices,
		sales:     sales,
		formatter: notify.NewFormatter(),
		logger:    logger.With("component", "commands"),
		now:       time.Now,
	}
}

// Handle runs one command line such as "/addplayer brice-samba super_rare 50".
func (h *Handler) Handle(ctx context.Context, text string) Reply {
	args := strings.Fields(text)
	if len(args) == 0 {
		return h.help()
	}
	name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
	args = args[1:]

	h.logger.Debug("command received", "command", name, "args", len(args))

	switch name {
	case "watchlist":
		return h.list()
	case "addplayer":
		return h.add(models.KindPlayer, args)
	case "addclub":
		return h.add(models.KindClub, args)
	case "removeplayer":
		return h.remove(models.KindPlayer, args)
	case "removeclub":
		return h.remove(models.KindClub, args)
	case "setprice":
		return h.setPrice(args)
	case "stats":
		return h.stats(ctx)
	case "scan":
		return h.scan()
	case "price":
		return h.price(args)
	case "history":
		return h.history(args)
	case "market":
		return h.market()
	case "import":
		return h.importSales(ctx, args)
	case "importall":
		return h.importAll(ctx)
	default:
		return h.help()
	}
}

func (h *Handler) help() Reply {
	return text("Commands: /watchlist, /addplayer <slug> <rarity> [max], /removeplayer <slug>, " +
		"/addclub <slug> <rarity> [max], /removeclub <slug>, /setprice <slug> <max|none>, /stats, /scan, " +
		"/price <slug>, /history <slug> [days], /market, /import <slug> [rarity], /importall")
}

func (h *Handler) list() Reply {
	snap := h.watchlist.List()
	if len(snap.Clubs)+len(snap.Players) == 0 {
		return text("The watchlist is empty.")
	}

	var b strings.Builder
	b.WriteString("Clubs:\n")
	writeEntries(&b, snap.Clubs)
	b.WriteString("Players:\n")
	writeEntries(&b, snap.Players)
	return text(strings.TrimRight(b.String(), "\n"))
}

func writeEntries(b *strings.Builder, entries []models.WatchEntity) {
	if len(entries) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(b, "  %s (%s) - %s\n", e.DisplayName, strings.ToUpper(string(e.Rarity)), ceilingText(e.Ceiling))
	}
}

func ceilingText(p models.Price) string {
	if !p.Known() {
		return "any price"
	}
	return "max " + notify.Money(p) + "€"
}

func (h *Handler) add(kind models.Kind, args []string) Reply {
	if len(args) < 2 {
		return text(fmt.Sprintf("Usage: /add%s <slug> <rarity> [max]", kind))
	}

	rarity, err := models.ParseRarity(args[1])
	if err != nil {
		return text(fmt.Sprintf("Unknown rarity %q. Use one of: %s.", args[1], rarityList()))
	}

	ceiling := models.UnknownPrice()
	if len(args) > 2 {
		p, ok := parseCeiling(args[2])
		if !ok {
			return text(fmt.Sprintf("%q is not a valid price.", args[2]))
		}
		ceiling = p
	}

	entity, err := h.watchlist.Add(models.WatchEntity{Kind: kind, Slug: strings.ToLower(args[0]), Rarity: rarity, Ceiling: ceiling})
	switch {
	case errors.Is(err, watchlist.ErrDuplicate):
		return text(fmt.Sprintf("%s (%s) is already on the watchlist.", args[0], rarity))
	case err != nil:
		return text("Could not add " + args[0] + ".")
	}

	return text(fmt.Sprintf("Added %s (%s), %s.", entity.DisplayName, strings.ToUpper(string(entity.Rarity)), ceilingText(entity.Ceiling)))
}

func (h *Handler) remove(kind models.Kind, args []string) Reply {
	if len(args) < 1 {
		return text(fmt.Sprintf("Usage: /remove%s <slug>", kind))
	}

	slug := strings.ToLower(args[0])
	if h.watchlist.Remove(kind, slug) > 0 {
		return text(slug + " removed from the watchlist.")
	}
	return text(slug + " was not on the watchlist." + h.suggestion(kind, slug))
}

func (h *Handler) suggestion(kind models.Kind, slug string) string {
	if s, ok := h.watchlist.Suggest(kind, slug); ok {
		return " Did you mean " + s + "?"
	}
	return ""
}

func (h *Handler) setPrice(args []string) Reply {
	if len(args) < 2 {
		return text("Usage: /setprice <slug> <max|none>")
	}

	slug := strings.ToLower(args[0])
	ceiling, ok := parseCeiling(args[1])
	if !ok {
		return text(fmt.Sprintf("%q is not a valid price.", args[1]))
	}

	entity, err := h.watchlist.SetCeiling(models.KindPlayer, slug, ceiling)
	if err != nil {
		entity, err = h.watchlist.SetCeiling(models.KindClub, slug, ceiling)
	}
	if err != nil {
		return text(slug + " is not on the watchlist. Use /addplayer first." + h.suggestion(models.KindPlayer, slug))
	}
	return text(fmt.Sprintf("Ceiling for %s set to %s.", entity.DisplayName, ceilingText(entity.Ceiling)))
}

// parseCeiling accepts a positive amount, or "none" to clear the ceiling.
func parseCeiling(s string) (models.Price, bool) {
	if strings.EqualFold(s, "none") {
		return models.UnknownPrice(), true
	}
	v, ok := parser.ParseAmount(s)
	if !ok {
		return models.UnknownPrice(), false
	}
	p := models.NewPrice(v)
	return p, p.Known()
}

func (h *Handler) stats(ctx context.Context) Reply {
	clubs, players := h.watchlist.Len()
	p := h.formatter.FormatStats(h.scanner.Stats(ctx), clubs, players)
	return Reply{Embed: &p}
}

func (h *Handler) scan() Reply {
	err := h.scanner.TriggerScan()
	switch {
	case errors.Is(err, scanner.ErrScanInProgress):
		return text("A scan is already in progress.")
	case err != nil:
		h.logger.Error("failed to queue scan", "error", err)
		return text("The scan could not be started.")
	}
	return text("Scan started.")
}

func (h *Handler) player(args []string, usage string) (models.WatchEntity, *Reply) {
	if len(args) < 1 {
		r := text(usage)
		return models.WatchEntity{}, &r
	}
	slug := strings.ToLower(args[0])
	w, ok := h.watchlist.Find(models.KindPlayer, slug)
	if !ok {
		r := text(slug + " is not on the watchlist. Add it first with /addplayer." + h.suggestion(models.KindPlayer, slug))
		return models.WatchEntity{}, &r
	}
	return w, nil
}

func (h *Handler) price(args []string) Reply {
	w, fail := h.player(args, "Usage: /price <slug>")
	if fail != nil {
		return *fail
	}

	latest, ok := h.prices.Latest(w.Key())
	if !ok {
		return text("No data yet for " + w.DisplayName + ". Wait for the next scan.")
	}

	trend := h.prices.Trend(w.Key(), trendWindow)
	change := 0.0
	if trend.ChangePct != nil {
		change = *trend.ChangePct
	}

	p := notify.Payload{
		Title: w.DisplayName,
		Color: trendColor(change),
		Fields: []notify.Field{
			{Name: "Current price (€)", Value: notify.Money(latest.MinPrice), Inline: true},
			{Name: "7d trend", Value: percent(change), Inline: true},
			{Name: "Listings", Value: strconv.Itoa(latest.ListingCount), Inline: true},
			{Name: "7d min (€)", Value: notify.Money(trend.Min), Inline: true},
			{Name: "7d max (€)", Value: notify.Money(trend.Max), Inline: true},
			{Name: notify.FieldRarity, Value: strings.ToUpper(string(w.Rarity)), Inline: true},
		},
		Footer:    "Last update: " + latest.Timestamp.UTC().Format("2006-01-02 15:04 UTC"),
		Timestamp: h.now(),
		Kind:      w.Kind,
		Slug:      w.Slug,
		Rarity:    w.Rarity,
	}
	return Reply{Embed: &p}
}

func (h *Handler) history(args []string) Reply {
	w, fail := h.player(args, "Usage: /history <slug> [days]")
	if fail != nil {
		return *fail
	}

	days := defaultHistoryDays
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return text(fmt.Sprintf("%q is not a valid number of days.", args[1]))
		}
		days = n
	}

	cutoff := h.now().Add(-time.Duration(days) * 24 * time.Hour)
	points := h.prices.Since(w.Key(), cutoff)
	sales := h.sales.Since(w.Key(), cutoff)
	if len(points) < 2 && len(sales) < 2 {
		return text("Not enough data to draw a chart yet. Wait for a few scans.")
	}

	title := w.DisplayName + " - " + strings.ToUpper(string(w.Rarity))
	url, err := chart.HistoryURL(title, points, sales, days)
	if err != nil {
		h.logger.Error("failed to build chart", "slug", w.Slug, "error", err)
		return text("The chart could not be generated.")
	}

	p := notify.Payload{
		Title:       "History - " + w.DisplayName,
		Description: "Orange line: listing floor price\nPurple points: completed sales",
		ImageURL:    url,
		Color:       notify.ColorClub,
		Footer:      fmt.Sprintf("Period: %d days", days),
		Timestamp:   h.now(),
		Kind:        w.Kind,
		Slug:        w.Slug,
		Rarity:      w.Rarity,
	}
	return Reply{Embed: &p}
}

func (h *Handler) market() Reply {
	var fields []notify.Field
	for _, w := range h.watchlist.Players() {
		series := h.prices.Series(w.Key())
		if len(series) == 0 {
			fields = append(fields, notify.Field{Name: w.DisplayName, Value: "No data", Inline: true})
			continue
		}

		latest := series[len(series)-1]
		arrow := "="
		if len(series) > 1 {
			prev := series[len(series)-2]
			if latest.MinPrice.Known() && prev.MinPrice.Known() {
				switch {
				case latest.MinPrice.Amount() > prev.MinPrice.Amount():
					arrow = "↑"
				case latest.MinPrice.Amount() < prev.MinPrice.Amount():
					arrow = "↓"
				}
			}
		}

		fields = append(fields, notify.Field{
			Name:   arrow + " " + w.DisplayName,
			Value:  fmt.Sprintf("%s € | %d listings", notify.Money(latest.MinPrice), latest.ListingCount),
			Inline: true,
		})
	}
	if len(fields) == 0 {
		fields = []notify.Field{{Name: "No data", Value: "Wait for the next scan"}}
	}

	p := notify.Payload{
		Title:     "Market summary",
		Color:     notify.ColorClub,
		Fields:    fields,
		Footer:    "Updated " + h.now().UTC().Format("2006-01-02 15:04 UTC"),
		Timestamp: h.now(),
	}
	return Reply{Embed: &p}
}

func (h *Handler) importSales(ctx context.Context, args []string) Reply {
	if len(args) < 1 {
		return text("Usage: /import <slug> [rarity]")
	}

	slug := strings.ToLower(args[0])
	rarity := models.RaritySuperRare
	if w, ok := h.watchlist.Find(models.KindPlayer, slug); ok {
		rarity = w.Rarity
	}
	if len(args) > 1 {
		r, err := models.ParseRarity(args[1])
		if err != nil {
			return text(fmt.Sprintf("Unknown rarity %q. Use one of: %s.", args[1], rarityList()))
		}
		rarity = r
	}

	res, err := h.scanner.RequestImport(ctx, slug, rarity)
	if err != nil {
		h.logger.Error("import failed", "slug", slug, "rarity", rarity, "error", err)
		return text("The import for " + slug + " failed.")
	}

	w := models.WatchEntity{Kind: models.KindPlayer, Slug: slug, DisplayName: models.DisplayNameFromSlug(slug), Rarity: rarity}
	p := h.formatter.FormatImport(w, res.Imported, res.Skipped)
	return Reply{Embed: &p}
}

func (h *Handler) importAll(ctx context.Context) Reply {
	batch, err := h.scanner.RequestImportAll(ctx)
	if err != nil {
		h.logger.Error("batch import failed", "error", err)
		return text("The import could not be completed.")
	}

	lines := make([]string, 0, len(batch.Results))
	for _, r := range batch.Results {
		mark := "ok"
		if r.Error != "" {
			mark = "failed"
		}
		lines = append(lines, fmt.Sprintf("%s %s: %d sales", mark, r.Slug, r.Imported))
	}

	p := notify.Payload{
		Title:       "Import finished",
		Description: strings.Join(lines, "\n"),
		Color:       colorDown,
		Fields: []notify.Field{
			{Name: "Imported", Value: strconv.Itoa(batch.Imported), Inline: true},
			{Name: "Skipped", Value: strconv.Itoa(batch.Skipped), Inline: true},
			{Name: "Failed", Value: strconv.Itoa(batch.Failed), Inline: true},
		},
		Footer:    notify.Footer,
		Timestamp: h.now(),
	}
	return Reply{Embed: &p}
}

func text(s string) Reply {
	return Reply{Text: s}
}

func rarityList() string {
	names := make([]string, len(models.Rarities))
	for i, r := range models.Rarities {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func trendColor(change float64) int {
	switch {
	case change > 0:
		return colorUp
	case change < 0:
		return colorDown
	}
	return colorFlat
}

func percent(change float64) string {
	s := decimal.NewFromFloat(change).StringFixed(1) + "%"
	if change > 0 {
		return "+" + s
	}
	return s
}
