package scanner

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/sink"
	"github.com/maltedev/sorare-alert-bot/internal/watchlist"
)

type ImportResult struct {
	Slug     string        `json:"slug"`
	Rarity   models.Rarity `json:"rarity"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Error    string        `json:"error,omitempty"`
}

type BatchImportResult struct {
	Results  []ImportResult `json:"results"`
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
}

// ScanSalesHistory walks the player watchlist and records new sales. A failure
// for one player is logged and the walk continues.
func (o *Orchestrator) ScanSalesHistory(ctx context.Context) error {
	players := o.Watchlist.Players()
	o.logger.Info("sales scan started", "players", len(players))

	var rows [][]string
	for _, p := range players {
		added, skipped, err := o.importSales(ctx, p)
		if err != nil {
			o.logger.Error("sales fetch failed", "slug", p.Slug, "rarity", p.Rarity, "error", err)
		} else {
			rows = append(rows, salesRows(p, added)...)
			o.logger.Info("sales recorded", "slug", p.Slug, "imported", len(added), "skipped", skipped)
		}

		if err := o.SalesPause.Wait(ctx); err != nil {
			return err
		}
	}

	o.Sink.Append(ctx, sink.Sales, rows)
	o.logger.Info("sales scan finished", "rows", len(rows))
	return nil
}

// ImportEntitySales fetches and records sales for one player. The player does
// not have to be watched when a rarity is given; without one, the rarity of the
// watched entry is used.
func (o *Orchestrator) ImportEntitySales(ctx context.Context, slug string, rarity models.Rarity) (ImportResult, error) {
	result := ImportResult{Slug: slug, Rarity: rarity}

	w, ok := o.findPlayer(slug, rarity)
	if !ok {
		if rarity == "" {
			return result, fmt.Errorf("%w: player %s", watchlist.ErrNotFound, slug)
		}
		w = models.WatchEntity{
			Kind:        models.KindPlayer,
			Slug:        slug,
			DisplayName: models.DisplayNameFromSlug(slug),
			Rarity:      rarity,
		}
	}
	result.Rarity = w.Rarity

	added, skipped, err := o.importSales(ctx, w)
	if err != nil {
		return result, err
	}
	o.Sink.Append(ctx, sink.Sales, salesRows(w, added))

	result.Imported = len(added)
	result.Skipped = skipped
	return result, nil
}

// ImportAllSales imports sales for every watched player in order. Individual
// failures are collected in the result.
func (o *Orchestrator) ImportAllSales(ctx context.Context) (BatchImportResult, error) {
	var batch BatchImportResult

	players := o.Watchlist.Players()
	for i, p := range players {
		res, err := o.ImportEntitySales(ctx, p.Slug, p.Rarity)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return batch, err
			}
			res.Error = err.Error()
			batch.Failed++
			o.logger.Warn("import failed", "slug", p.Slug, "rarity", p.Rarity, "error", err)
		}
		batch.Results = append(batch.Results, res)
		batch.Imported += res.Imported
		batch.Skipped += res.Skipped

		if i < len(players)-1 {
			if err := o.ImportPause.Wait(ctx); err != nil {
				return batch, err
			}
		}
	}
	return batch, nil
}

func (o *Orchestrator) importSales(ctx context.Context, w models.WatchEntity) ([]models.SaleRecord, int, error) {
	sales, err := o.Source.FetchSalesHistory(ctx, w.Slug, w.Rarity)
	if err != nil {
		return nil, 0, err
	}
	added, skipped := o.Sales.Import(w.Key(), sales)
	return added, skipped, nil
}

func (o *Orchestrator) findPlayer(slug string, rarity models.Rarity) (models.WatchEntity, bool) {
	return o.Watchlist.FindKey(models.KindPlayer, models.Key{Slug: slug, Rarity: rarity})
}

func salesRows(w models.WatchEntity, sales []models.SaleRecord) [][]string {
	rows := make([][]string, 0, len(sales))
	for _, s := range sales {
		rows = append(rows, []string{
			s.Date.UTC().Format("2006-01-02"),
			w.DisplayName,
			w.Slug,
			string(w.Rarity),
			s.Season,
			s.Serial,
			strconv.FormatFloat(s.Price, 'f', 2, 64),
			s.Type,
			s.Buyer,
			s.Seller,
		})
	}
	return rows
}
