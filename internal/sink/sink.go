package sink

import (
	"context"
	"errors"
	"log/slog"
)

// Destinations and their header rows.
const (
	Listings      = "Listings"
	PriceTimeline = "PriceTimeline"
	Sales         = "Sales"
)

var Headers = map[string][]string{
	Listings:      {"Date", "Time", "Name", "Slug", "Rarity", "Price_EUR", "Listings", "Card_Slug"},
	PriceTimeline: {"Timestamp", "Name", "Slug", "Rarity", "Min", "Median", "Listings", "Kind"},
	Sales:         {"Date", "Name", "Slug", "Rarity", "Season", "Serial", "Price_EUR", "Type", "Buyer", "Seller"},
}

var ErrUnknownDestination = errors.New("unknown destination")

// Writer is implemented by every backend that can append rows.
type Writer interface {
	Write(ctx context.Context, destination string, rows [][]string) error
}

// Sink appends rows to its backends. Failures are logged and never returned.
type Sink struct {
	writers map[string]Writer
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{
		writers: make(map[string]Writer),
		logger:  logger.With("component", "sink"),
	}
}

// Register adds a named backend.
func (s *Sink) Register(name string, w Writer) {
	s.writers[name] = w
}

// Configured reports whether any backend is registered.
func (s *Sink) Configured() bool {
	return len(s.writers) > 0
}

func (s *Sink) Append(ctx context.Context, destination string, rows [][]string) {
	if len(rows) == 0 || len(s.writers) == 0 {
		return
	}
	if _, ok := Headers[destination]; !ok {
		s.logger.Error("rejected rows", "destination", destination, "error", ErrUnknownDestination)
		return
	}

	for name, w := range s.writers {
		if err := w.Write(ctx, destination, rows); err != nil {
			s.logger.Error("failed to append rows",
				"backend", name,
				"destination", destination,
				"rows", len(rows),
				"error", err)
			continue
		}
		s.logger.Debug("appended rows", "backend", name, "destination", destination, "rows", len(rows))
	}
}
