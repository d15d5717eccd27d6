package sink

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) Write(ctx context.Context, destination string, rows [][]string) error {
	args := m.Called(ctx, destination, rows)
	return args.Error(0)
}

func newSink() *Sink {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSinkAppend(t *testing.T) {
	ctx := context.Background()
	rows := [][]string{{"2024-05-01T12:00:00Z", "Brice Samba", "brice-samba", "super_rare", "30.00", "45.00", "3", "player"}}

	failing := new(MockWriter)
	failing.On("Write", ctx, PriceTimeline, rows).Return(errors.New("disk full"))
	working := new(MockWriter)
	working.On("Write", ctx, PriceTimeline, rows).Return(nil)

	s := newSink()
	s.Register("failing", failing)
	s.Register("working", working)
	assert.True(t, s.Configured())

	s.Append(ctx, PriceTimeline, rows)

	failing.AssertExpectations(t)
	working.AssertExpectations(t)
}

func TestSinkAppendSkips(t *testing.T) {
	ctx := context.Background()
	w := new(MockWriter)

	s := newSink()
	s.Register("w", w)
	s.Append(ctx, PriceTimeline, nil)
	s.Append(ctx, "Unknown", [][]string{{"x"}})

	w.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything)
}

func TestSinkUnconfiguredIsNoop(t *testing.T) {
	s := newSink()
	assert.False(t, s.Configured())
	assert.NotPanics(t, func() {
		s.Append(context.Background(), Sales, [][]string{{"a"}})
	})
}

func TestWorkbookAppendsWithHeaders(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "alerts.xlsx")
	wb := NewWorkbook(path)

	require.NoError(t, wb.Write(ctx, Listings, [][]string{
		{"2024-05-01", "12:00:00", "Brice Samba", "brice-samba", "super_rare", "30.00", "2", "card-a"},
	}))
	require.NoError(t, wb.Write(ctx, Listings, [][]string{
		{"2024-05-01", "12:05:00", "Brice Samba", "brice-samba", "super_rare", "", "2", "card-b"},
	}))
	require.NoError(t, wb.Write(ctx, Sales, [][]string{
		{"2024-04-30", "Brice Samba", "brice-samba", "super_rare", "2023", "7", "42.00", "sale", "", ""},
	}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{Listings, Sales}, f.GetSheetList())

	rows, err := f.GetRows(Listings)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Headers[Listings], rows[0])
	assert.Equal(t, "card-a", rows[1][7])
	assert.Equal(t, "card-b", rows[2][7])

	sales, err := f.GetRows(Sales)
	require.NoError(t, err)
	require.Len(t, sales, 2)
	assert.Equal(t, "42.00", sales[1][6])
}

type fakeRowStore struct {
	destination string
	rows        [][]string
}

func (f *fakeRowStore) Append(_ context.Context, destination string, rows [][]string) error {
	f.destination = destination
	f.rows = rows
	return nil
}

func TestDatabaseWriter(t *testing.T) {
	store := &fakeRowStore{}
	rows := [][]string{{"a", "b"}}
	require.NoError(t, NewDatabase(store).Write(context.Background(), Sales, rows))
	assert.Equal(t, Sales, store.destination)
	assert.Equal(t, rows, store.rows)
}
