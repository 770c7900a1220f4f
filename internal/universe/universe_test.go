package universe

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quantmind/internal/domain"
	"quantmind/internal/strategy"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func makeSeries(symbol string, offset, n int) domain.Series {
	s := domain.Series{Symbol: symbol}
	for i := 0; i < n; i++ {
		s.Points = append(s.Points, domain.PricePoint{
			Date:  day0.AddDate(0, 0, offset+i),
			Close: 100 + float64(i),
		})
	}
	return s
}

func testRegistry(t *testing.T) *strategy.Registry {
	t.Helper()
	r := strategy.NewRegistry()
	require.NoError(t, r.Register(strategy.Model{
		Descriptor: strategy.Descriptor{ID: "last-close"},
		Score: func(in strategy.Inputs) []float64 {
			out := make([]float64, in.Len())
			copy(out, in.Closes)
			return out
		},
	}))
	require.NoError(t, r.Register(strategy.Model{
		Descriptor: strategy.Descriptor{ID: "flat"},
		Score: func(in strategy.Inputs) []float64 {
			out := make([]float64, in.Len())
			for i := range out {
				out[i] = 50
			}
			return out
		},
	}))
	return r
}

func TestNew_DatesAreSortedUnion(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("B", 5, 60), makeSeries("A", 0, 60)}, Options{})
	require.NoError(t, err)

	require.Equal(t, 2, snap.Len())
	assert.Equal(t, "B", snap.Instruments()[0].Symbol)
	assert.Equal(t, 0, snap.Instruments()[0].Index)
	assert.Equal(t, 1, snap.Instruments()[1].Index)

	dates := snap.Dates()
	require.Len(t, dates, 65)
	assert.Equal(t, day0, dates[0])
	for i := 1; i < len(dates); i++ {
		assert.True(t, dates[i].After(dates[i-1]))
	}
}

func TestNew_SkipsShortHistory(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("LONG", 0, 60), makeSeries("SHORT", 0, 49)}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
	assert.Equal(t, []string{"SHORT"}, snap.Skipped())

	all, err := New([]domain.Series{makeSeries("SHORT", 0, 3)}, Options{MinHistory: -1})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Len())
}

func TestNew_DateRange(t *testing.T) {
	opts := Options{Start: day0.AddDate(0, 0, 10), End: day0.AddDate(0, 0, 69), MinHistory: 50}
	snap, err := New([]domain.Series{makeSeries("A", 0, 100)}, opts)
	require.NoError(t, err)

	inst, ok := snap.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, 60, inst.Len())
	assert.Equal(t, opts.Start, inst.Dates[0])
	assert.Equal(t, 110.0, inst.Inputs.Closes[0])

	_, ok = snap.Lookup("missing")
	assert.False(t, ok)
}

func TestNew_RejectsUnorderedHistory(t *testing.T) {
	s := makeSeries("A", 0, 60)
	s.Points[10].Date = s.Points[9].Date
	_, err := New([]domain.Series{s}, Options{})
	assert.ErrorIs(t, err, domain.ErrUnorderedHistory)
}

func TestNew_RejectsDuplicateSymbol(t *testing.T) {
	_, err := New([]domain.Series{
		makeSeries("DUP", 0, 60),
		makeSeries("OTHER", 0, 60),
		makeSeries("DUP", 0, 120),
	}, Options{})
	require.ErrorIs(t, err, ErrDuplicateSymbol)
	assert.Contains(t, err.Error(), "DUP")

	// A skipped short series still claims its symbol.
	_, err = New([]domain.Series{
		makeSeries("DUP", 0, 10),
		makeSeries("DUP", 0, 60),
	}, Options{})
	assert.ErrorIs(t, err, ErrDuplicateSymbol)
}

func TestNew_Empty(t *testing.T) {
	snap, err := New(nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
	assert.Empty(t, snap.Dates())
}

func TestScoreCache_ComputesOnce(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("A", 0, 60), makeSeries("B", 0, 60)}, Options{})
	require.NoError(t, err)
	cache := NewScoreCache(testRegistry(t), snap)

	inst := snap.Instruments()[0]
	first, err := cache.Scores(inst, "flat")
	require.NoError(t, err)
	second, err := cache.Scores(inst, "flat")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, cache.Computations())

	all, err := cache.Model("last-close")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 100.0, all[1][0])
	assert.EqualValues(t, 3, cache.Computations())
}

func TestScoreCache_UnknownModel(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("A", 0, 60)}, Options{})
	require.NoError(t, err)
	cache := NewScoreCache(testRegistry(t), snap)

	_, err = cache.Scores(snap.Instruments()[0], "nope")
	assert.ErrorIs(t, err, strategy.ErrUnknownModel)
	assert.Error(t, cache.Warm(context.Background(), []strategy.ModelID{"nope"}, 2))
}

func TestScoreCache_ConcurrentAccess(t *testing.T) {
	series := make([]domain.Series, 8)
	for i := range series {
		series[i] = makeSeries(string(rune('A'+i)), 0, 60)
	}
	snap, err := New(series, Options{})
	require.NoError(t, err)
	cache := NewScoreCache(testRegistry(t), snap)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, inst := range snap.Instruments() {
				_, err := cache.Scores(inst, "last-close")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 8, cache.Computations())
}

func TestScoreCache_Warm(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("A", 0, 60), makeSeries("B", 0, 60)}, Options{})
	require.NoError(t, err)
	cache := NewScoreCache(testRegistry(t), snap)

	require.NoError(t, cache.Warm(context.Background(), []strategy.ModelID{"flat", "last-close"}, 0))
	assert.EqualValues(t, 4, cache.Computations())

	_, err = cache.Model("flat")
	require.NoError(t, err)
	assert.EqualValues(t, 4, cache.Computations(), "warm cache must not recompute")
}

func TestScoreCache_WarmCancelled(t *testing.T) {
	snap, err := New([]domain.Series{makeSeries("A", 0, 60)}, Options{})
	require.NoError(t, err)
	cache := NewScoreCache(testRegistry(t), snap)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, cache.Warm(ctx, []strategy.ModelID{"flat"}, 1), context.Canceled)
}
