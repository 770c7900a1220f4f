package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"quantmind/internal/domain"
)

var _ BarStore = (*CSVStore)(nil)

// CSVStore implements BarStore over a directory holding one <SYMBOL>.csv
// file per instrument with a date,open,high,low,close,volume header. Only
// date and close are required; missing columns read as zero and are filled
// in by domain.PricePoint normalization. File names match symbols
// case-insensitively, and new files are created upper-case.
type CSVStore struct {
	Dir string
}

// NewCSVStore creates a CSVStore over dir.
func NewCSVStore(dir string) *CSVStore {
	return &CSVStore{Dir: dir}
}

// CSVBar is one row of a bar CSV file.
type CSVBar struct {
	Date   string  `csv:"date"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

func (r CSVBar) bar(symbol string) (domain.Bar, error) {
	d, err := domain.ParseDate(strings.TrimSpace(r.Date))
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing date %q: %w", r.Date, err)
	}
	return domain.Bar{
		Symbol:    symbol,
		Timestamp: d,
		Open:      r.Open,
		High:      r.High,
		Low:       r.Low,
		Close:     r.Close,
		Volume:    int64(math.Round(math.Max(r.Volume, 0))),
	}, nil
}

// ReadBars parses the symbol's CSV file and returns bars within [start, end]
// sorted by date. A missing file yields no bars.
func (s *CSVStore) ReadBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	sym := strings.ToUpper(symbol)
	path, err := s.path(sym)
	if err != nil {
		return nil, err
	}
	rows, err := s.readFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	bars := make([]domain.Bar, 0, len(rows))
	for i, r := range rows {
		b, err := r.bar(sym)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", sym, i+1, err)
		}
		if inRange(b.Timestamp, start, end) {
			bars = append(bars, b)
		}
	}
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}

// WriteBars merges bars into each symbol's CSV file, keyed by date.
func (s *CSVStore) WriteBars(ctx context.Context, bars []domain.Bar) error {
	bySymbol := make(map[string][]domain.Bar)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		bySymbol[sym] = append(bySymbol[sym], b)
	}
	for sym, incoming := range bySymbol {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := s.path(sym)
		if err != nil {
			return err
		}
		existing, err := s.readFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		byDate := make(map[string]CSVBar, len(existing)+len(incoming))
		for _, r := range existing {
			byDate[strings.TrimSpace(r.Date)] = r
		}
		for _, b := range incoming {
			date := domain.FormatDate(domain.Day(b.Timestamp))
			byDate[date] = CSVBar{
				Date:   date,
				Open:   b.Open,
				High:   b.High,
				Low:    b.Low,
				Close:  b.Close,
				Volume: float64(b.Volume),
			}
		}
		rows := make([]CSVBar, 0, len(byDate))
		for _, r := range byDate {
			rows = append(rows, r)
		}
		// ISO dates sort lexically.
		sort.Slice(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
		if err := s.writeFile(path, rows); err != nil {
			return fmt.Errorf("writing bars for %s: %w", sym, err)
		}
	}
	return nil
}

// ListSymbols returns the symbols with a CSV file in the directory.
func (s *CSVStore) ListSymbols(_ context.Context) ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(files))
	for sym := range files {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// files maps each upper-cased symbol to the name of its CSV file. When names
// differ only in case, the first in directory order wins.
func (s *CSVStore) files() (map[string]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		sym := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
		if _, ok := files[sym]; !ok {
			files[sym] = name
		}
	}
	return files, nil
}

// path returns the file holding symbol's bars, falling back to <SYMBOL>.csv
// when none exists yet.
func (s *CSVStore) path(symbol string) (string, error) {
	files, err := s.files()
	if err != nil {
		return "", err
	}
	if name, ok := files[symbol]; ok {
		return filepath.Join(s.Dir, name), nil
	}
	return filepath.Join(s.Dir, symbol+".csv"), nil
}

func (s *CSVStore) readFile(path string) ([]CSVBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err != nil {
		return nil, err
	} else if fi.Size() == 0 {
		return nil, nil
	}

	var rows []CSVBar
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.Name(), err)
	}
	return rows, nil
}

func (s *CSVStore) writeFile(path string, rows []CSVBar) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
