package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"quantmind/internal/config"
)

func writeCSV(t *testing.T, dir, symbol string, n int, phase float64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + 10*math.Sin(float64(i)/5+phase) + float64(i)*0.2
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%d\n", d.Format("2006-01-02"), c, c+1.5, c-1.5, c, 1000+i*10)
		d = d.AddDate(0, 0, 1)
	}
	if err := os.WriteFile(filepath.Join(dir, symbol+".csv"), []byte(b.String()), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testSetup(t *testing.T) (*config.Config, *slog.Logger) {
	t.Helper()
	dir := t.TempDir()
	writeCSV(t, dir, "AAA", 80, 0)
	writeCSV(t, dir, "BBB", 80, 1.3)
	writeCSV(t, dir, "TINY", 10, 0)

	cfg := config.Default()
	cfg.Storage.CSVDir = dir
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "runs.db")
	cfg.Sweep.Workers = 2
	return cfg, slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunBacktestJSON(t *testing.T) {
	cfg, logger := testSetup(t)
	var out bytes.Buffer
	opts := options{source: "csv", model: "rsi", threshold: -1, jsonOut: true}
	if err := run(context.Background(), "backtest", cfg, opts, logger, &out); err != nil {
		t.Fatalf("run backtest: %v", err)
	}
	var res struct {
		Model        string  `json:"model"`
		Threshold    float64 `json:"threshold"`
		FinalBalance float64 `json:"finalBalance"`
		EquityCurve  []any   `json:"equityCurve"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if res.Model != "rsi" || res.Threshold != 70 {
		t.Errorf("model/threshold = %s/%v, want rsi/70", res.Model, res.Threshold)
	}
	if len(res.EquityCurve) != 80 {
		t.Errorf("equity curve has %d points, want 80", len(res.EquityCurve))
	}
	if res.FinalBalance <= 0 {
		t.Errorf("final balance = %v", res.FinalBalance)
	}
}

func TestRunLeaderboardSavesRuns(t *testing.T) {
	cfg, logger := testSetup(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, "leaderboard", cfg, options{source: "csv", save: true}, logger, &out); err != nil {
		t.Fatalf("run leaderboard: %v", err)
	}
	if !strings.Contains(out.String(), "RANK") || !strings.Contains(out.String(), "Smart RSI Pullback") {
		t.Errorf("leaderboard output missing table:\n%s", out.String())
	}

	out.Reset()
	if err := run(ctx, "runs", cfg, options{jsonOut: true}, logger, &out); err != nil {
		t.Fatalf("run runs: %v", err)
	}
	var runs []map[string]any
	if err := json.Unmarshal(out.Bytes(), &runs); err != nil {
		t.Fatalf("runs output is not JSON: %v", err)
	}
	if len(runs) != 18 {
		t.Errorf("stored %d runs, want 18", len(runs))
	}
}

func TestRunScanAndSweep(t *testing.T) {
	cfg, logger := testSetup(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, "scan", cfg, options{source: "csv"}, logger, &out); err != nil {
		t.Fatalf("run scan: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "AAA") || !strings.Contains(text, "BBB") {
		t.Errorf("scan output missing symbols:\n%s", text)
	}
	if strings.Contains(text, "TINY") {
		t.Errorf("scan included a symbol with short history:\n%s", text)
	}

	out.Reset()
	if err := run(ctx, "sweep", cfg, options{source: "csv", model: "stoch", jsonOut: true}, logger, &out); err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	var points []map[string]any
	if err := json.Unmarshal(out.Bytes(), &points); err != nil {
		t.Fatalf("sweep output is not JSON: %v", err)
	}
	if len(points) != 99 {
		t.Errorf("sweep returned %d points, want 99", len(points))
	}
}

func TestRunErrors(t *testing.T) {
	cfg, logger := testSetup(t)
	ctx := context.Background()

	if err := run(ctx, "backtest", cfg, options{source: "csv", model: "nope", threshold: -1}, logger, io.Discard); err == nil {
		t.Error("unknown model accepted")
	}
	if err := run(ctx, "dance", cfg, options{source: "csv"}, logger, io.Discard); err == nil {
		t.Error("unknown mode accepted")
	}
	if err := run(ctx, "scan", cfg, options{source: "ftp"}, logger, io.Discard); err == nil {
		t.Error("unknown source accepted")
	}
}

func TestSplitSymbols(t *testing.T) {
	got := splitSymbols(" aapl, ,msft,AAPL,")
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "MSFT" {
		t.Errorf("splitSymbols = %v, want [AAPL MSFT]", got)
	}
	if splitSymbols("") != nil {
		t.Error("splitSymbols(\"\") should be nil")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	want := map[string]bool{"backtest": false, "leaderboard": false, "sweep": false, "scan": false, "runs": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}

	root.SetArgs([]string{"scan", "extra"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err == nil {
		t.Error("scan accepted a positional argument")
	}
}
