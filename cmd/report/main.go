package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"solana-marketplace/internal/cache"
	"solana-marketplace/internal/config"
	"solana-marketplace/internal/domain"
	"solana-marketplace/internal/observability"
	"solana-marketplace/internal/pricing"
	"solana-marketplace/internal/reporting"
	"solana-marketplace/internal/storage"
	chstore "solana-marketplace/internal/storage/clickhouse"
	pgstore "solana-marketplace/internal/storage/postgres"
)

func main() {
	// Parse flags
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string; read from the analytics mirror when set")
	fixtures := flag.String("fixtures", "", "JSON file of settlements to report on instead of a database")
	days := flag.Int("days", 30, "Trailing window in days")
	period := flag.String("period", "", "Build the daily, weekly or monthly digest instead of a full report")
	groupBy := flag.String("group-by", string(reporting.GroupByItemType), "Breakdown: item_type, seller or day")
	format := flag.String("format", "json", "Output format: json, html, csv or markdown")
	output := flag.String("output", "", "Output file (default stdout)")
	noUSD := flag.Bool("no-usd", false, "Skip USD estimates")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *clickhouseDSN != "" {
		cfg.Storage.ClickhouseDSN = *clickhouseDSN
	}

	// Logs go to stderr; stdout carries the report.
	logger := slog.New(observability.NewJSONHandler(os.Stderr, observability.ParseLevel(cfg.Log.Level))).
		With("service", "commission-report")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	source, release, err := openSource(ctx, cfg.Storage, *fixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening settlement source: %v\n", err)
		os.Exit(1)
	}
	defer release()

	var prices reporting.Pricer
	if !*noUSD {
		fallback, err := cfg.FallbackPrice()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		prices = pricing.NewService(pricing.NewCoinGecko(cfg.Pricing.BaseURL, cfg.Pricing.Timeout.Duration),
			cache.NewMemory(nil), cfg.Pricing.TTL.Duration, logger).WithFallback(fallback)
	}
	gen := reporting.NewGenerator(source, prices)

	var out io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	if *period != "" {
		err = writeSummary(ctx, gen, out, reporting.Period(*period), *format)
	} else {
		err = writeReport(ctx, gen, out, *days, reporting.GroupBy(*groupBy), *format)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		fmt.Fprintf(os.Stderr, "Commission report written to %s\n", *output)
	}
}

func writeReport(ctx context.Context, gen *reporting.Generator, w io.Writer, days int, groupBy reporting.GroupBy, format string) error {
	r, err := gen.Report(ctx, days, groupBy)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return writeJSON(w, r)
	case "html":
		return reporting.WriteHTML(w, r)
	case "csv":
		return reporting.WriteCSV(w, r)
	}
	return fmt.Errorf("unsupported report format %q", format)
}

func writeSummary(ctx context.Context, gen *reporting.Generator, w io.Writer, period reporting.Period, format string) error {
	s, err := gen.Summary(ctx, period)
	if err != nil {
		return err
	}
	switch format {
	case "json":
		return writeJSON(w, s)
	case "markdown":
		_, err := io.WriteString(w, reporting.SummaryMarkdown(s))
		return err
	}
	return fmt.Errorf("unsupported summary format %q", format)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// openSource picks fixtures, then ClickHouse, then PostgreSQL.
func openSource(ctx context.Context, cfg config.StorageConfig, fixtures string) (storage.SettlementSource, func(), error) {
	switch {
	case fixtures != "":
		src, err := loadFixtures(fixtures)
		return src, func() {}, err
	case cfg.ClickhouseDSN != "":
		conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		return chstore.NewSettlementStore(conn), func() { conn.Close() }, nil
	case cfg.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithConnectTimeout(cfg.ConnectTimeout.Duration))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		return pgstore.NewSettlementStore(pool), pool.Close, nil
	}
	return nil, nil, errors.New("one of --fixtures, --clickhouse-dsn or --postgres-dsn is required")
}

// fixtureSale is one settlement in a fixtures file.
type fixtureSale struct {
	ID              string    `json:"id"`
	BuyerID         string    `json:"buyer_id"`
	SellerID        string    `json:"seller_id"`
	ItemID          string    `json:"item_id"`
	ItemType        string    `json:"item_type"`
	ItemName        string    `json:"item_name"`
	GrossAmount     uint64    `json:"gross_amount"`
	PlatformFee     uint64    `json:"platform_fee"`
	PayoutSignature string    `json:"payout_signature"`
	CompletedAt     time.Time `json:"completed_at"`
}

// fixtureSource serves completed settlements read from a file.
type fixtureSource []*domain.SettlementTransaction

func loadFixtures(path string) (fixtureSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var sales []fixtureSale
	if err := json.Unmarshal(data, &sales); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	src := make(fixtureSource, 0, len(sales))
	for _, s := range sales {
		completed := s.CompletedAt.UTC()
		src = append(src, &domain.SettlementTransaction{
			ID:              s.ID,
			BuyerID:         s.BuyerID,
			SellerID:        s.SellerID,
			ItemID:          s.ItemID,
			ItemType:        domain.ItemType(s.ItemType),
			ItemName:        s.ItemName,
			GrossAmount:     s.GrossAmount,
			PlatformFee:     s.PlatformFee,
			SellerNet:       s.GrossAmount - s.PlatformFee,
			PayoutSignature: s.PayoutSignature,
			Status:          domain.SettlementCompleted,
			CreatedAt:       completed,
			CompletedAt:     &completed,
		})
	}
	sort.Slice(src, func(i, j int) bool { return src[i].CompletedAt.Before(*src[j].CompletedAt) })
	return src, nil
}

// CompletedBetween returns fixtures completed in [start, end).
func (f fixtureSource) CompletedBetween(_ context.Context, start, end time.Time) ([]*domain.SettlementTransaction, error) {
	var out []*domain.SettlementTransaction
	for _, s := range f {
		if s.CompletedAt.Before(start) || !s.CompletedAt.Before(end) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}
