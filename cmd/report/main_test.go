package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"solana-marketplace/internal/config"
	"solana-marketplace/internal/reporting"
)

const fixtureJSON = `[
  {"id": "s1", "buyer_id": "b1", "seller_id": "alice", "item_id": "i1", "item_type": "agent",
   "item_name": "Scout", "gross_amount": 1000000000, "platform_fee": 25000000, "payout_signature": "sig1",
   "completed_at": "2024-03-01T08:00:00Z"},
  {"id": "s2", "buyer_id": "b2", "seller_id": "bob", "item_id": "i2", "item_type": "tool",
   "item_name": "Digest", "gross_amount": 2000000000, "platform_fee": 50000000, "payout_signature": "sig2",
   "completed_at": "2024-02-29T08:00:00Z"},
  {"id": "s3", "buyer_id": "b3", "seller_id": "bob", "item_id": "i2", "item_type": "tool",
   "item_name": "Digest", "gross_amount": 500000000, "platform_fee": 12500000, "payout_signature": "sig3",
   "completed_at": "2023-12-01T08:00:00Z"}
]`

func writeFixtures(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.json")
	if err := os.WriteFile(path, []byte(fixtureJSON), 0o600); err != nil {
		t.Fatalf("write fixtures: %v", err)
	}
	return path
}

func TestLoadFixtures_FiltersWindow(t *testing.T) {
	src, err := loadFixtures(writeFixtures(t))
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(src) != 3 {
		t.Fatalf("expected 3 fixtures, got %d", len(src))
	}
	if src[0].ID != "s3" {
		t.Errorf("expected oldest first, got %s", src[0].ID)
	}
	if src[1].SellerNet != 1950000000 {
		t.Errorf("expected seller net derived from fee, got %d", src[1].SellerNet)
	}

	start := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	got, _ := src.CompletedBetween(context.Background(), start, start.AddDate(0, 1, 0))
	if len(got) != 2 {
		t.Fatalf("expected 2 sales in window, got %d", len(got))
	}
}

func TestWriteReport_Formats(t *testing.T) {
	src, err := loadFixtures(writeFixtures(t))
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	gen := reporting.NewGenerator(src, nil).WithClock(func() time.Time { return now })
	ctx := context.Background()

	cases := map[string]string{
		"json": `"transaction_count": 2`,
		"csv":  "section,key,count",
		"html": "<h1>Commission Report</h1>",
	}
	for format, want := range cases {
		var buf bytes.Buffer
		if err := writeReport(ctx, gen, &buf, 30, reporting.GroupBySeller, format); err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if !strings.Contains(buf.String(), want) {
			t.Errorf("%s output missing %q", format, want)
		}
	}

	if err := writeReport(ctx, gen, &bytes.Buffer{}, 30, reporting.GroupBySeller, "markdown"); err == nil {
		t.Error("expected markdown to be rejected for full reports")
	}
}

func TestWriteSummary_Markdown(t *testing.T) {
	src, err := loadFixtures(writeFixtures(t))
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	now := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	gen := reporting.NewGenerator(src, nil).WithClock(func() time.Time { return now })

	var buf bytes.Buffer
	if err := writeSummary(context.Background(), gen, &buf, reporting.PeriodWeekly, "markdown"); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	if !strings.Contains(buf.String(), "Digest") {
		t.Errorf("expected top item in summary:\n%s", buf.String())
	}
	if err := writeSummary(context.Background(), gen, &bytes.Buffer{}, "yearly", "json"); err == nil {
		t.Error("expected unknown period to fail")
	}
}

func TestOpenSource_RequiresBackend(t *testing.T) {
	_, _, err := openSource(context.Background(), config.StorageConfig{}, "")
	if err == nil {
		t.Fatal("expected error without any source")
	}
}
