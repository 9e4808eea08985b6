package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// WriteCSV writes the category breakdown followed by the recent sales.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"section", "key", "count", "volume_lamports", "commission_lamports", "volume_sol", "commission_sol"},
	}
	for _, b := range r.ByCategory {
		rows = append(rows, bucketRow(string(r.GroupBy), b))
	}
	for _, b := range r.Daily {
		rows = append(rows, bucketRow("daily", b))
	}
	rows = append(rows,
		[]string{"total", "", strconv.Itoa(r.Summary.TransactionCount),
			strconv.FormatUint(r.Summary.TotalVolume, 10),
			strconv.FormatUint(r.Summary.TotalCommissions, 10),
			r.Summary.VolumeSOL, r.Summary.CommissionsSOL},
		nil,
		[]string{"id", "completed_at", "item_type", "item_name", "amount_lamports", "commission_lamports", "buyer", "seller", "signature"},
	)
	for _, s := range r.Recent {
		rows = append(rows, []string{
			s.ID, s.CompletedAt.UTC().Format(time.RFC3339), s.ItemType, s.ItemName,
			strconv.FormatUint(s.Amount, 10), strconv.FormatUint(s.Commission, 10),
			s.BuyerID, s.SellerID, s.Signature,
		})
	}

	for _, row := range rows {
		if row == nil {
			row = []string{}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func bucketRow(section string, b Bucket) []string {
	return []string{
		section, b.Key, strconv.Itoa(b.Count),
		strconv.FormatUint(b.Volume, 10), strconv.FormatUint(b.Commission, 10),
		b.VolumeSOL, b.CommissionSOL,
	}
}
