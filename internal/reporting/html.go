package reporting

import (
	"fmt"
	"html/template"
	"io"
	"time"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"date":     func(t time.Time) string { return t.UTC().Format(time.DateOnly) },
	"datetime": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
	"sol":      sol,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Commission Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
.cards { display: flex; gap: 1rem; margin-bottom: 2rem; }
.card { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; min-width: 10rem; }
.card .value { font-size: 1.4rem; font-weight: bold; }
table { border-collapse: collapse; margin-bottom: 2rem; }
th, td { border: 1px solid #ddd; padding: .4rem .8rem; text-align: left; }
th { background: #f5f5f5; }
</style>
</head>
<body>
<h1>Commission Report</h1>
<p>{{.Period}}: {{date .DateRange.Start}} to {{date .DateRange.End}}</p>
<div class="cards">
  <div class="card"><div>Commissions</div><div class="value">{{.Summary.CommissionsSOL}} SOL</div>{{if .Summary.CommissionsUSD}}<div>${{.Summary.CommissionsUSD}}</div>{{end}}</div>
  <div class="card"><div>Volume</div><div class="value">{{.Summary.VolumeSOL}} SOL</div>{{if .Summary.VolumeUSD}}<div>${{.Summary.VolumeUSD}}</div>{{end}}</div>
  <div class="card"><div>Sales</div><div class="value">{{.Summary.TransactionCount}}</div></div>
  <div class="card"><div>Average commission</div><div class="value">{{sol .Summary.AverageCommission}} SOL</div></div>
  <div class="card"><div>Effective rate</div><div class="value">{{.Summary.EffectiveRatePct}}%</div></div>
</div>
<h2>By {{.GroupBy}}</h2>
<table>
<tr><th>Key</th><th>Sales</th><th>Volume (SOL)</th><th>Commission (SOL)</th></tr>
{{range .ByCategory}}<tr><td>{{.Key}}</td><td>{{.Count}}</td><td>{{.VolumeSOL}}</td><td>{{.CommissionSOL}}</td></tr>
{{end}}</table>
<h2>Daily</h2>
<table>
<tr><th>Date</th><th>Sales</th><th>Volume (SOL)</th><th>Commission (SOL)</th></tr>
{{range .Daily}}<tr><td>{{.Key}}</td><td>{{.Count}}</td><td>{{.VolumeSOL}}</td><td>{{.CommissionSOL}}</td></tr>
{{end}}</table>
<h2>Recent Transactions</h2>
<table>
<tr><th>Date</th><th>Item</th><th>Type</th><th>Amount (SOL)</th><th>Commission (SOL)</th><th>Buyer</th><th>Seller</th><th>Signature</th></tr>
{{range .Recent}}<tr><td>{{datetime .CompletedAt}}</td><td>{{.ItemName}}</td><td>{{.ItemType}}</td><td>{{sol .Amount}}</td><td>{{sol .Commission}}</td><td>{{.BuyerID}}</td><td>{{.SellerID}}</td><td>{{.Signature}}</td></tr>
{{end}}</table>
<p><small>Generated {{datetime .GeneratedAt}} UTC</small></p>
</body>
</html>
`))

// WriteHTML renders r as a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	if err := reportTemplate.Execute(w, r); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
