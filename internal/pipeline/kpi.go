package pipeline

import (
	"github.com/shopspring/decimal"
)

type KPIs struct {
	TotalSales    float64 `json:"total_sales"`
	TotalProfit   float64 `json:"total_profit"`
	OrderCount    int     `json:"order_count"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

// ComputeKPIs sums Sales and Profit over every record. The average order
// value is zero for an empty dataset.
func ComputeKPIs(d *Dataset) (KPIs, error) {
	if err := requireColumns(d, measureFields...); err != nil {
		return KPIs{}, err
	}

	sales := sumMeasure(d.records, FieldSales)
	profit := sumMeasure(d.records, FieldProfit)
	orders := len(d.records)

	avg := decimal.Zero
	if orders > 0 {
		avg = sales.Div(decimal.NewFromInt(int64(orders)))
	}

	return KPIs{
		TotalSales:    sales.InexactFloat64(),
		TotalProfit:   profit.InexactFloat64(),
		OrderCount:    orders,
		AvgOrderValue: avg.InexactFloat64(),
	}, nil
}

func sumMeasure(records []Record, field string) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if v, ok := r.measures[field]; ok {
			total = total.Add(v)
		}
	}
	return total
}
