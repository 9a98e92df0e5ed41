package output

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/pterm/pterm"

	"orderscout/harvest"
)

// Console prints the JSON array to W and, when Table is set, a summary
// table after it.
type Console struct {
	W     io.Writer
	Table bool
}

// Emit prints the orders as indented JSON, then the summary table when
// Table is set and there is something to show.
func (c Console) Emit(ctx context.Context, orders []harvest.Order) error {
	data, err := Marshal(orders)
	if err != nil {
		return fmt.Errorf("encoding orders: %w", err)
	}
	if _, err := fmt.Fprintf(c.W, "%s\n", data); err != nil {
		return fmt.Errorf("printing orders: %w", err)
	}
	if !c.Table || len(orders) == 0 {
		return nil
	}
	table, err := pterm.DefaultTable.WithHasHeader(true).WithData(tableRows(orders)).Srender()
	if err != nil {
		return fmt.Errorf("rendering order table: %w", err)
	}
	_, err = fmt.Fprintln(c.W, table)
	return err
}

// tableRows has a header, one row per order and a total row.
func tableRows(orders []harvest.Order) [][]string {
	rows := make([][]string, 0, len(orders)+2)
	rows = append(rows, []string{"Order Date", "Total ($)", "Items", "First Product"})

	sum := 0.0
	for _, o := range orders {
		total := "N/A"
		if amount, ok := ParseAmount(o.Total); ok {
			total = fmt.Sprintf("%.2f", amount)
			sum += amount
		}
		date := o.OrderDate
		if date == "" {
			date = "N/A"
		}
		first := ""
		if len(o.Items) > 0 {
			first = truncate(o.Items[0].ProductName, 48)
		}
		rows = append(rows, []string{date, total, strconv.Itoa(len(o.Items)), first})
	}

	rows = append(rows, []string{"Total", fmt.Sprintf("%.2f", sum), "", ""})
	return rows
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
