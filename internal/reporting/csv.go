package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderCSV renders trade rows as a CSV string.
func RenderCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("leg_id,sequence,trigger,contract,side,lots,")
	sb.WriteString("entry_time,entry_price,exit_time,exit_price,status,pnl\n")

	// Rows
	for _, t := range trades {
		exitTime := ""
		if t.ExitTime != nil {
			exitTime = t.ExitTime.Format(time.RFC3339)
		}
		exitPrice := ""
		if t.ExitPrice != nil {
			exitPrice = t.ExitPrice.String()
		}
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%s,%d,%s,%s,%s,%s,%s,%s\n",
			t.LegID,
			t.Sequence,
			t.Trigger,
			t.Contract,
			t.Side,
			t.Lots,
			t.EntryTime.Format(time.RFC3339),
			t.EntryPrice.String(),
			exitTime,
			exitPrice,
			t.Status,
			t.PnL.String(),
		))
	}

	return sb.String()
}
