package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/HubDub0522/InsiderTape/internal/model"
)

var (
	tradesTicker  string
	tradesInsider string
	tradesLimit   int
)

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Query stored insider trades",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		trades, err := st.FindTrades(ctx, model.TradeFilter{
			Ticker:  tradesTicker,
			Insider: tradesInsider,
			Limit:   tradesLimit,
		})
		if err != nil {
			return err
		}

		formatTrades(os.Stdout, trades)
		return nil
	},
}

func init() {
	tradesCmd.Flags().StringVar(&tradesTicker, "ticker", "", "filter by ticker symbol (exact)")
	tradesCmd.Flags().StringVar(&tradesInsider, "insider", "", "filter by insider name (substring)")
	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 50, "maximum rows to return")
	rootCmd.AddCommand(tradesCmd)
}

func formatTrades(out io.Writer, trades []model.Trade) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tINSIDER\tTITLE\tDATE\tTYPE\tQTY\tPRICE\tVALUE")

	for _, t := range trades {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\t%d\n",
			t.Ticker,
			truncate(t.Insider, 30),
			truncate(t.Title, 24),
			t.TradeDate,
			t.Type,
			t.Qty,
			t.Price,
			t.Value,
		)
	}
	_ = w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
