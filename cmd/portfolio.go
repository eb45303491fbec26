package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/shariah-screen/internal/fetcher"
	"github.com/sells-group/shariah-screen/internal/fields"
	"github.com/sells-group/shariah-screen/internal/methodology"
	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/portfolio"
	"github.com/sells-group/shariah-screen/internal/screening"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio [holdings-file]",
	Short: "Aggregate compliance across a portfolio",
	Long: "Screens every holding and reports value-weighted compliant, purification, " +
		"non-compliant and no-data totals per methodology. Holdings come from a CSV, XLSX " +
		"or JSON file with ticker, quantity and price columns, or from --holding flags.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		flagHoldings, _ := cmd.Flags().GetStringSlice("holding")
		holdings, err := parseHoldingFlags(flagHoldings)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fromFile, err := readHoldings(ctx, args[0])
			if err != nil {
				return err
			}
			holdings = append(holdings, fromFile...)
		}

		svc, err := initService(ctx, "screen")
		if err != nil {
			return err
		}
		res, err := svc.ScreenPortfolio(ctx, holdings)
		if err != nil {
			return err
		}

		f, _ := parseFormat(outputFormat)
		if err := render(os.Stdout, f, res, summaryTable(res)); err != nil {
			return err
		}
		if detail, _ := cmd.Flags().GetBool("detail"); detail && f == formatTable {
			fmt.Fprintln(os.Stdout)
			return render(os.Stdout, f, res, holdingTable(res))
		}
		return nil
	},
}

func init() {
	portfolioCmd.Flags().StringSlice("holding", nil, "holding as TICKER:QUANTITY:PRICE (repeatable)")
	portfolioCmd.Flags().Bool("detail", false, "also print per-holding buckets (table output)")
	rootCmd.AddCommand(portfolioCmd)
}

// parseHoldingFlags parses TICKER:QUANTITY:PRICE values.
func parseHoldingFlags(values []string) ([]model.PortfolioHolding, error) {
	out := make([]model.PortfolioHolding, 0, len(values))
	for _, v := range values {
		parts := strings.Split(v, ":")
		if len(parts) != 3 {
			return nil, eris.Errorf("portfolio: holding %q must be TICKER:QUANTITY:PRICE", v)
		}
		qty, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "portfolio: holding %q quantity", v)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "portfolio: holding %q price", v)
		}
		out = append(out, model.PortfolioHolding{Ticker: strings.TrimSpace(parts[0]), Quantity: qty, Price: price})
	}
	return out, nil
}

// readHoldings reads holdings from a tabular or JSON file.
func readHoldings(ctx context.Context, path string) ([]model.PortfolioHolding, error) {
	srcs, err := fetcher.Collect(fetcher.Stream(ctx, path, fetcher.Options{}))
	if err != nil {
		return nil, eris.Wrap(err, "portfolio: read holdings")
	}
	out := make([]model.PortfolioHolding, 0, len(srcs))
	for _, src := range srcs {
		out = append(out, holdingFromSource(src))
	}
	return out, nil
}

func holdingFromSource(src fields.Source) model.PortfolioHolding {
	h := model.PortfolioHolding{}
	h.Ticker, _ = fields.String(src, "ticker", "Ticker", "symbol", "Symbol")
	if v := fields.Number(src, "quantity", "Quantity", "qty", "shares", "Shares"); v != nil {
		h.Quantity = *v
	}
	if v := fields.Number(src, "price", "Price", "last_price", "market_price"); v != nil {
		h.Price = *v
	}
	return h
}

func summaryTable(res *screening.PortfolioBundle) table {
	t := table{cols: []string{"METHODOLOGY", "COMPLIANT", "PURIFICATION", "NON_COMPLIANT", "NO_DATA", "COMPLIANT_%", "NON_COMPLIANT_%", "TOTAL"}}
	for _, s := range res.Summaries {
		t.data = append(t.data, []string{
			string(s.Methodology),
			s.Compliant.StringFixed(2),
			s.CompliantWithPurification.StringFixed(2),
			s.NonCompliant.StringFixed(2),
			s.NoData.StringFixed(2),
			methodology.FormatPct(s.Percentages[portfolio.BucketCompliant]),
			methodology.FormatPct(s.Percentages[portfolio.BucketNonCompliant]),
			res.TotalValue.StringFixed(2),
		})
	}
	return t
}

func holdingTable(res *screening.PortfolioBundle) table {
	t := table{cols: []string{"TICKER", "VALUE", "FOUND", "NUMERIC", "AUTO_BAN", "INVESENSE", "LABEL"}}
	for _, h := range res.Holdings {
		found := "no"
		if h.Found {
			found = "yes"
		}
		t.data = append(t.data, []string{
			h.Holding.Ticker,
			h.Value.StringFixed(2),
			found,
			string(h.Buckets[methodology.MethodologyNumeric]),
			string(h.Buckets[methodology.MethodologyAutoBan]),
			string(h.Buckets[methodology.MethodologyComposite]),
			h.Composite.Label,
		})
	}
	return t
}
