package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/shariah-screen/internal/model"
	"github.com/sells-group/shariah-screen/internal/screening"
)

var screenCmd = &cobra.Command{
	Use:   "screen [ticker...]",
	Short: "Screen securities by ticker or upsert key",
	Long:  "Evaluates the latest screening record for each ticker (or the exact record for each --key) against all three methodologies.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		keys, _ := cmd.Flags().GetStringSlice("key")
		if len(args) == 0 && len(keys) == 0 {
			return eris.New("screen: at least one ticker or --key is required")
		}

		svc, err := initService(ctx, "screen")
		if err != nil {
			return err
		}

		var bundles []*screening.SecurityBundle
		for _, t := range args {
			b, err := svc.ScreenTicker(ctx, t)
			if err != nil {
				return err
			}
			bundles = append(bundles, b)
		}
		for _, k := range keys {
			b, err := svc.ScreenRecord(ctx, k)
			if err != nil {
				return err
			}
			bundles = append(bundles, b)
		}

		f, _ := parseFormat(outputFormat)
		return render(os.Stdout, f, bundles, bundleTable(bundles))
	},
}

func init() {
	screenCmd.Flags().StringSlice("key", nil, "screen the record with this upsert key (repeatable)")
	rootCmd.AddCommand(screenCmd)
}

func bundleTable(bundles []*screening.SecurityBundle) table {
	t := table{cols: []string{"QUERY", "FOUND", "COMPANY", "REPORT_DATE", "NUMERIC", "AUTO_BAN", "COMPOSITE", "HARAM", "PURIFICATION"}}
	for _, b := range bundles {
		row := []string{b.Query, "no", "-", "-",
			statusText(b.Numeric.Available, b.Numeric.Status),
			statusText(b.AutoBan.Available, b.AutoBan.Status),
			b.Composite.Label,
			b.Revenue.DisplayTotal,
			orDash(b.Composite.PurificationDisplay),
		}
		if b.Found {
			row[1] = "yes"
			row[2] = orDash(b.Security.CompanyName)
			row[3] = orDash(b.Security.ReportDate)
		}
		t.data = append(t.data, row)
	}
	return t
}

func statusText(available bool, s model.Status) string {
	if !available {
		return "N/A"
	}
	return string(s)
}
