package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/shariah-screen/internal/dataset"
	"github.com/sells-group/shariah-screen/internal/model"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List screening records",
	Long:  "Lists records ordered by ticker and newest report date, with free-text search and exact-match filters.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		filter, err := listFilter(cmd)
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		size, _ := cmd.Flags().GetInt("page-size")

		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		res := ds.ListRecords(filter, page, size)

		f, _ := parseFormat(outputFormat)
		if err := render(os.Stdout, f, res, recordTable(res.Records)); err != nil {
			return err
		}
		if f == formatTable {
			fmt.Fprintf(os.Stderr, "page %d (%d per page), %d matching records\n", res.Page, res.PageSize, res.Total)
		}
		return nil
	},
}

func init() {
	addListFlags(listCmd.Flags())
	rootCmd.AddCommand(listCmd)
}

func addListFlags(f *pflag.FlagSet) {
	f.String("search", "", "substring of ticker or company name")
	f.String("classification", "", "final classification (e.g. COMPLIANT, non-compliant)")
	f.String("sector", "", "sector")
	f.String("risk-level", "", "risk level")
	f.String("auto-banned", "", "true or false")
	f.String("zakat-status", "", "zakat status")
	f.String("zakat-methodology", "", "zakat methodology")
	f.Int("page", 1, "page number (1-based)")
	f.Int("page-size", dataset.DefaultPageSize, fmt.Sprintf("records per page (max %d)", dataset.MaxPageSize))
}

func listFilter(cmd *cobra.Command) (dataset.Filter, error) {
	f := cmd.Flags()
	filter := dataset.Filter{}
	filter.Search, _ = f.GetString("search")
	filter.Classification, _ = f.GetString("classification")
	filter.Sector, _ = f.GetString("sector")
	filter.RiskLevel, _ = f.GetString("risk-level")
	filter.ZakatStatus, _ = f.GetString("zakat-status")
	filter.ZakatMethodology, _ = f.GetString("zakat-methodology")

	if raw, _ := f.GetString("auto-banned"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, eris.Errorf("list: --auto-banned must be true or false, got %q", raw)
		}
		filter.AutoBanned = &v
	}
	return filter, nil
}

func recordTable(records []*model.ScreeningRecord) table {
	t := table{cols: []string{"UPSERT_KEY", "TICKER", "COMPANY", "REPORT_DATE", "SECTOR", "CLASSIFICATION", "AUTO_BANNED"}}
	for _, r := range records {
		banned := "-"
		if r.AutoBanned != nil {
			banned = strconv.FormatBool(*r.AutoBanned)
		}
		t.data = append(t.data, []string{
			r.UpsertKey,
			r.Ticker,
			orDash(r.CompanyName),
			orDash(r.ReportDate),
			orDash(r.Sector),
			orDash(string(r.FinalClassification)),
			banned,
		})
	}
	return t
}
