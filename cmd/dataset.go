package main

import (
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/shariah-screen/internal/config"
	"github.com/sells-group/shariah-screen/internal/dataset"
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect the screening dataset",
}

// -- dataset stats --

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the dataset and report load statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		f, _ := parseFormat(outputFormat)
		return render(os.Stdout, f, ds.Stats(), statsTable(ds.Stats()))
	},
}

// -- dataset fields --

var datasetFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Print the effective field resolution table as YAML",
	Long:  "Prints the compiled-in resolution table merged with dataset.field_table, in the format accepted by dataset.field_table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := initNormalizer(cfg)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(n.Table()); err != nil {
			return eris.Wrap(err, "dataset fields: encode")
		}
		return enc.Close()
	},
}

// -- dataset migrate --

var datasetMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the document table for the sqlite or postgres source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if cfg.Dataset.Source == config.SourceFile {
			return eris.New("dataset migrate: dataset.source must be sqlite or postgres")
		}
		if err := cfg.Validate("screen"); err != nil {
			return err
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("dataset table ready", zap.String("source", cfg.Dataset.Source), zap.String("table", cfg.Store.Table))
		return nil
	},
}

func init() {
	datasetCmd.AddCommand(datasetStatsCmd)
	datasetCmd.AddCommand(datasetFieldsCmd)
	datasetCmd.AddCommand(datasetMigrateCmd)
	rootCmd.AddCommand(datasetCmd)
}

func statsTable(st dataset.LoadStats) table {
	return table{
		cols: []string{"METRIC", "VALUE"},
		data: [][]string{
			{"rows", strconv.Itoa(st.Rows)},
			{"loaded", strconv.Itoa(st.Loaded)},
			{"dropped", strconv.Itoa(st.Dropped)},
			{"duplicates", strconv.Itoa(st.Duplicates)},
			{"anomalies", strconv.Itoa(st.Anomalies)},
			{"table_version", st.TableVersion},
			{"loaded_at", st.LoadedAt.Format(time.RFC3339)},
		},
	}
}
