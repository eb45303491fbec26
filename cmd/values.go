package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/shariah-screen/internal/dataset"
)

var valuesCmd = &cobra.Command{
	Use:   "values <field>",
	Short: "List the distinct values of a field",
	Long:  fmt.Sprintf("Lists sorted distinct non-empty values. Fields: %s.", strings.Join(dataset.DistinctFields(), ", ")),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd.Context())
		if err != nil {
			return err
		}
		values, err := ds.ListDistinctValues(args[0])
		if err != nil {
			return err
		}

		t := table{cols: []string{strings.ToUpper(args[0])}}
		for _, v := range values {
			t.data = append(t.data, []string{v})
		}
		f, _ := parseFormat(outputFormat)
		return render(os.Stdout, f, values, t)
	},
}

func init() {
	rootCmd.AddCommand(valuesCmd)
}
