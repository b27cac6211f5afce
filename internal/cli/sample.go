package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Conceptual-Machines/nearfield-gen/internal/config"
	"github.com/Conceptual-Machines/nearfield-gen/internal/runner"
	"github.com/Conceptual-Machines/nearfield-gen/internal/schema"
	"github.com/spf13/cobra"
)

var sampleBindings = []flagBinding{
	{config.KeyNumImages, "num-images"},
}

func newSampleCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print sampled parameter sets without rendering",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "csv" && format != "json" {
				return fmt.Errorf("%w: format %q (want csv or json)", config.ErrInvalidConfig, format)
			}
			cfg, err := a.load(cmd, sampleBindings)
			if err != nil {
				return err
			}
			sets, err := runner.SampleParameters(cfg)
			if err != nil {
				return err
			}
			if format == "json" {
				return writeJSON(cmd.OutOrStdout(), sets)
			}
			return writeCSV(cmd.OutOrStdout(), sets)
		},
	}

	cmd.Flags().Int("num-images", a.v.GetInt(config.KeyNumImages), "Number of parameter sets")
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or json")
	return cmd
}

func writeCSV(w io.Writer, sets []schema.ParameterSet) error {
	cw := csv.NewWriter(w)
	if len(sets) > 0 {
		if err := cw.Write(sets[0].Names()); err != nil {
			return err
		}
	}
	for _, ps := range sets {
		if err := cw.Write(ps.Strings()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, sets []schema.ParameterSet) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sets)
}
