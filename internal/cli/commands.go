package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/recipe"
	"github.com/JonMunkholm/workbench/internal/transform"
)

func (a *app) reportCommand() *cobra.Command {
	var (
		delimiter string
		out       string
	)
	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Write the JSON EDA report of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context(), args[0], delimiter); err != nil {
				return err
			}
			p, err := a.svc.Export(cmd.Context(), sessionID, export.FormatJSON, export.Options{})
			if err != nil {
				return err
			}
			return a.writePayload(cmd, p, out)
		},
	}
	cmd.Flags().StringVar(&delimiter, "input-delimiter", "", "input separator for csv and txt files (default: comma)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path, or - for stdout")
	return cmd
}

func (a *app) convertCommand() *cobra.Command {
	var (
		delimiter string
		flags     exportFlags
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a file to csv, xlsx, json or a zip package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context(), args[0], delimiter); err != nil {
				return err
			}
			return a.write(cmd, flags)
		},
	}
	cmd.Flags().StringVar(&delimiter, "input-delimiter", "", "input separator for csv and txt files (default: comma)")
	flags.register(cmd, export.FormatCSV)
	return cmd
}

func (a *app) applyCommand() *cobra.Command {
	var (
		recipePath string
		delimiter  string
		flags      exportFlags
	)
	cmd := &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply a cleaning recipe and write the result",
		Long: `Apply runs the steps of a YAML or JSON recipe in order. Any failing
step aborts the run and nothing is written.`,
		Example: `  edactl apply sales.csv --recipe clean.yaml -f xlsx`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := recipe.ParseFile(recipePath)
			if err != nil {
				return err
			}
			if err := a.load(cmd.Context(), args[0], delimiter); err != nil {
				return err
			}
			_, results, err := a.svc.ApplyRecipe(cmd.Context(), sessionID, rec)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.ErrOrStderr(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tROWS\tCOLS")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Op, r.Rows, r.Cols)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return a.write(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "recipe file (YAML or JSON)")
	_ = cmd.MarkFlagRequired("recipe")
	cmd.Flags().StringVar(&delimiter, "input-delimiter", "", "input separator for csv and txt files (default: comma)")
	flags.register(cmd, export.FormatCSV)
	return cmd
}

func (a *app) outliersCommand() *cobra.Command {
	var (
		column    string
		action    string
		delimiter string
		flags     exportFlags
	)
	cmd := &cobra.Command{
		Use:   "outliers <file>",
		Short: "Inspect or treat IQR outliers of a numeric column",
		Long: `Without --action the IQR bounds and outlier counts of the column are
printed as JSON. With --action cap or remove the treated dataset is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd.Context(), args[0], delimiter); err != nil {
				return err
			}
			if action == "" {
				rep, err := a.svc.InspectOutliers(cmd.Context(), sessionID, column)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(export.SafeJSON(rep))
			}

			act, err := transform.ParseOutlierAction(action)
			if err != nil {
				return err
			}
			if _, err := a.svc.TreatOutliers(cmd.Context(), sessionID, column, act); err != nil {
				return err
			}
			return a.write(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&column, "column", "c", "", "numeric column to inspect")
	_ = cmd.MarkFlagRequired("column")
	cmd.Flags().StringVar(&action, "action", "", "treatment to apply: cap or remove")
	cmd.Flags().StringVar(&delimiter, "input-delimiter", "", "input separator for csv and txt files (default: comma)")
	flags.register(cmd, export.FormatCSV)
	return cmd
}
