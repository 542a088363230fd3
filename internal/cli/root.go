// Package cli implements edactl, the headless front end of the workbench.
//
// Every command loads one file into a private in-memory session, runs the
// same service operations the web UI uses, and writes the result to disk
// or stdout.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JonMunkholm/workbench/internal/core"
	"github.com/JonMunkholm/workbench/internal/export"
	"github.com/JonMunkholm/workbench/internal/loader"
	"github.com/JonMunkholm/workbench/internal/logging"
	"github.com/JonMunkholm/workbench/internal/session"
)

// sessionID is the single session a command works in.
const sessionID = "edactl"

// app carries state shared by the commands of one invocation.
type app struct {
	v        *viper.Viper
	cfgFile  string
	now      func() time.Time
	settings Settings
	svc      *core.Service
}

// NewRootCommand builds the edactl command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(time.Now)
}

func newRootCommand(now func() time.Time) *cobra.Command {
	a := &app{v: viper.New(), now: now}

	root := &cobra.Command{
		Use:               "edactl",
		Short:             "Exploratory data analysis from the command line",
		Long:              `edactl loads a CSV, TXT, Excel or Parquet file, runs workbench operations on it and writes reports and cleaned datasets.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./.edactl.yaml or ~/.edactl.yaml)")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("output-dir", "", "directory for exports written without --out")
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("output_dir", pf.Lookup("output-dir"))

	root.AddCommand(
		a.reportCommand(),
		a.convertCommand(),
		a.applyCommand(),
		a.outliersCommand(),
	)
	return root
}

// Execute runs edactl with the process arguments.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, " ", core.FormatUserError(err))
		}
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	s, err := LoadSettings(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = s
	logging.SetupWriter(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat)

	a.svc = core.NewService(session.NewMemoryStore(), core.Config{
		MaxFileSize: s.MaxFileSize,
		Analysis:    s.Analysis,
	}, core.WithClock(a.now))
	return nil
}

// load reads path into the command session. An empty delimiter means comma.
func (a *app) load(ctx context.Context, path, delimiter string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	var opts []loader.Option
	if delimiter != "" {
		d, err := export.ParseDelimiter(delimiter)
		if err != nil {
			return err
		}
		opts = append(opts, loader.WithDelimiter(d))
	}
	snap, err := a.svc.LoadDataset(ctx, sessionID, filepath.Base(path), data, opts...)
	if err != nil {
		return err
	}
	logging.FromContext(ctx).Info("dataset loaded",
		"file", snap.Meta.FileName,
		"rows", snap.Table.Rows(),
		"cols", snap.Table.Cols(),
	)
	return nil
}

// exportFlags are shared by the commands that write a dataset.
type exportFlags struct {
	format    string
	delimiter string
	index     bool
	out       string
}

func (f *exportFlags) register(cmd *cobra.Command, defaultFormat export.Format) {
	cmd.Flags().StringVarP(&f.format, "format", "f", string(defaultFormat), "output format: csv, json, xlsx, zip")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", "", "CSV output separator (default from config)")
	cmd.Flags().BoolVar(&f.index, "index", false, "write a leading row index column")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output path, or - for stdout (default: output dir with a timestamped name)")
}

// write exports the session dataset according to f.
func (a *app) write(cmd *cobra.Command, f exportFlags) error {
	format, err := export.ParseFormat(f.format)
	if err != nil {
		return err
	}
	delim := f.delimiter
	if delim == "" {
		delim = a.settings.Delimiter
	}
	d, err := export.ParseDelimiter(delim)
	if err != nil {
		return err
	}

	p, err := a.svc.Export(cmd.Context(), sessionID, format, export.Options{Delimiter: d, IncludeIndex: f.index})
	if err != nil {
		return err
	}
	return a.writePayload(cmd, p, f.out)
}

func (a *app) writePayload(cmd *cobra.Command, p export.Payload, out string) error {
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(p.Data)
		return err
	}
	path := out
	if path == "" {
		if err := os.MkdirAll(a.settings.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path = filepath.Join(a.settings.OutputDir, p.FileName)
	}
	if err := os.WriteFile(path, p.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d bytes)\n", path, len(p.Data))
	return nil
}
