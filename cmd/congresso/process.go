package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tigerroll/congresso/internal/app"
	"github.com/tigerroll/congresso/internal/legis"
	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

const dateLayout = "2006-01-02"

// processFlags are the options of a process subcommand.
type processFlags struct {
	limite       int
	entity       string
	dataInicio   string
	dataFim      string
	destino      string
	verbose      bool
	concorrencia int
	incremental  bool
}

func newProcessCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one ETL processor for a legislature",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return exception.NewValidationError("cli", "unknown processor "+strconv.Quote(args[0]),
					"available: "+strings.Join(legis.Names(), ", "))
			}
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newProcessorCmd(c, legis.NameMaterias, "Bills authored by each senator", "senador"),
		newProcessorCmd(c, legis.NameDiscursos, "Speeches of each deputy", "deputado"),
		newProcessorCmd(c, legis.NameMesas, "Board composition of the Senate, the Congress and the Chamber", ""),
	)
	return cmd
}

func newProcessorCmd(c *cli, name, short, entityFlag string) *cobra.Command {
	f := &processFlags{}
	cmd := &cobra.Command{
		Use:   name + " <legislatura>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input(args[0])
			if err != nil {
				return err
			}
			res, err := app.RunApplication(cmd.Context(), app.Invocation{
				Processor:      name,
				Options:        in,
				EnvFilePath:    c.v.GetString(keyEnvFile),
				ConfigFilePath: c.v.GetString(keyConfig),
				EmbeddedConfig: embeddedConfig,
				Overrides:      c.overrides(f.verbose),
			})
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), res)
			c.exitCode = res.Status.ExitCode()
			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVar(&f.limite, "limite", 0, "process at most N legislators")
	if entityFlag != "" {
		fl.StringVar(&f.entity, entityFlag, "", "process a single "+entityFlag+" by numeric code")
	}
	fl.StringVar(&f.dataInicio, "dataInicio", "", "start date (YYYY-MM-DD)")
	fl.StringVar(&f.dataFim, "dataFim", "", "end date (YYYY-MM-DD)")
	fl.StringVar(&f.destino, "destino", "", "primary-store, emulated-store or local-filesystem")
	fl.BoolVar(&f.verbose, "verbose", false, "log at DEBUG level")
	fl.IntVar(&f.concorrencia, "concorrencia", 0, "legislators processed in parallel (default: batch.chunk_size)")
	fl.BoolVar(&f.incremental, "incremental", false, "only crawl the trailing window of batch.incremental_window_days")
	return cmd
}

// input validates the raw command-line values.
func (f *processFlags) input(legislatura string) (model.RunOptionsInput, error) {
	n, err := strconv.Atoi(strings.TrimSpace(legislatura))
	if err != nil {
		return model.RunOptionsInput{}, exception.NewValidationError("cli",
			"legislatura must be a number, got "+strconv.Quote(legislatura), "e.g. 57 for 2023-2027")
	}
	in := model.RunOptionsInput{
		Legislature: n,
		EntityID:    strings.TrimSpace(f.entity),
		Limit:       f.limite,
		Concurrency: f.concorrencia,
		Incremental: f.incremental,
		Verbose:     f.verbose,
	}
	if in.Start, err = parseDate("--dataInicio", f.dataInicio); err != nil {
		return model.RunOptionsInput{}, err
	}
	if in.End, err = parseDate("--dataFim", f.dataFim); err != nil {
		return model.RunOptionsInput{}, err
	}
	if f.destino != "" {
		if in.Destination, err = model.ParseDestination(f.destino); err != nil {
			return model.RunOptionsInput{}, err
		}
	}
	return in, nil
}

func parseDate(flag, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, exception.NewValidationError("cli", flag+" is not a valid date: "+strconv.Quote(s), "dates use the YYYY-MM-DD format")
	}
	return d, nil
}
