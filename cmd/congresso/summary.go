package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	model "github.com/tigerroll/congresso/pkg/batch/core/domain/model"
	"github.com/tigerroll/congresso/pkg/batch/support/util/exception"
)

// summaryTable lays out the counters and phase timings of a run.
func summaryTable(res *model.ProcessingResult) pterm.TableData {
	s := res.Stats
	data := pterm.TableData{
		{"", "valor"},
		{"processador", res.Processor},
		{"execução", res.RunID},
		{"status", string(res.Status)},
		{"sucessos", strconv.FormatInt(s.Successes, 10)},
		{"falhas", strconv.FormatInt(s.Failures, 10)},
		{"avisos", strconv.FormatInt(s.Warnings, 10)},
		{"total", strconv.FormatInt(s.Total, 10)},
		{"extraídos", strconv.FormatInt(s.Extracted, 10)},
		{"transformados", strconv.FormatInt(s.Transformed, 10)},
		{"carregados", strconv.FormatInt(s.Loaded, 10)},
		{"perdidos", strconv.FormatInt(s.Lost, 10)},
	}
	for _, t := range res.Timings {
		data = append(data, []string{"fase " + string(t.Phase), t.Duration.Round(time.Millisecond).String()})
	}
	data = append(data, []string{"duração", res.Duration.Round(time.Millisecond).String()})
	return data
}

func printSummary(w io.Writer, res *model.ProcessingResult) {
	table, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(summaryTable(res)).Srender()
	if err != nil {
		pterm.Error.Printfln("Failed to render the summary: %v", err)
		return
	}
	fmt.Fprintln(w, table)

	switch {
	case res.Cancelled:
		pterm.Warning.Printfln("%s cancelled during %s", res.Processor, res.FailedPhase)
	case res.Status == model.ResultError:
		pterm.Error.Printfln("%s failed during %s: %s", res.Processor, res.FailedPhase, res.Error)
		if res.Hint != "" {
			pterm.Info.Printfln("dica: %s", res.Hint)
		}
	case res.Status == model.ResultPartial:
		pterm.Warning.Printfln("%s finished with %d failures and %d lost documents", res.Processor, res.Stats.Failures, res.Stats.Lost)
	default:
		pterm.Success.Printfln("%s finished", res.Processor)
	}
}

// printError reports an error that prevented the run from starting.
func printError(err error) {
	pterm.Error.Println(err.Error())
	if hint := exception.Hints(err); hint != "" {
		pterm.Info.Printfln("dica: %s", hint)
	}
}
