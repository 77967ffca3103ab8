package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"www.velocidex.com/golang/vgroup"
	"www.velocidex.com/golang/vgroup/explain"
	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/session"
)

var (
	run_command  = app.Command("run", "Run a plan.")
	run_plan     = run_command.Arg("plan", "Plan file (YAML).").Required().ExistingFile()
	run_datasets = run_command.Flag("dataset",
		"A dataset as name=path to a JSON lines file. May be repeated.").
		Required().StringMap()
	run_time_field = run_command.Flag("time_field",
		"Int field holding the document unix time.").Default("unixtime").String()
	run_format = run_command.Flag("format", "Output format.").
			Default("json").Enum("json", "tsv")
	run_explain = run_command.Flag("explain", "Trace every command.").Bool()
	run_stats   = run_command.Flag("stats", "Print session stats and metrics when done.").Bool()

	validate_command = app.Command("validate", "Decode a plan without running it.")
	validate_plan    = validate_command.Arg("plan", "Plan file (YAML).").Required().ExistingFile()

	commands_command = app.Command("commands", "List the plan steps and their arguments.")
)

func loadConfig(logger log.Logger) (session.Config, error) {
	config := session.DefaultConfig()
	if *config_path != "" {
		var err error
		config, err = session.LoadConfig(*config_path)
		if err != nil {
			return config, err
		}
	}

	if *group_limit > 0 {
		config.GroupLimit = *group_limit
	}
	if *sequential {
		config.ParallelSessions = false
	}
	config.Logger = logger
	if *run_explain {
		config.Explainer = explain.NewLoggingExplainer(logger)
	}
	return config, nil
}

func doRun(logger log.Logger) error {
	config, err := loadConfig(logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	if *run_stats {
		config.Registerer = registry
	}

	plan, err := vgroup.LoadPlan(*run_plan)
	if err != nil {
		return err
	}

	datasets, err := loadDatasets(*run_datasets, *run_time_field)
	if err != nil {
		return err
	}

	s, err := vgroup.NewSession(config, datasets...)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	results, err := vgroup.Execute(ctx, s, plan)
	for _, step := range results {
		if step.Result == nil {
			continue
		}
		level.Debug(logger).Log("msg", "writing result", "step", step.Index, "command", step.Name)

		switch *run_format {
		case "tsv":
			fmt.Fprintf(out, "# %d %s\n", step.Index, step.Name)
			err := marshal.WriteTSV(out, step.Result)
			if err != nil {
				return err
			}
		default:
			err := marshal.WriteJSON(out, step.Result)
			if err != nil {
				return err
			}
		}
	}
	if err != nil {
		return err
	}

	if *run_stats {
		return writeStats(s, registry)
	}
	return nil
}

func writeStats(s *session.Session, registry *prometheus.Registry) error {
	serialized, err := s.Stats().Snapshot().MarshalJSON()
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintf(os.Stderr, "%s\n", serialized)

	families, err := registry.Gather()
	if err != nil {
		return errors.WithStack(err)
	}
	for _, family := range families {
		_, err := expfmt.MetricFamilyToText(os.Stderr, family)
		if err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func doValidate() error {
	plan, err := vgroup.LoadPlan(*validate_plan)
	if err != nil {
		return err
	}
	_, err = vgroup.Compile(plan, nil)
	if err != nil {
		return err
	}
	fmt.Printf("%d steps ok\n", len(plan.Steps))
	return nil
}

func doCommands() error {
	descriptions, err := vgroup.DescribeCommands()
	if err != nil {
		return err
	}
	for _, description := range descriptions {
		fmt.Println(description.String())
	}
	return nil
}
