// vgroup runs a group-by plan against datasets of JSON documents.
//
//	vgroup run --dataset clicks=clicks.jsonl plan.yaml
//	vgroup commands
package main

import (
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"gopkg.in/alecthomas/kingpin.v2"
	"www.velocidex.com/golang/vgroup"
)

var (
	app = kingpin.New("vgroup", "Run group-by plans over document datasets.")

	verbose     = app.Flag("verbose", "Log at debug level.").Short('v').Bool()
	config_path = app.Flag("config", "Session config file (YAML).").String()
	group_limit = app.Flag("group_limit", "Maximum number of groups.").Int()
	sequential  = app.Flag("sequential", "Call the datasets one at a time.").Bool()
)

func main() {
	app.HelpFlag.Short('h')
	app.Version(vgroup.VERSION)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := makeLogger()
	var err error
	switch command {
	case run_command.FullCommand():
		err = doRun(logger)

	case validate_command.FullCommand():
		err = doValidate()

	case commands_command.FullCommand():
		err = doCommands()
	}

	if err != nil {
		level.Error(logger).Log("msg", "failed", "err", err)
		os.Exit(1)
	}
}

func makeLogger() log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if *verbose {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}
