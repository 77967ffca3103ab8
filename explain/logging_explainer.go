package explain

import (
	"github.com/Velocidex/ordereddict"
	"github.com/alecthomas/repr"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// LoggingExplainer traces every command of a plan to a logger.
type LoggingExplainer struct {
	logger log.Logger
}

func NewLoggingExplainer(logger log.Logger) *LoggingExplainer {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &LoggingExplainer{logger: log.With(logger, "component", "explain")}
}

func (self *LoggingExplainer) ParseArgs(name string,
	args *ordereddict.Dict, result interface{}, err error) {
	if err == nil {
		level.Debug(self.logger).Log("msg", "arg parsing", "command", name,
			"args", dump(result))
	} else {
		level.Debug(self.logger).Log("msg", "arg parsing failed", "command", name,
			"err", err, "args", dump(args))
	}
}

func (self *LoggingExplainer) StartCommand(name string, command interface{}) {
	level.Debug(self.logger).Log("msg", "start command", "command", name,
		"descriptor", dump(command))
}

func (self *LoggingExplainer) EndCommand(name string, num_groups, depth int, err error) {
	if err != nil {
		level.Debug(self.logger).Log("msg", "command failed", "command", name,
			"err", err)
		return
	}
	level.Debug(self.logger).Log("msg", "end command", "command", name,
		"groups", num_groups, "depth", depth)
}

func dump(item interface{}) string {
	return repr.String(item, repr.NoIndent(),
		repr.OmitEmpty(true), repr.IgnorePrivate())
}
