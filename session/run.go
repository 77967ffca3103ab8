package session

import (
	"context"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// Run one command against the session. Logs, traces through the
// explainer and instruments the command.
func (self *Session) RunCommand(ctx context.Context, name string, descriptor interface{},
	fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {

	self.stats.IncCommands()
	self.metrics.commands.WithLabelValues(name).Inc()

	explainer := self.config.Explainer
	if explainer != nil {
		explainer.StartCommand(name, descriptor)
	}

	level.Debug(self.logger).Log("msg", "running command", "command", name)

	start := time.Now()
	result, err := fn(ctx)
	self.metrics.duration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	state := self.Snapshot()
	if explainer != nil {
		explainer.EndCommand(name, state.NumGroups, state.Depth, err)
	}

	if err != nil {
		self.metrics.failures.WithLabelValues(name).Inc()
		level.Error(self.logger).Log("msg", "command failed", "command", name, "err", err)
		return nil, errors.Wrap(err, name)
	}

	level.Debug(self.logger).Log("msg", "command done", "command", name,
		"groups", state.NumGroups, "depth", state.Depth,
		"duration", time.Since(start))
	return result, nil
}
