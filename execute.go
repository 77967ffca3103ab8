package vgroup

import (
	"context"

	"github.com/pkg/errors"
	"www.velocidex.com/golang/vgroup/commands"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// The outcome of one plan step. Result is nil for steps which only
// change the grouping.
type StepResult struct {
	Index  int
	Name   string
	Result types.Any
}

// Decode every step of the plan up front so a malformed plan fails
// before anything runs.
func Compile(plan *Plan, explainer types.Explainer) ([]commands.Command, error) {
	result := make([]commands.Command, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		command, err := commands.New(step.Name, step.Args, explainer)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i)
		}
		result = append(result, command)
	}
	return result, nil
}

// Execute runs the plan steps in order. The first failing step aborts
// the plan and the session is left as the last successful step left
// it.
func Execute(ctx context.Context, s *session.Session, plan *Plan) ([]*StepResult, error) {
	var result []*StepResult
	err := execute(ctx, s, plan, func(step *StepResult) error {
		result = append(result, step)
		return nil
	})
	return result, err
}

func execute(ctx context.Context, s *session.Session, plan *Plan,
	fn func(step *StepResult) error) error {
	compiled, err := Compile(plan, s.Config().Explainer)
	if err != nil {
		return err
	}

	for i, command := range compiled {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		value, err := commands.Run(ctx, s, command)
		if err != nil {
			return errors.Wrapf(err, "step %d", i)
		}

		err = fn(&StepResult{Index: i, Name: command.Name(), Result: value})
		if err != nil {
			return err
		}
	}
	return nil
}
