package types

import "github.com/Velocidex/ordereddict"

// An Explainer receives callbacks as plans execute. It is used to
// trace and debug plans.
type Explainer interface {
	// Called when the args of a plan step are decoded into a
	// command. err is the decoding error if any.
	ParseArgs(name string, args *ordereddict.Dict, result interface{}, err error)

	// Called before the command runs with the decoded descriptor.
	StartCommand(name string, command interface{})

	// Called after the command completes. err is the command error
	// if any. num_groups and depth describe the session afterwards.
	EndCommand(name string, num_groups, depth int, err error)
}
