package vgroup

import (
	"reflect"
	"strings"

	"www.velocidex.com/golang/vgroup/arg_parser"
	"www.velocidex.com/golang/vgroup/commands"
)

// Describes a plan step for help output.
type CommandDescription struct {
	Name string
	Args []*ArgDescription
}

type ArgDescription struct {
	Name     string
	Type     string
	Required bool
}

func (self *CommandDescription) String() string {
	args := make([]string, 0, len(self.Args))
	for _, arg := range self.Args {
		item := arg.Name + ": " + arg.Type
		if arg.Required {
			item += " (required)"
		}
		args = append(args, item)
	}
	return self.Name + "(" + strings.Join(args, ", ") + ")"
}

// Introspect the descriptors of every known command.
func DescribeCommands() ([]*CommandDescription, error) {
	var result []*CommandDescription
	for _, name := range commands.Names() {
		command, err := commands.Blank(name)
		if err != nil {
			return nil, err
		}

		parser, err := arg_parser.GetParser(reflect.ValueOf(command).Elem())
		if err != nil {
			return nil, err
		}

		description := &CommandDescription{Name: name}
		for _, field := range parser.Fields {
			description.Args = append(description.Args, &ArgDescription{
				Name:     field.Field,
				Type:     canonicalTypeName(field.Type),
				Required: field.Required,
			})
		}
		result = append(result, description)
	}
	return result, nil
}

func canonicalTypeName(name string) string {
	switch name {
	case "interface {}":
		return "any"
	case "[]interface {}":
		return "[]any"
	}
	return name
}
