package vgroup

import (
	"www.velocidex.com/golang/vgroup/commands"
	"www.velocidex.com/golang/vgroup/marshal"
	"www.velocidex.com/golang/vgroup/session"
	"www.velocidex.com/golang/vgroup/types"
)

// Aliases to public types.
type Any = types.Any
type Term = types.Term

type Session = session.Session
type Dataset = session.Dataset
type Config = session.Config

type Command = commands.Command

type Rows = marshal.Rows
type Values = marshal.Values

func NewSession(config Config, datasets ...*Dataset) (*Session, error) {
	return session.New(config, datasets...)
}
