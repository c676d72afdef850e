package domain

import "fmt"

// Op identifies the kind of a command record.
type Op uint8

const (
	OpSet    Op = 1
	OpRemove Op = 2
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Command is the unit of durability and replay in the log.
// A Remove command never carries a value.
type Command struct {
	Op    Op     `msgpack:"op"`
	Key   string `msgpack:"k"`
	Value string `msgpack:"v,omitempty"`
}

// NewSet creates a Set command.
func NewSet(key, value string) Command {
	return Command{Op: OpSet, Key: key, Value: value}
}

// NewRemove creates a Remove command.
func NewRemove(key string) Command {
	return Command{Op: OpRemove, Key: key}
}

// Valid reports whether the command has a known op.
func (c Command) Valid() bool {
	return c.Op == OpSet || c.Op == OpRemove
}
