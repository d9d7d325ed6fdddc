package runner

import (
	"fmt"
	"strings"
)

// Operation is one of the fixed set of things boxkit can do to a project
type Operation int

const (
	OpInit Operation = iota
	OpUp
	OpDown
	OpRun
	OpLogs
	OpPull
	OpStatus
	OpRefresh
	OpProjects
)

var operationNames = [...]string{
	OpInit:     "init",
	OpUp:       "up",
	OpDown:     "down",
	OpRun:      "run",
	OpLogs:     "logs",
	OpPull:     "pull",
	OpStatus:   "status",
	OpRefresh:  "refresh",
	OpProjects: "projects",
}

func (op Operation) String() string {
	if op < 0 || int(op) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(op))
	}
	return operationNames[op]
}

// Operations returns every operation in declaration order
func Operations() []Operation {
	ops := make([]Operation, len(operationNames))
	for i := range operationNames {
		ops[i] = Operation(i)
	}
	return ops
}

// ParseOperation maps a command name to its operation
func ParseOperation(name string) (Operation, error) {
	for i, n := range operationNames {
		if n == name {
			return Operation(i), nil
		}
	}
	return 0, userError(
		fmt.Errorf("%w %q", ErrUnknownOperation, name),
		"valid operations: "+strings.Join(operationNames[:], ", "),
	)
}
