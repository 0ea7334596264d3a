package flagparse

import (
	"fmt"

	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// Command defines the command to execute.
type Command int

const (
	None Command = iota
	Backup
	Init
	List
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Backup:  "backup",
	Init:    "init",
	List:    "list",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'backup', 'init', 'list', or 'version'", s)
}
