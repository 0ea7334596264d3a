package planner

import (
	"encoding/json"
	"fmt"

	"github.com/fernwoodlabs/fw-backup/pkg/util"
)

// Mode defines how a backup run materializes its artifact.
type Mode int

const (
	// Copy reproduces the source tree as a plain directory.
	Copy Mode = iota
	// Archive compresses the source tree into a single archive file.
	Archive
)

var modeToString = map[Mode]string{
	Copy:    "copy",
	Archive: "archive",
}

var stringToMode map[string]Mode

func init() {
	stringToMode = util.InvertMap(modeToString)
}

func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	if mode, ok := stringToMode[s]; ok {
		return mode, nil
	}
	return Copy, fmt.Errorf("invalid backup mode: %q. Must be 'copy' or 'archive'", s)
}

// MarshalJSON implements the json.Marshaler interface for Mode.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Mode.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("backup mode should be a string, got %s", data)
	}
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
