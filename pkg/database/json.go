package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringList stores a []string as a JSON array in a TEXT column so the same
// schema works on postgres and sqlite.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("StringList: unsupported source %T", src)
	}
	if len(b) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("StringList: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// LikeEscape is the ESCAPE clause that goes with ContainsPattern.
const LikeEscape = ` ESCAPE '\'`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern returns a LIKE pattern matching rows whose list holds
// exactly item. Wildcards in item are escaped, so the clause must carry
// LikeEscape.
func ContainsPattern(item string) string {
	b, _ := json.Marshal(item)
	return "%" + likeEscaper.Replace(string(b)) + "%"
}
