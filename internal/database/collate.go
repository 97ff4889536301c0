package database

import (
	"database/sql/driver"
	"strings"

	"modernc.org/sqlite"
)

// unicodeLowerFunc folds text the way search terms are folded. SQLite's
// built-in LOWER only handles ASCII.
const unicodeLowerFunc = "unicode_lower"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(unicodeLowerFunc, 1, unicodeLower); err != nil {
		panic(err)
	}
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// lower names the SQL function that lowercases a column for matching.
func (d dialect) lower() string {
	if d == dialectPostgres {
		return "LOWER"
	}
	return unicodeLowerFunc
}
