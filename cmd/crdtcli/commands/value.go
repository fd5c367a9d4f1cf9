package commands

import (
	"strconv"

	"github.com/ledgerwatch/turbocrdt/common"
)

// parseScalar turns a CLI-supplied string into a typed common.Value: it
// tries bool, then int64, then float64, falling back to a plain string —
// "42" becomes an int, not the text "42", which matters once the value is
// later materialized back out by `get`/`export`.
func parseScalar(s string) common.Value {
	if b, err := strconv.ParseBool(s); err == nil {
		return common.BoolValue(b)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return common.IntValue(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return common.FloatValue(f)
	}
	return common.StrValue(s)
}
