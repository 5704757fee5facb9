/*-------------------------------------------------------------------------
 *
 * OPF Community Directory - Member Records
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package directory

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Member is one row of the member table keyed by column name. Absent values
// are always the empty string.
type Member map[string]string

// ID returns the numeric row id, or 0 when the table has none.
func (m Member) ID() int {
	id, _ := strconv.Atoi(m["id"])
	return id
}

// Email is the member's unique external key.
func (m Member) Email() string {
	return m["email"]
}

// Name joins first and last name.
func (m Member) Name() string {
	return strings.TrimSpace(m["first_name"] + " " + m["last_name"])
}

// Get returns a column value; missing columns read as "".
func (m Member) Get(column string) string {
	return m[column]
}

// nullTokens are placeholder strings spreadsheet imports leave behind for
// missing values.
var nullTokens = map[string]bool{"none": true, "null": true, "nan": true}

// blankIfNull maps whitespace-only values and null tokens to "".
func blankIfNull(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || nullTokens[strings.ToLower(trimmed)] {
		return ""
	}
	return s
}

// stringify renders a driver value for the boundary. Nil, blank and
// null-token text values ("None", "null", "NaN") become "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return blankIfNull(t)
	case []byte:
		return blankIfNull(string(t))
	case time.Time:
		return t.Format(time.RFC3339)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
