package dal

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// flag decodes a loosely-typed boolean column. known is false for NULL
// or empty values.
func flag(v any) (val, known bool) {
	switch x := v.(type) {
	case nil:
		return false, false
	case bool:
		return x, true
	case int64:
		return x != 0, true
	case float64:
		return x != 0, true
	case []byte:
		return flag(string(x))
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		switch s {
		case "":
			return false, false
		case "0", "false", "no", "n", "off", "f":
			return false, true
		default:
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f != 0, true
			}
			return true, true
		}
	default:
		return false, false
	}
}

// disabled is true only for an explicit false.
func disabled(v any) bool {
	val, known := flag(v)
	return known && !val
}

// enabled is true only for an explicit true.
func enabled(v any) bool {
	val, known := flag(v)
	return known && val
}

// isSetTimestamp reports whether a soft-delete column holds a real date.
func isSetTimestamp(ns sql.NullString) bool {
	if !ns.Valid {
		return false
	}
	s := strings.TrimSpace(ns.String)
	if s == "" || s == "0" || strings.HasPrefix(s, "0000-00-00") || strings.HasPrefix(s, "0001-01-01") {
		return false
	}
	return true
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts the layouts drivers hand back as text.
func parseTimestamp(ns sql.NullString) *time.Time {
	if !isSetTimestamp(ns) {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(ns.String)); err == nil {
			return &t
		}
	}
	return nil
}

func money(ns sql.NullString) decimal.Decimal {
	if !ns.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(ns.String))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func productIDs(ids []allocation.ProductID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func outletIDs(ids []allocation.OutletID) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func chunk(ids []allocation.ProductID, size int) [][]allocation.ProductID {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]allocation.ProductID
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}
