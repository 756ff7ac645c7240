package schema

import (
	"fmt"
	"strings"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// SchemaError reports a strict resolution failure.
type SchemaError struct {
	Table     string
	Role      string
	Synonyms  []string
	Available []string
	Reason    string
	Err       error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("schema: %s.%s: %s", e.Table, e.Role, e.Reason)
	if len(e.Synonyms) > 0 {
		msg += " (tried " + strings.Join(e.Synonyms, ", ") + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() []error {
	if e.Err != nil {
		return []error{allocation.ErrSchema, e.Err}
	}
	return []error{allocation.ErrSchema}
}
