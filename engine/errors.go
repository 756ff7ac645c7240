package engine

import (
	"fmt"
	"strings"

	"github.com/pearcestephens/STOCK-TRANSFER-ENGINE-V3-sub000/allocation"
)

// TransferRef names one (donor, destination) header.
type TransferRef struct {
	Source      allocation.OutletID `json:"source"`
	Destination allocation.OutletID `json:"destination"`
	TransferID  int64               `json:"transfer_id,omitempty"`
}

func (r TransferRef) String() string {
	if r.TransferID != 0 {
		return fmt.Sprintf("%s->%s#%d", r.Source, r.Destination, r.TransferID)
	}
	return fmt.Sprintf("%s->%s", r.Source, r.Destination)
}

// PartialFailureError is returned when a transfer could not be written
// after earlier transfers of the same run were committed. Committed
// transfers stay in the database; the failed one was rolled back and no
// later transfer was attempted.
type PartialFailureError struct {
	RunID     string        `json:"run_id"`
	Committed []TransferRef `json:"committed"`
	Failed    TransferRef   `json:"failed"`
	Err       error         `json:"-"`
}

func (e *PartialFailureError) Error() string {
	committed := make([]string, len(e.Committed))
	for i, c := range e.Committed {
		committed[i] = c.String()
	}
	return fmt.Sprintf("run %s aborted writing %s after %d committed [%s]: %v",
		e.RunID, e.Failed, len(e.Committed), strings.Join(committed, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
