package aggregates

import (
	"errors"
	"fmt"
	"strings"
)

// PartialFailure is returned when a step sequence committed a strict prefix of
// its steps and then failed. The committed effects are not rolled back; the
// consistency checker owns reconciliation.
type PartialFailure struct {
	Op        string
	Completed []string
	Failed    string
	Cause     error
	// Result holds whatever the committed prefix produced (for example the
	// created product), so callers can render a degraded success.
	Result any
}

func (p *PartialFailure) Error() string {
	if p == nil {
		return "<nil>"
	}
	cause := "unknown cause"
	if p.Cause != nil {
		cause = p.Cause.Error()
	}
	return fmt.Sprintf("%s: step %q failed after [%s] committed: %s (%s)",
		p.Op, p.Failed, strings.Join(p.Completed, ", "), cause, CodePartialFailure)
}

func (p *PartialFailure) Unwrap() error { return p.Cause }

// AsPartialFailure returns the PartialFailure in err's chain, if any.
func AsPartialFailure(err error) (*PartialFailure, bool) {
	var pf *PartialFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}
