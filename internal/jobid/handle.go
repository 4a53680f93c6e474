// internal/jobid/handle.go
package jobid

import (
	"fmt"
	"regexp"
	"strconv"
)

// Handle identifies one job. It is only meaningful while the generation stored
// in the job table at Index still equals ID.
type Handle struct {
	Index int32
	ID    uint32
}

// Void is the handle meaning "no job", used as the predecessor of a job that
// depends on nothing.
var Void = Handle{Index: -1}

// IsVoid reports whether h is the void handle.
func (h Handle) IsVoid() bool {
	return h.Index < 0
}

// String serializes the handle into its canonical form.
func (h Handle) String() string {
	if h.IsVoid() {
		return "job[void]"
	}
	return fmt.Sprintf("job[%d#%d]", h.Index, h.ID)
}

var handleRegex = regexp.MustCompile(`^job\[(?:(void)|(\d+)#(\d+))\]$`)

// Parse creates a Handle from its canonical string representation.
func Parse(raw string) (Handle, error) {
	if raw == "" {
		return Void, fmt.Errorf("handle cannot be empty")
	}

	matches := handleRegex.FindStringSubmatch(raw)
	if matches == nil {
		return Void, fmt.Errorf("invalid handle format: %q", raw)
	}
	if matches[1] != "" {
		return Void, nil
	}

	index, err := strconv.ParseInt(matches[2], 10, 32)
	if err != nil {
		return Void, fmt.Errorf("invalid handle index in %q: %w", raw, err)
	}
	id, err := strconv.ParseUint(matches[3], 10, 32)
	if err != nil {
		return Void, fmt.Errorf("invalid handle generation in %q: %w", raw, err)
	}

	return Handle{Index: int32(index), ID: uint32(id)}, nil
}
