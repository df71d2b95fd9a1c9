package harvest

import "runtime"

// Clamp controls how a requested worker count relates to the CPU count. The
// image pipeline historically refused to run below the core count while the
// ticker pipeline refused to run above it; both policies stay available as
// explicit configuration.
type Clamp string

// Clamp directions.
const (
	ClampNone     Clamp = "none"
	ClampFloorCPU Clamp = "floor"
	ClampCeilCPU  Clamp = "ceiling"
)

// ParseClamp validates a clamp string from config.
func ParseClamp(s string) (Clamp, error) {
	switch Clamp(s) {
	case ClampNone, ClampFloorCPU, ClampCeilCPU:
		return Clamp(s), nil
	}
	return "", errUnknownClamp(s)
}

type errUnknownClamp string

func (e errUnknownClamp) Error() string {
	return "unknown worker clamp " + string(e)
}

// ClampWorkers returns the effective worker count for a run. A requested
// count below one always becomes one.
func ClampWorkers(requested int, clamp Clamp) int {
	return clampWorkers(requested, clamp, runtime.NumCPU())
}

func clampWorkers(requested int, clamp Clamp, cpus int) int {
	if requested < 1 {
		requested = 1
	}
	switch clamp {
	case ClampFloorCPU:
		if requested < cpus {
			return cpus
		}
	case ClampCeilCPU:
		if requested > cpus {
			return cpus
		}
	}
	return requested
}
