// Package pagefault defines the fault request/response vocabulary shared
// between pkg/mm (which dispatches a faulting address to its owning
// Region) and pkg/region (which classifies and resolves it). It exists as
// its own package so those two packages can refer to the same types
// without importing each other.
package pagefault

import "vmkernel.dev/core/pkg/hostarch"

// Kind is the CPU-reported reason for a page fault.
type Kind int

const (
	// NotPresent means the PTE for the faulting address was not present.
	NotPresent Kind = iota
	// ProtectionViolation means the PTE was present but denied the
	// attempted access.
	ProtectionViolation
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case NotPresent:
		return "NotPresent"
	case ProtectionViolation:
		return "ProtectionViolation"
	default:
		return "Unknown"
	}
}

// Access is the kind of access that triggered the fault.
type Access int

const (
	// Read is a load.
	Read Access = iota
	// Write is a store.
	Write
	// Execute is an instruction fetch.
	Execute
)

// Fault describes a single page fault.
type Fault struct {
	VAddr  hostarch.Addr
	Kind   Kind
	Access Access
}

// IsRead reports whether the fault was caused by a load.
func (f Fault) IsRead() bool { return f.Access == Read }

// IsWrite reports whether the fault was caused by a store.
func (f Fault) IsWrite() bool { return f.Access == Write }

// Response is returned by a Region's fault handler.
type Response int

const (
	// Continue means the fault was resolved; the faulting instruction
	// should be retried.
	Continue Response = iota
	// OutOfMemory means the fault could not be resolved because the
	// physical frame allocator is exhausted.
	OutOfMemory
	// ShouldCrash means the access was illegal; the faulting thread
	// should be terminated with a fault signal.
	ShouldCrash
)

// String implements fmt.Stringer.
func (r Response) String() string {
	switch r {
	case Continue:
		return "Continue"
	case OutOfMemory:
		return "OutOfMemory"
	case ShouldCrash:
		return "ShouldCrash"
	default:
		return "Unknown"
	}
}
