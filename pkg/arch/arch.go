// Package arch stands in for the architecture-specific translation layer
// spec.md §1 says this core must not prescribe: a CPUFeature query kept
// behind an interface, so pkg/region never probes a particular CPU
// directly. The PTE fields that query gates live in pkg/pagetables.
package arch

// Feature is a CPU capability that changes how a PTE should be built.
type Feature int

const (
	// NX is execute-disable support. Region.mapIndividualPage only sets
	// a PTE's ExecuteDisabled bit when the current Processor has NX,
	// mirroring Region.cpp:199's
	// `if (Processor::current().has_feature(CPUFeature::NX))`.
	NX Feature = iota
)

// Processor reports which Features the running CPU supports.
type Processor interface {
	HasFeature(Feature) bool
}

// allFeatures is a software Processor that reports every Feature as
// present. Real CPUID probing is explicitly out of scope (spec.md §1
// Non-goals: "hardware bring-up"); this core only needs some answer to
// "does the current processor support NX".
type allFeatures struct{}

func (allFeatures) HasFeature(Feature) bool { return true }

// current is the process-wide Processor, a stand-in for
// Processor::current() from spec.md §6.
var current Processor = allFeatures{}

// Current returns the current Processor.
func Current() Processor { return current }

// SetCurrent overrides the current Processor, for tests that want to
// exercise the NX-absent path.
func SetCurrent(p Processor) { current = p }
