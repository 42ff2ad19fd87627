package vmo

// PurgeableRange is a user-controllable volatility registration over a
// contiguous span of an AnonymousObject's pages: [Base, Base+Count). It
// is the Go analog of the original's PurgeablePageRanges/VolatilePageRange
// pairing, simplified to one contiguous span per registration rather than
// a dynamic set of sub-ranges — this core has no process-level madvise
// splitting logic driving finer-grained registrations.
type PurgeableRange struct {
	base, count uint64
	volatile    bool
	wasPurged   bool
}

// Base returns the registration's starting page index.
func (r *PurgeableRange) Base() uint64 { return r.base }

// Count returns the registration's page count.
func (r *PurgeableRange) Count() uint64 { return r.count }

// Volatile reports whether the range is currently marked volatile.
func (r *PurgeableRange) Volatile() bool { return r.volatile }

// WasPurged reports whether this registration's range has ever had pages
// actually purged while volatile, the equivalent of
// PurgeablePageRanges::was_purged, consumed by callers (e.g. madvise)
// that need to distinguish "nothing to purge" from "some pages were
// purged and must be re-faulted in".
func (r *PurgeableRange) WasPurged() bool { return r.wasPurged }

// end returns the page index one past the end of the range.
func (r *PurgeableRange) end() uint64 { return r.base + r.count }

// overlapsPage reports whether pageIdx falls within this range.
func (r *PurgeableRange) overlapsPage(pageIdx uint64) bool {
	return pageIdx >= r.base && pageIdx < r.end()
}
