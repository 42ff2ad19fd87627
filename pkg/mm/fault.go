package mm

import (
	"context"

	"vmkernel.dev/core/pkg/hostarch"
	"vmkernel.dev/core/pkg/log"
	"vmkernel.dev/core/pkg/pagefault"
)

// HandleFault is the dispatcher of spec.md §2 and §4.5: it resolves a
// faulting virtual address to the owning Region via the global registry
// and hands the fault to that Region's own classify-and-resolve state
// machine. A vaddr that matches no registered Region is itself a crash:
// the original's equivalent path (no VMRange found for the faulting
// address) terminates the faulter rather than the kernel.
func (m *Manager) HandleFault(ctx context.Context, vaddr hostarch.Addr, kind pagefault.Kind, access pagefault.Access) pagefault.Response {
	r := m.FindRegion(vaddr)
	if r == nil {
		log.Warningf("mm: page fault at %s has no owning region", vaddr)
		return pagefault.ShouldCrash
	}
	return r.HandleFault(ctx, pagefault.Fault{VAddr: vaddr, Kind: kind, Access: access})
}
