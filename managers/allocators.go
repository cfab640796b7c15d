// vi: sw=4 ts=4:

/*

	Mnemonic:	allocators
	Abstract:	DSCP, queue and ephemeral-port allocators that feed the
				scheduler's admission loop. The DSCP allocator keeps a real
				issued-set (rather than collapsing to a constant table) --
				see DESIGN.md for why: a future per-flow codepoint scheme
				should not require redesigning the ledger's caller.

	Date:		31 July 2026
	Author:		C. Oronye
*/

package managers

import (
	"fmt"
	"sync"

	"github.com/conorye/sdn-qos/gizmos"
)

// Fixed priority -> DSCP codepoint map, per class.
var dscp_by_priority = map[int]int{
	gizmos.CLASS_BEST:   0,
	gizmos.CLASS_SILVER: 16,
	gizmos.CLASS_GOLD:   32,
}

/*
	Dscp_allocator hands out the fixed codepoint for a priority and tracks
	how many flows currently hold it, so a priority can be reissued freely
	while still being able to say "nothing is using dscp X" at a glance.
*/
type Dscp_allocator struct {
	mu     sync.Mutex
	issued map[int]int // dscp -> refcount
}

func Mk_dscp_allocator() *Dscp_allocator {
	return &Dscp_allocator{issued: make(map[int]int)}
}

func (da *Dscp_allocator) Allocate(priority int) (dscp int, err error) {
	dscp, known := dscp_by_priority[priority]
	if !known {
		err = fmt.Errorf("allocators: unknown priority class: %d", priority)
		return 0, err
	}

	da.mu.Lock()
	da.issued[dscp]++
	da.mu.Unlock()

	return dscp, nil
}

func (da *Dscp_allocator) Release(dscp int) {
	da.mu.Lock()
	defer da.mu.Unlock()

	if da.issued[dscp] > 0 {
		da.issued[dscp]--
	}
}

func (da *Dscp_allocator) In_use(dscp int) bool {
	da.mu.Lock()
	defer da.mu.Unlock()
	return da.issued[dscp] > 0
}

/*
	Queue_allocator is the trivial case called out in the spec: the queue id
	equals the priority directly, matching a three-class datapath queue
	configuration provisioned out of band. Kept as a type (rather than
	inlined at the call site) so it reads the same as the other two
	allocators and can grow teeth later without disturbing callers.
*/
type Queue_allocator struct{}

func Mk_queue_allocator() *Queue_allocator {
	return &Queue_allocator{}
}

func (qa *Queue_allocator) Allocate(priority int) int {
	return priority
}

/*
	Port_allocator round-robins source ports over [base, max], skipping a
	reserved set (REST port, TCP signalling port, host PERMIT port), and
	maintains the injective (src_ip, src_port, dst_ip, dst_port) -> flow_id
	mapping invariant 2 requires.
*/
type Port_allocator struct {
	mu       sync.Mutex
	base     int
	max      int
	next     int
	reserved map[int]bool
	inuse    map[string]int // 4-tuple key -> flow_id
}

func Mk_port_allocator(base int, max int, reserved []int) *Port_allocator {
	rs := make(map[int]bool, len(reserved))
	for _, p := range reserved {
		rs[p] = true
	}

	return &Port_allocator{
		base:     base,
		max:      max,
		next:     base,
		reserved: rs,
		inuse:    make(map[string]int),
	}
}

func tuple_key(src_ip string, src_port int, dst_ip string, dst_port int) string {
	return fmt.Sprintf("%s:%d-%s:%d", src_ip, src_port, dst_ip, dst_port)
}

/*
	Allocate picks the next free source port by round robin and, if
	fixed_dst_port is 0, a destination port the same way; otherwise the
	caller-supplied fixed_dst_port is used as-is. Registers the resulting
	4-tuple against flow_id so the mapping stays injective.
*/
func (pa *Port_allocator) Allocate(src_ip string, dst_ip string, fixed_dst_port int, flow_id int) (src_port int, dst_port int, err error) {
	pa.mu.Lock()
	defer pa.mu.Unlock()

	src_port, err = pa.next_free_locked()
	if err != nil {
		return 0, 0, err
	}

	if fixed_dst_port != 0 {
		dst_port = fixed_dst_port
	} else {
		dst_port, err = pa.next_free_locked()
		if err != nil {
			return 0, 0, err
		}
	}

	pa.inuse[tuple_key(src_ip, src_port, dst_ip, dst_port)] = flow_id
	return src_port, dst_port, nil
}

func (pa *Port_allocator) next_free_locked() (int, error) {
	span := pa.max - pa.base + 1
	for i := 0; i < span; i++ {
		p := pa.next
		pa.next++
		if pa.next > pa.max {
			pa.next = pa.base
		}

		if pa.reserved[p] {
			continue
		}
		return p, nil
	}

	return 0, fmt.Errorf("allocators: port range [%d,%d] exhausted", pa.base, pa.max)
}

func (pa *Port_allocator) Release(src_ip string, src_port int, dst_ip string, dst_port int) {
	pa.mu.Lock()
	defer pa.mu.Unlock()
	delete(pa.inuse, tuple_key(src_ip, src_port, dst_ip, dst_port))
}
