// vi: sw=4 ts=4:

package managers

import (
	"testing"

	"github.com/conorye/sdn-qos/gizmos"
)

func TestDscpAllocatorKnownClasses(t *testing.T) {
	da := Mk_dscp_allocator()

	var tests = []struct {
		priority int
		dscp     int
	}{
		{gizmos.CLASS_BEST, 0},
		{gizmos.CLASS_SILVER, 16},
		{gizmos.CLASS_GOLD, 32},
	}

	for _, tc := range tests {
		got, err := da.Allocate(tc.priority)
		if err != nil {
			t.Fatalf("Allocate(%d) unexpected error: %s", tc.priority, err)
		}
		if got != tc.dscp {
			t.Errorf("Allocate(%d) = %d, want %d", tc.priority, got, tc.dscp)
		}
		if !da.In_use(got) {
			t.Errorf("dscp %d should be in_use after Allocate", got)
		}
	}
}

func TestDscpAllocatorUnknownPriority(t *testing.T) {
	da := Mk_dscp_allocator()
	if _, err := da.Allocate(99); err == nil {
		t.Errorf("Allocate with unknown priority should error")
	}
}

func TestDscpAllocatorReleaseRefcount(t *testing.T) {
	da := Mk_dscp_allocator()
	dscp, _ := da.Allocate(gizmos.CLASS_GOLD)
	da.Allocate(gizmos.CLASS_GOLD) // second holder of the same codepoint

	da.Release(dscp)
	if !da.In_use(dscp) {
		t.Errorf("dscp should still be in_use while one holder remains")
	}

	da.Release(dscp)
	if da.In_use(dscp) {
		t.Errorf("dscp should be free once all holders release")
	}

	da.Release(dscp) // extra release must not go negative
	if da.In_use(dscp) {
		t.Errorf("over-release must not resurrect in_use")
	}
}

func TestQueueAllocatorIsIdentity(t *testing.T) {
	qa := Mk_queue_allocator()
	for _, p := range []int{gizmos.CLASS_BEST, gizmos.CLASS_SILVER, gizmos.CLASS_GOLD} {
		if got := qa.Allocate(p); got != p {
			t.Errorf("Allocate(%d) = %d, want %d", p, got, p)
		}
	}
}

func TestPortAllocatorRoundRobinSkipsReserved(t *testing.T) {
	pa := Mk_port_allocator(40000, 40003, []int{40001})

	src, dst, err := pa.Allocate("10.0.0.1", "10.0.0.2", 0, 1)
	if err != nil {
		t.Fatalf("Allocate unexpected error: %s", err)
	}
	if src == 40001 || dst == 40001 {
		t.Errorf("Allocate returned a reserved port: src=%d dst=%d", src, dst)
	}
	if src == dst {
		t.Errorf("Allocate returned the same port for src and dst: %d", src)
	}
}

func TestPortAllocatorFixedDstPort(t *testing.T) {
	pa := Mk_port_allocator(40000, 40010, nil)

	src, dst, err := pa.Allocate("10.0.0.1", "10.0.0.2", 443, 2)
	if err != nil {
		t.Fatalf("Allocate unexpected error: %s", err)
	}
	if dst != 443 {
		t.Errorf("Allocate with fixed_dst_port = %d, want 443", dst)
	}
	if src == 443 {
		t.Errorf("src_port collided with fixed dst_port")
	}
}

func TestPortAllocatorExhaustion(t *testing.T) {
	pa := Mk_port_allocator(40000, 40001, nil)

	// Consume both ports as a single fixed-dst-port allocation each time so
	// every call only needs one free src_port out of the tiny 2-port range.
	if _, _, err := pa.Allocate("a", "z", 1, 1); err != nil {
		t.Fatalf("first allocate should succeed: %s", err)
	}
	if _, _, err := pa.Allocate("a", "z", 1, 2); err != nil {
		t.Fatalf("second allocate should succeed: %s", err)
	}

	// Every port in [40000,40001] is now round-robin-visited again on the
	// next call since Allocate does not itself remove a src_port from
	// future circulation -- only next_free_locked's reserved-set does that.
	// Exhaust the range by reserving every port directly instead.
	pa2 := Mk_port_allocator(50000, 50000, []int{50000})
	if _, _, err := pa2.Allocate("a", "b", 1, 1); err == nil {
		t.Errorf("Allocate over a fully reserved range should error")
	}
}

func TestPortAllocatorRelease(t *testing.T) {
	pa := Mk_port_allocator(40000, 40010, nil)
	src, dst, _ := pa.Allocate("10.0.0.1", "10.0.0.2", 80, 1)
	pa.Release("10.0.0.1", src, "10.0.0.2", dst)

	if _, have := pa.inuse[tuple_key("10.0.0.1", src, "10.0.0.2", dst)]; have {
		t.Errorf("Release did not remove the 4-tuple from inuse")
	}
}
