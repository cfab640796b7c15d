// vi: sw=4 ts=4:

/*

	Mnemonic:	ledger
	Abstract:	Port Ledger -- per-port reservation accounting and the
				admission predicate. Exclusively owned by the scheduler core;
				mutated only through the operations below, which is why a
				plain mutex-guarded struct (rather than its own goroutine and
				channel) satisfies the "single exclusive lock" concurrency
				model sanctioned for this controller.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/res_mgr.go Inventory pattern, adapted
				from a pledge inventory to a per-port bandwidth ledger.
*/

package managers

import (
	"fmt"
	"sync"

	"github.com/conorye/sdn-qos/gizmos"
)

const (
	REASON_OK          = "ok"
	REASON_NO_PORT      = "no_port"
	REASON_NO_CAPACITY  = "no_capacity"
)

type Port_ledger struct {
	mu    sync.Mutex
	ports map[string]*gizmos.Port_state // key: dpid + "/" + port_no
}

func Mk_port_ledger() *Port_ledger {
	return &Port_ledger{ports: make(map[string]*gizmos.Port_state)}
}

func pkey(dpid string, port_no int) string {
	return fmt.Sprintf("%s/%d", dpid, port_no)
}

/*
	Add_port installs a port's capacity in the ledger; called only during
	boot-time topology load.
*/
func (pl *Port_ledger) Add_port(dpid string, port_no int, capacity_bps int64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	pl.ports[pkey(dpid, port_no)] = gizmos.Mk_port_state(dpid, port_no, capacity_bps)
}

/*
	Can_reserve reports whether bps fits on every port in the set, returning
	the first failing reason: no_port if a port isn't in the ledger at all,
	no_capacity if it is but lacks headroom.
*/
func (pl *Port_ledger) Can_reserve(hops []gizmos.Hop, bps int64) (ok bool, reason string) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for _, h := range hops {
		ps, have := pl.ports[pkey(h.Dpid, h.Out_port)]
		if !have {
			return false, REASON_NO_PORT
		}
		if ps.Reserved_total()+bps > ps.Capacity {
			return false, REASON_NO_CAPACITY
		}
	}

	return true, REASON_OK
}

/*
	Reserve atomically adds bps to every port's total and class subtotal.
	Caller must have already confirmed Can_reserve; Reserve does not
	re-check capacity.
*/
func (pl *Port_ledger) Reserve(hops []gizmos.Hop, bps int64, class int) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for _, h := range hops {
		if ps, have := pl.ports[pkey(h.Dpid, h.Out_port)]; have {
			ps.Add_reservation(class, bps)
		}
	}
}

/*
	Release is the inverse of Reserve, floored at zero per port -- defensive
	against a flow's release being driven twice (terminal path and idle path
	both firing).
*/
func (pl *Port_ledger) Release(hops []gizmos.Hop, bps int64, class int) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for _, h := range hops {
		if ps, have := pl.ports[pkey(h.Dpid, h.Out_port)]; have {
			ps.Sub_reservation(class, bps)
		}
	}
}

/*
	Release_one releases a single port's reservation -- used for the
	hop-by-hop tail-release the stats collector drives as a flow's trailing
	edge advances.
*/
func (pl *Port_ledger) Release_one(dpid string, port_no int, bps int64, class int) {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	if ps, have := pl.ports[pkey(dpid, port_no)]; have {
		ps.Sub_reservation(class, bps)
	}
}

/*
	Snapshot produces a point-in-time view of every known port for the
	observation log.
*/
func (pl *Port_ledger) Snapshot() []gizmos.Port_snapshot {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	out := make([]gizmos.Port_snapshot, 0, len(pl.ports))
	for _, ps := range pl.ports {
		out = append(out, ps.Snapshot())
	}
	return out
}
