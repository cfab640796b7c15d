// vi: sw=4 ts=4:

/*

	Mnemonic:	stats
	Abstract:	Stats Collector -- polls per-hop byte counters on a fixed
				interval, estimates rate, tracks idleness at the last hop,
				drives staged tail-release as a flow's trailing edge
				advances, and detects the terminal condition. Reads flow
				state and mutates only hop samples / released_hops / status,
				per the ownership rule in the data model.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/fq_mgr.go periodic-tickler dispatch,
				redirected at byte-counter polling instead of queue pushes.
*/

package managers

import (
	"os"
	"time"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"

	"github.com/conorye/sdn-qos/gizmos"
)

var stats_sheep *bleater.Bleater

const (
	tail_release_epsilon = 1.02
	default_t_idle        = int64(3)
)

type Stats_collector struct {
	sch       *Scheduler
	installer *Flow_installer
	obs       *Observability
	t_idle    int64
}

func Mk_stats_collector(sch *Scheduler, installer *Flow_installer, obs *Observability, t_idle int64) *Stats_collector {
	if t_idle <= 0 {
		t_idle = default_t_idle
	}
	return &Stats_collector{sch: sch, installer: installer, obs: obs, t_idle: t_idle}
}

/*
	Poll runs one round: for every active flow, query each hop's counters,
	update the per-hop sample, track idleness at the last hop, and drive
	tail-release / terminal detection.
*/
func (sc *Stats_collector) Poll() {
	now := time.Now().Unix()

	for _, flow_id := range sc.sch.Active_ids() {
		f := sc.sch.Get_flow(flow_id)
		if f == nil || !f.Is_active() {
			continue
		}

		path := f.Get_path()
		if len(path) == 0 {
			continue
		}

		last := len(path) - 1
		for i, hop := range path {
			hop_index := i + 1

			stats, err := sc.installer.Aggregate(hop.Dpid, flow_id, hop_index)
			if err != nil {
				stats_sheep.Baa(2, "flow %d hop %d: %s", flow_id, hop_index, err)
				continue
			}

			sc.update_sample(f, hop.Dpid, int64(stats.ByteCount), now, i == last)
		}

		sc.check_tail_release(f, path)
		sc.check_terminal(f, path, now)
	}
}

/*
	update_sample records the new byte count/time/rate for dpid and, for
	the last hop only, clears or sets idle_since.
*/
func (sc *Stats_collector) update_sample(f *gizmos.Flow, dpid string, byte_count int64, now int64, is_last_hop bool) {
	prev, had_prev := f.Get_sample(dpid)

	var rate float64
	if had_prev {
		delta_b := byte_count - prev.Bytes
		delta_t := now - prev.Last_time
		if delta_t < 1 {
			delta_t = 1 // clamp: ms-level deltas aren't representable at 1s poll resolution here, but never divide by <=0
		}
		rate = 8 * float64(delta_b) / float64(delta_t)

		if is_last_hop {
			if delta_b > 0 {
				f.Set_idle_since(0)
			} else if f.Get_idle_since() == 0 {
				f.Set_idle_since(now)
			}
		}
	}

	f.Note_sample(dpid, byte_count, now, rate)

	if sc.obs != nil {
		sc.obs.Write_progress(f, dpid, f.Is_hop_released(dpid))
	}
}

/*
	check_tail_release walks the path starting at hop index 1 (0-based
	index >= 1, i.e. never the first hop): if that hop's cumulative bytes
	have crossed size*epsilon and the hop hasn't been released yet, the
	predecessor's rule and port reservation are reclaimed and the crossed
	hop itself (not the predecessor) is recorded in released_hops, per
	spec.md §3's "dpids whose predecessor rule has been reclaimed".
*/
func (sc *Stats_collector) check_tail_release(f *gizmos.Flow, path []gizmos.Hop) {
	threshold := float64(f.Get_size_bytes()) * tail_release_epsilon

	for k := 1; k < len(path); k++ {
		hop := path[k]
		if f.Is_hop_released(hop.Dpid) {
			continue
		}

		sample, ok := f.Get_sample(hop.Dpid)
		if !ok || float64(sample.Bytes) < threshold {
			continue
		}

		pred := path[k-1]
		sc.sch.Release_hop(f.Get_id(), pred.Dpid, pred.Out_port, k, hop.Dpid) // k is the predecessor's 1-based hop index
		stats_sheep.Baa(1, "flow %d: tail passed %s, released predecessor hop %s (rule+port)", f.Get_id(), hop.Dpid, pred.Dpid)
	}
}

/*
	check_terminal declares the flow finished once the last hop either
	crosses the byte threshold or has been idle for t_idle seconds.
*/
func (sc *Stats_collector) check_terminal(f *gizmos.Flow, path []gizmos.Hop, now int64) {
	last := path[len(path)-1]
	sample, ok := f.Get_sample(last.Dpid)

	byte_done := ok && float64(sample.Bytes) >= float64(f.Get_size_bytes())*tail_release_epsilon
	idle_done := f.Get_idle_since() != 0 && (now-f.Get_idle_since()) >= sc.t_idle

	if byte_done || idle_done {
		sc.sch.Finish_flow(f.Get_id())
		if sc.obs != nil {
			sc.obs.Write_progress(f, last.Dpid, true)
		}
	}
}

/*
	Stats_mgr is the collector's goroutine main loop, driven entirely by
	tickler spots: poll every T_poll, snapshot the ledger every T_snapshot,
	and log pending/active/finished summaries every T_flowmgr.
*/
func Stats_mgr(sc *Stats_collector, sch_ch chan *ipc.Chmsg, sch *Scheduler, t_poll int64, t_snapshot int64, t_flowmgr int64) {
	stats_sheep = bleater.Mk_bleater(1, os.Stderr)
	stats_sheep.Set_prefix("stats")
	tegu_sheep.Add_child(stats_sheep)

	poll_ch := make(chan *ipc.Chmsg, 8)

	tklr.Add_spot(t_poll, poll_ch, REQ_POLL_TICK, nil, ipc.FOREVER)
	tklr.Add_spot(t_snapshot, poll_ch, REQ_SNAP_TICK, nil, ipc.FOREVER)
	tklr.Add_spot(t_flowmgr, poll_ch, REQ_SUM_TICK, nil, ipc.FOREVER)

	for req := range poll_ch {
		switch req.Msg_type {
		case REQ_POLL_TICK:
			sc.Poll()

		case REQ_SNAP_TICK:
			if sc.obs != nil {
				sc.obs.Write_port_snapshot(sc.sch.ledger.Snapshot())
			}

		case REQ_SUM_TICK:
			pending, active, finished := sch.Counts()
			if sc.obs != nil {
				sc.obs.Write_summary(pending, active, finished)
			}
		}
	}
}
