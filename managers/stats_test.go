// vi: sw=4 ts=4:

package managers

import (
	"io"
	"testing"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"

	"github.com/conorye/sdn-qos/gizmos"
)

func mkThreeHopScheduler() (*Scheduler, []gizmos.Hop) {
	if sch_sheep == nil {
		sch_sheep = bleater.Mk_bleater(0, io.Discard)
	}

	hops := []gizmos.Hop{
		{Dpid: "br0", Out_port: 1},
		{Dpid: "br1", Out_port: 2},
		{Dpid: "br2", Out_port: 3},
	}

	pt := gizmos.Mk_path_table()
	pt.Add("10.0.0.1", "10.0.0.2", hops)

	ledger := Mk_port_ledger()
	for _, h := range hops {
		ledger.Add_port(h.Dpid, h.Out_port, 10000000)
	}

	port_alloc := Mk_port_allocator(40000, 40100, nil)
	installer_ch := make(chan *ipc.Chmsg, 8)
	hostchan_ch := make(chan *ipc.Chmsg, 8)

	sch := Mk_scheduler(pt, ledger, port_alloc, installer_ch, hostchan_ch, nil, 1, 1000)
	return sch, hops
}

func mkTestStatsCollector(sch *Scheduler, t_idle int64) *Stats_collector {
	if stats_sheep == nil {
		stats_sheep = bleater.Mk_bleater(0, io.Discard)
	}
	return Mk_stats_collector(sch, nil, nil, t_idle)
}

func TestUpdateSampleTracksRateAndLastHopIdle(t *testing.T) {
	sch, _ := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 1000000, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	sc.update_sample(f, "br2", 1000, 100, true)
	if f.Get_idle_since() != 0 {
		t.Errorf("first sample has no prior delta, idle_since should stay 0, got %d", f.Get_idle_since())
	}

	sc.update_sample(f, "br2", 1000, 101, true)
	if f.Get_idle_since() == 0 {
		t.Errorf("zero byte delta at last hop should set idle_since")
	}
	sample, ok := f.Get_sample("br2")
	if !ok || sample.Rate_bps != 0 {
		t.Errorf("zero byte delta should yield zero rate, got %+v", sample)
	}

	sc.update_sample(f, "br2", 2000, 102, true)
	if f.Get_idle_since() != 0 {
		t.Errorf("nonzero byte delta should clear idle_since")
	}
	sample, _ = f.Get_sample("br2")
	if sample.Rate_bps != 8000.0 {
		t.Errorf("rate after 1000 byte delta over 1s = %f, want 8000", sample.Rate_bps)
	}
}

func TestCheckTailReleaseReleasesPredecessorOnly(t *testing.T) {
	sch, hops := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 500, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	// hop index 2 (br1, 0-based index 1) crosses threshold; its predecessor
	// (br0) has its rule+port reclaimed, and br1 -- the hop that actually
	// crossed -- is the one recorded in released_hops (spec.md §3: "dpids
	// whose predecessor rule has been reclaimed"), leaving br0 and br2
	// unmarked.
	threshold := int64(float64(f.Get_size_bytes())*tail_release_epsilon) + 1
	f.Note_sample("br1", threshold, 100, 0)

	sc.check_tail_release(f, hops)

	if f.Is_hop_released("br0") {
		t.Errorf("the predecessor br0 itself should not be marked in released_hops")
	}
	if !f.Is_hop_released("br1") {
		t.Errorf("br1 (the hop that crossed threshold) should be marked released")
	}
	if f.Is_hop_released("br2") {
		t.Errorf("br2 should be untouched")
	}
}

func TestCheckTailReleaseNeverReleasesFirstHopDirectly(t *testing.T) {
	sch, hops := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 500, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	threshold := int64(float64(f.Get_size_bytes())*tail_release_epsilon) + 1
	f.Note_sample("br0", threshold, 100, 0) // hop index 1, k starts at 1, never considers path[0] as a crossing hop

	sc.check_tail_release(f, hops)

	if f.Is_hop_released("br0") || f.Is_hop_released("br1") || f.Is_hop_released("br2") {
		t.Errorf("crossing the first hop's own counter must not itself trigger a release")
	}
}

func TestCheckTerminalByteThreshold(t *testing.T) {
	sch, hops := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 500, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	threshold := int64(float64(f.Get_size_bytes())*tail_release_epsilon) + 1
	f.Note_sample("br2", threshold, 100, 0)

	sc.check_terminal(f, hops, 100)

	if f.Get_status() != gizmos.STATE_FINISHED {
		t.Errorf("flow status after byte threshold crossed = %s, want finished", f.Get_status())
	}
}

func TestCheckTerminalIdleThreshold(t *testing.T) {
	sch, hops := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 5000000, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	f.Set_idle_since(100)
	sc.check_terminal(f, hops, 104) // 4s idle >= t_idle(3)

	if f.Get_status() != gizmos.STATE_FINISHED {
		t.Errorf("flow status after idle timeout = %s, want finished", f.Get_status())
	}
}

func TestCheckTerminalNotYetDone(t *testing.T) {
	sch, hops := mkThreeHopScheduler()
	sc := mkTestStatsCollector(sch, 3)

	f, _ := sch.New_flow("10.0.0.1", "10.0.0.2", 0, 5000000, 1000000, gizmos.CLASS_GOLD)
	sch.admit_one(f.Get_id())

	f.Note_sample("br2", 10, 100, 0)
	f.Set_idle_since(100)
	sc.check_terminal(f, hops, 101) // only 1s idle, below t_idle(3)

	if f.Get_status() == gizmos.STATE_FINISHED {
		t.Errorf("flow should not finish before byte or idle threshold is reached")
	}
}
