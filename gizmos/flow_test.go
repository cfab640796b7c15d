// vi: sw=4 ts=4:

package gizmos

import "testing"

func TestMkFlowValidation(t *testing.T) {
	empty := ""
	dst := "10.0.0.2"

	if _, err := Mk_flow(1, nil, &dst, 1000, 100, 1); err == nil {
		t.Errorf("Mk_flow with nil src_ip should fail")
	}
	if _, err := Mk_flow(1, &empty, &dst, 1000, 100, 1); err == nil {
		t.Errorf("Mk_flow with empty src_ip should fail")
	}

	src := "10.0.0.1"
	if _, err := Mk_flow(1, &src, &dst, 1000, 0, 1); err == nil {
		t.Errorf("Mk_flow with zero size_bytes should fail")
	}
	if _, err := Mk_flow(1, &src, &dst, 1000, -5, 1); err == nil {
		t.Errorf("Mk_flow with negative size_bytes should fail")
	}

	f, err := Mk_flow(7, &src, &dst, 5000000, 1048576, 1)
	if err != nil {
		t.Fatalf("Mk_flow valid input failed: %s", err)
	}
	if f.Get_status() != STATE_PENDING {
		t.Errorf("new flow status = %s, want pending", f.Get_status())
	}
}

func TestFlowLifecycleTransitions(t *testing.T) {
	src, dst := "10.0.0.1", "10.0.0.2"
	f, _ := Mk_flow(1, &src, &dst, 5000000, 1000, 1)

	path := []Hop{{Dpid: "br0", Out_port: 1}, {Dpid: "br1", Out_port: 2}}
	f.Allow(16, 1, 40000, 40001, path, 5000000)
	if f.Get_status() != STATE_ALLOWED {
		t.Errorf("after Allow status = %s, want allowed", f.Get_status())
	}
	if f.Get_dscp() != 16 || f.Get_queue_id() != 1 {
		t.Errorf("Allow did not record dscp/queue: dscp=%d queue=%d", f.Get_dscp(), f.Get_queue_id())
	}

	f.Set_active()
	if f.Get_status() != STATE_ACTIVE || !f.Is_active() {
		t.Errorf("after Set_active status = %s", f.Get_status())
	}

	f.Set_finished()
	if f.Get_status() != STATE_FINISHED || !f.Is_terminal() {
		t.Errorf("after Set_finished status = %s", f.Get_status())
	}

	// Set_failed after finished must not override a terminal state.
	f.Set_failed()
	if f.Get_status() != STATE_FINISHED {
		t.Errorf("Set_failed after finished changed status to %s", f.Get_status())
	}
}

func TestFlowSetFailedFromNonTerminal(t *testing.T) {
	src, dst := "10.0.0.1", "10.0.0.2"
	f, _ := Mk_flow(2, &src, &dst, 1000, 1000, 0)
	f.Set_failed()
	if f.Get_status() != STATE_FAILED || !f.Is_terminal() {
		t.Errorf("Set_failed from pending = %s, want failed/terminal", f.Get_status())
	}
}

func TestFlowHopSamplesAndRelease(t *testing.T) {
	src, dst := "10.0.0.1", "10.0.0.2"
	f, _ := Mk_flow(3, &src, &dst, 1000, 1000, 0)

	if _, ok := f.Get_sample("br0"); ok {
		t.Errorf("Get_sample on untouched hop should report false")
	}

	f.Note_sample("br0", 500, 100, 4000.0)
	s, ok := f.Get_sample("br0")
	if !ok || s.Bytes != 500 || s.Rate_bps != 4000.0 {
		t.Errorf("Note_sample/Get_sample round trip wrong: %+v ok=%v", s, ok)
	}

	if f.Is_hop_released("br0") {
		t.Errorf("hop should not start released")
	}
	f.Mark_hop_released("br0")
	if !f.Is_hop_released("br0") {
		t.Errorf("hop should be released after Mark_hop_released")
	}
	if f.Released_count() != 1 {
		t.Errorf("Released_count() = %d, want 1", f.Released_count())
	}
}

func TestFlowSignalOrdering(t *testing.T) {
	src, dst := "10.0.0.1", "10.0.0.2"
	f, _ := Mk_flow(4, &src, &dst, 1000, 1000, 0)

	prep, permit := f.Get_signal_times()
	if prep != 0 || permit != 0 {
		t.Fatalf("unsent signal timestamps should be zero, got prep=%d permit=%d", prep, permit)
	}

	f.Note_prepare_sent()
	f.Note_permit_sent()

	prep, permit = f.Get_signal_times()
	if prep == 0 || permit == 0 {
		t.Errorf("signal timestamps should be set after Note_*_sent")
	}
	if permit < prep {
		t.Errorf("PERMIT timestamp %d precedes FLOW_PREPARE timestamp %d", permit, prep)
	}
}
