// vi: sw=4 ts=4:

/*

	Mnemonic:	scheduler
	Abstract:	Scheduler Core -- owns the flow tables, pending/active
				indexes, the admission loop and overall flow lifecycle. The
				single exclusive mutex here is the "single exclusive lock"
				concurrency model sanctioned for this controller: the
				admission loop, the REST handlers and the stats collector
				all call into this same struct and all respect sch.mu.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/res_mgr.go Inventory/Res_manager
				pattern, rebuilt around flow admission instead of pledge
				checkpoint/reload.
*/

package managers

import (
	"fmt"
	"os"
	"sync"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/clike"
	"github.com/att/gopkgs/ipc"

	"github.com/conorye/sdn-qos/gizmos"
)

var sch_sheep *bleater.Bleater

const default_request_rate_bps = 10000000 // 10 Mbps, used when a request omits request_rate_bps

type Scheduler struct {
	mu sync.Mutex

	flows   map[int]*gizmos.Flow
	pending []int
	active  map[int]bool

	datapaths map[string]bool

	seq       map[int]int // host_no -> next sequence number
	base_oct  int         // base subtracted from the source's last octet

	path_table  *gizmos.Path_table
	ledger      *Port_ledger
	dscp_alloc  *Dscp_allocator
	queue_alloc *Queue_allocator
	port_alloc  *Port_allocator

	installer_ch chan *ipc.Chmsg
	hostchan_ch  chan *ipc.Chmsg

	obs *Observability

	run_ts int64
}

func Mk_scheduler(pt *gizmos.Path_table, ledger *Port_ledger, port_alloc *Port_allocator, installer_ch chan *ipc.Chmsg, hostchan_ch chan *ipc.Chmsg, obs *Observability, base_oct int, run_ts int64) *Scheduler {
	return &Scheduler{
		flows:        make(map[int]*gizmos.Flow),
		active:       make(map[int]bool),
		datapaths:    make(map[string]bool),
		seq:          make(map[int]int),
		base_oct:     base_oct,
		path_table:   pt,
		ledger:       ledger,
		dscp_alloc:   Mk_dscp_allocator(),
		queue_alloc:  Mk_queue_allocator(),
		port_alloc:   port_alloc,
		installer_ch: installer_ch,
		hostchan_ch:  hostchan_ch,
		obs:          obs,
		run_ts:       run_ts,
	}
}

/*
	next_flow_id implements the self-identifying id scheme: host_no is the
	source's last octet minus a configured base, and ids are drawn from
	host_no*10000 + 10000 + seq.
*/
func (sch *Scheduler) next_flow_id(src_ip string) (int, error) {
	octet, err := last_octet(src_ip)
	if err != nil {
		return 0, err
	}

	host_no := octet - sch.base_oct
	seq := sch.seq[host_no]
	sch.seq[host_no] = seq + 1

	return host_no*10000 + 10000 + seq, nil
}

func last_octet(ip string) (int, error) {
	idx := -1
	for i := len(ip) - 1; i >= 0; i-- {
		if ip[i] == '.' {
			idx = i
			break
		}
	}
	if idx < 0 || idx == len(ip)-1 {
		return 0, fmt.Errorf("scheduler: malformed ipv4 address: %s", ip)
	}

	return clike.Atoi(ip[idx+1:]), nil
}

/*
	New_flow validates and inserts a pending flow, returning it so the REST
	front-end can reply synchronously while admission happens asynchronously
	on the next scheduling tick.

	fixed_dst_port is the request body's "src_port" field, forwarded here
	under its real meaning: the caller-supplied fixed port described by
	4.C ("either a destination port or a caller-supplied fixed port") --
	see DESIGN.md for why the wire field name and its role differ. A zero
	value means the port allocator is free to pick the destination port
	too.
*/
func (sch *Scheduler) New_flow(src_ip string, dst_ip string, fixed_dst_port int, size_bytes int64, request_rate_bps int64, priority int) (*gizmos.Flow, error) {
	if request_rate_bps <= 0 {
		request_rate_bps = default_request_rate_bps
	}

	sch.mu.Lock()
	flow_id, err := sch.next_flow_id(src_ip)
	if err != nil {
		sch.mu.Unlock()
		return nil, err
	}
	sch.mu.Unlock()

	s1, d1 := src_ip, dst_ip
	f, err := gizmos.Mk_flow(flow_id, &s1, &d1, request_rate_bps, size_bytes, priority)
	if err != nil {
		return nil, err
	}
	f.Set_fixed_dst_port(fixed_dst_port)

	sch.mu.Lock()
	sch.flows[flow_id] = f
	sch.pending = append(sch.pending, flow_id)
	sch.mu.Unlock()

	sch_sheep.Baa(1, "flow %d queued pending: %s", flow_id, f.To_str())
	return f, nil
}

func (sch *Scheduler) Get_flow(flow_id int) *gizmos.Flow {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	return sch.flows[flow_id]
}

/*
	Active_ids returns a snapshot copy of the active flow id set so callers
	(the stats collector) can iterate without holding the scheduler's lock
	across blocking work.
*/
func (sch *Scheduler) Active_ids() []int {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	out := make([]int, 0, len(sch.active))
	for id := range sch.active {
		out = append(out, id)
	}
	return out
}

func (sch *Scheduler) Counts() (pending int, active int, finished int) {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	pending = len(sch.pending)
	active = len(sch.active)
	for _, f := range sch.flows {
		if f.Get_status() == gizmos.STATE_FINISHED || f.Get_status() == gizmos.STATE_FAILED {
			finished++
		}
	}
	return
}

/*
	admit_one attempts admission of one pending flow. Returns true if the
	flow should leave pending (admitted, failed, or a stale entry); lack of
	path and lack of capacity both return false and leave it in place. Only
	successful admission removes it from pending here.
*/
func (sch *Scheduler) admit_one(flow_id int) (admitted bool) {
	sch.mu.Lock()
	f := sch.flows[flow_id]
	sch.mu.Unlock()

	if f == nil || !f.Is_pending() {
		return true // stale entry, drop from pending
	}

	src, dst := f.Get_hosts()
	path := sch.path_table.Lookup(*src, *dst)
	if len(path) == 0 {
		sch_sheep.Baa(2, "flow %d: no path %s->%s, remains pending", flow_id, *src, *dst)
		return false
	}

	rate := f.Get_request_rate_bps()
	if rate == 0 {
		rate = default_request_rate_bps
	}

	ok, reason := sch.ledger.Can_reserve(path, rate)
	if !ok {
		sch_sheep.Baa(2, "flow %d: admission deferred (%s), remains pending", flow_id, reason)
		return false
	}

	priority := f.Get_priority()
	dscp, err := sch.dscp_alloc.Allocate(priority)
	if err != nil {
		sch_sheep.Baa(0, "ERR: flow %d: %s", flow_id, err)
		f.Set_failed()
		return true
	}
	queue_id := sch.queue_alloc.Allocate(priority)

	src_port, dst_port, err := sch.port_alloc.Allocate(*src, *dst, f.Get_fixed_dst_port(), flow_id)
	if err != nil {
		sch_sheep.Baa(0, "ERR: flow %d: %s", flow_id, err)
		sch.dscp_alloc.Release(dscp)
		f.Set_failed()
		return true
	}

	f.Allow(dscp, queue_id, src_port, dst_port, path, rate)

	inst_req := ipc.Mk_chmsg()
	inst_req.Send_req(sch.installer_ch, nil, REQ_INSTALL, f, nil) // fire and forget, errors logged by the installer

	sch.ledger.Reserve(path, rate, priority)

	prep := ipc.Mk_chmsg()
	prep.Send_req(sch.hostchan_ch, nil, REQ_SEND_PREPARE, []interface{}{f, sch.run_ts}, nil)

	permit := ipc.Mk_chmsg()
	permit.Send_req(sch.hostchan_ch, nil, REQ_SEND_PERMIT, []interface{}{f, sch.run_ts}, nil)

	f.Set_active()

	sch.mu.Lock()
	sch.active[flow_id] = true
	for i, id := range sch.pending {
		if id == flow_id {
			sch.pending = append(sch.pending[:i], sch.pending[i+1:]...)
			break
		}
	}
	sch.mu.Unlock()

	sch_sheep.Baa(1, "flow %d admitted: dscp=%d queue=%d rate=%d hops=%d", flow_id, dscp, queue_id, rate, len(path))
	return true
}

/*
	Run_admission_pass iterates pending in insertion order exactly once,
	leaving not-yet-admissible flows in place with no aging.
*/
func (sch *Scheduler) Run_admission_pass() {
	sch.mu.Lock()
	snapshot := make([]int, len(sch.pending))
	copy(snapshot, sch.pending)
	sch.mu.Unlock()

	still_pending := make([]int, 0, len(snapshot))
	for _, id := range snapshot {
		if !sch.admit_one(id) {
			still_pending = append(still_pending, id)
		}
	}

	sch.mu.Lock()
	sch.pending = still_pending
	sch.mu.Unlock()
}

/*
	Finish_flow performs terminal processing for flow_id: mask-delete all
	remaining rules, release every hop still reserved, return the DSCP
	codepoint, remove from active. Safe to call more than once -- the
	ledger and DSCP allocator clamp at zero/refcount already.
*/
func (sch *Scheduler) Finish_flow(flow_id int) {
	f := sch.Get_flow(flow_id)
	if f == nil || f.Is_terminal() {
		return
	}

	src, dst := f.Get_hosts()
	path := f.Get_path()
	rate := f.Get_send_rate()
	priority := f.Get_priority()

	for i, hop := range path {
		// released_hops marks the hop whose predecessor was reclaimed, so
		// hop i's own port is already free when path[i+1] is marked
		if i+1 < len(path) && f.Is_hop_released(path[i+1].Dpid) {
			continue
		}
		sch.ledger.Release_one(hop.Dpid, hop.Out_port, rate, priority)
	}

	for _, hop := range path {
		del := ipc.Mk_chmsg()
		del.Send_req(sch.installer_ch, nil, REQ_DEL_FLOW, []interface{}{hop.Dpid, flow_id}, nil)
	}

	sch.dscp_alloc.Release(f.Get_dscp())
	src_port, dst_port := f.Get_ports()
	sch.port_alloc.Release(*src, src_port, *dst, dst_port)

	f.Set_finished()

	sch.mu.Lock()
	delete(sch.active, flow_id)
	sch.mu.Unlock()

	sch_sheep.Baa(1, "flow %d finished, ledger restored", flow_id)
}

/*
	Release_hop performs the staged tail-release of a single predecessor
	hop: directed-delete the rule on pred_dpid, release that port's
	reservation, and mark mark_dpid (the hop whose byte threshold actually
	crossed, per spec.md §3's "dpids whose predecessor rule has been
	reclaimed") released. Called by the stats collector once the byte
	threshold at hop index k has been crossed; pred_dpid/pred_port/
	hop_index describe hop k-1 (what gets reclaimed), mark_dpid is
	path[k]'s dpid (what gets recorded in released_hops).
*/
func (sch *Scheduler) Release_hop(flow_id int, pred_dpid string, pred_port int, hop_index int, mark_dpid string) {
	f := sch.Get_flow(flow_id)
	if f == nil || f.Is_hop_released(mark_dpid) {
		return
	}

	del := ipc.Mk_chmsg()
	del.Send_req(sch.installer_ch, nil, REQ_DEL_HOP, []interface{}{pred_dpid, flow_id, hop_index}, nil)

	sch.ledger.Release_one(pred_dpid, pred_port, f.Get_send_rate(), f.Get_priority())
	f.Mark_hop_released(mark_dpid)
}

func (sch *Scheduler) Dp_up(dpid string) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	sch.datapaths[dpid] = true
	sch_sheep.Baa(1, "datapath %s recorded", dpid)
}

func (sch *Scheduler) Dp_down(dpid string) {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	delete(sch.datapaths, dpid)
	sch_sheep.Baa(1, "datapath %s dropped, no redistribution of active flows", dpid)
}

/*
	Sched_mgr is the scheduler's goroutine main loop. The tickler drives
	REQ_SCHED_TICK once per T_sched; everything else arrives from the REST
	front end, the datapath listener or the stats collector.
*/
func Sched_mgr(sch *Scheduler, sch_ch chan *ipc.Chmsg, t_sched int64) {
	sch_sheep = bleater.Mk_bleater(1, os.Stderr)
	sch_sheep.Set_prefix("scheduler")
	tegu_sheep.Add_child(sch_sheep)

	tklr.Add_spot(t_sched, sch_ch, REQ_SCHED_TICK, nil, ipc.FOREVER)

	for {
		req := <-sch_ch
		req.State = nil

		switch req.Msg_type {
		case REQ_NOOP:

		case REQ_SCHED_TICK:
			sch.Run_admission_pass()

		case REQ_DP_UP:
			sch.Dp_up(req.Req_data.(string))

		case REQ_DP_DOWN:
			sch.Dp_down(req.Req_data.(string))

		case REQ_LIST:
			pending, active, finished := sch.Counts()
			req.Response_data = fmt.Sprintf("pending=%d active=%d finished=%d", pending, active, finished)
		}

		if req.Response_ch != nil {
			req.Response_ch <- req
		}
	}
}

