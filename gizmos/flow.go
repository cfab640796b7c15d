// vi: sw=4 ts=4:

/*

	Mnemonic:	flow
	Abstract:	"object" that manages a single admitted (or pending) flow -- the
				unit of admission that the scheduler core juggles from the moment
				a request arrives until its rules and reservations are fully
				reclaimed.
	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's gizmos/pledge.go
*/

package gizmos

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Status constants for a flow's lifecycle. Transitions are monotone in this
// order except that Failed is reachable from any non-terminal state.
const (
	STATE_PENDING  = "pending"
	STATE_ALLOWED  = "allowed"
	STATE_ACTIVE   = "active"
	STATE_FINISHED = "finished"
	STATE_FAILED   = "failed"
)

// Hop is one (dpid, out_port) element of a flow's path.
type Hop struct {
	Dpid    string
	Out_port int
}

// Hop_sample is the per-hop observation maintained by the stats collector:
// cumulative byte count, the time of the last sample, and the instantaneous
// rate computed between the last two samples.
type Hop_sample struct {
	Bytes      int64
	Last_time  int64
	Rate_bps   float64
}

/*
	Flow is the immutable-descriptor-plus-mutable-result record for one
	admission request. Fields that are assigned exactly once at the
	pending->allowed transition (dscp, queue_id, src_port, dst_port, path,
	send_rate_bps) are never reassigned after that; they are released
	exactly once at the *->finished transition.
*/
type Flow struct {
	mu sync.Mutex // guards the per-hop observation fields below, touched by the stats collector

	flow_id          int
	src_ip           *string
	dst_ip           *string
	request_rate_bps int64
	size_bytes       int64
	priority         int

	send_rate_bps  int64
	dscp           int
	queue_id       int
	src_port       int
	dst_port       int
	fixed_dst_port int // caller-supplied fixed destination port, 0 if the allocator should pick one
	path           []Hop

	status      string
	created_at  int64
	allowed_at  int64
	finished_at int64

	prepare_ts int64 // unix ts FLOW_PREPARE was sent, 0 if not yet/never
	permit_ts  int64 // unix ts PERMIT was sent, 0 if not yet/never

	hop_samples   map[string]*Hop_sample // dpid -> sample
	released_hops map[string]bool        // dpid -> reclaimed
	idle_since    int64                  // 0 when not idle
}

/*
	Mk_flow constructs a pending flow. commence is implicit (now); a flow has
	no expiry of its own -- it is reclaimed by tail-release or idle timeout,
	not by a scheduled end time. priority must be 0, 1 or 2 (best, silver,
	gold respectively) validated by the caller.
*/
func Mk_flow(flow_id int, src_ip *string, dst_ip *string, request_rate_bps int64, size_bytes int64, priority int) (f *Flow, err error) {
	if src_ip == nil || *src_ip == "" {
		err = fmt.Errorf("flow: bad src_ip submitted")
		obj_sheep.Baa(1, "flow: %s", err)
		return
	}

	if size_bytes <= 0 {
		err = fmt.Errorf("flow: bad size_bytes submitted: %d", size_bytes)
		obj_sheep.Baa(1, "flow: %s", err)
		return
	}

	f = &Flow{
		flow_id:          flow_id,
		src_ip:           src_ip,
		dst_ip:           dst_ip,
		request_rate_bps: request_rate_bps,
		size_bytes:       size_bytes,
		priority:         priority,
		status:           STATE_PENDING,
		created_at:       time.Now().Unix(),
		hop_samples:      make(map[string]*Hop_sample),
		released_hops:    make(map[string]bool),
	}

	return
}

/*
	Allow records the admission outcome, generated once by the scheduler's
	admission loop. Sets the allowed-at timestamp and flips status to allowed.
*/
func (f *Flow) Allow(dscp int, queue_id int, src_port int, dst_port int, path []Hop, send_rate_bps int64) {
	if f == nil {
		return
	}

	f.dscp = dscp
	f.queue_id = queue_id
	f.src_port = src_port
	f.dst_port = dst_port
	f.path = path
	f.send_rate_bps = send_rate_bps
	f.status = STATE_ALLOWED
	f.allowed_at = time.Now().Unix()
}

/*
	Set_active flips status to active; called once the PERMIT request has
	been queued to the host channel.
*/
func (f *Flow) Set_active() {
	if f == nil {
		return
	}
	f.status = STATE_ACTIVE
}

/*
	Set_finished marks the flow as finished and records the timestamp. Safe
	to call more than once (idempotent besides the timestamp).
*/
func (f *Flow) Set_finished() {
	if f == nil {
		return
	}
	f.status = STATE_FINISHED
	f.finished_at = time.Now().Unix()
}

/*
	Set_failed marks the flow as failed from any non-terminal state.
*/
func (f *Flow) Set_failed() {
	if f == nil {
		return
	}
	if f.status == STATE_FINISHED {
		return
	}
	f.status = STATE_FAILED
	f.finished_at = time.Now().Unix()
}

func (f *Flow) Is_pending() bool {
	if f == nil {
		return false
	}
	return f.status == STATE_PENDING
}

func (f *Flow) Is_active() bool {
	if f == nil {
		return false
	}
	return f.status == STATE_ACTIVE || f.status == STATE_ALLOWED
}

func (f *Flow) Is_terminal() bool {
	if f == nil {
		return true
	}
	return f.status == STATE_FINISHED || f.status == STATE_FAILED
}

func (f *Flow) Get_id() int {
	if f == nil {
		return 0
	}
	return f.flow_id
}

func (f *Flow) Get_status() string {
	if f == nil {
		return STATE_FAILED
	}
	return f.status
}

func (f *Flow) Get_hosts() (*string, *string) {
	if f == nil {
		return &empty_str, &empty_str
	}
	return f.src_ip, f.dst_ip
}

func (f *Flow) Get_ports() (int, int) {
	if f == nil {
		return 0, 0
	}
	return f.src_port, f.dst_port
}

func (f *Flow) Set_fixed_dst_port(p int) {
	if f == nil {
		return
	}
	f.fixed_dst_port = p
}

func (f *Flow) Get_fixed_dst_port() int {
	if f == nil {
		return 0
	}
	return f.fixed_dst_port
}

func (f *Flow) Get_priority() int {
	if f == nil {
		return 0
	}
	return f.priority
}

func (f *Flow) Get_dscp() int {
	if f == nil {
		return 0
	}
	return f.dscp
}

func (f *Flow) Get_queue_id() int {
	if f == nil {
		return 0
	}
	return f.queue_id
}

func (f *Flow) Get_path() []Hop {
	if f == nil {
		return nil
	}
	return f.path
}

func (f *Flow) Get_size_bytes() int64 {
	if f == nil {
		return 0
	}
	return f.size_bytes
}

func (f *Flow) Get_send_rate() int64 {
	if f == nil {
		return 0
	}
	return f.send_rate_bps
}

/*
	Get_request_rate_bps returns the immutable requested rate, the value the
	admission loop reserves against before Allow assigns send_rate_bps.
*/
func (f *Flow) Get_request_rate_bps() int64 {
	if f == nil {
		return 0
	}
	return f.request_rate_bps
}

/*
	Note_prepare_sent / Note_permit_sent record the wall-clock time the
	signalling records were emitted so invariant 5 (prepare precedes permit)
	is independently checkable.
*/
func (f *Flow) Note_prepare_sent() {
	if f == nil {
		return
	}
	f.prepare_ts = time.Now().Unix()
}

func (f *Flow) Note_permit_sent() {
	if f == nil {
		return
	}
	f.permit_ts = time.Now().Unix()
}

func (f *Flow) Get_signal_times() (int64, int64) {
	if f == nil {
		return 0, 0
	}
	return f.prepare_ts, f.permit_ts
}

/*
	Note_sample records a new byte-count/time/rate sample for the given hop,
	under the flow's own lock since the stats collector runs concurrently
	with REST-driven reads of flow state.
*/
func (f *Flow) Note_sample(dpid string, bytes int64, now int64, rate_bps float64) {
	if f == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.hop_samples[dpid] = &Hop_sample{Bytes: bytes, Last_time: now, Rate_bps: rate_bps}
}

/*
	Get_sample returns a copy of the last known sample for dpid, and whether
	one has been recorded yet.
*/
func (f *Flow) Get_sample(dpid string) (Hop_sample, bool) {
	if f == nil {
		return Hop_sample{}, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.hop_samples[dpid]
	if !ok {
		return Hop_sample{}, false
	}
	return *s, true
}

func (f *Flow) Set_idle_since(ts int64) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle_since = ts
}

func (f *Flow) Get_idle_since() int64 {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.idle_since
}

/*
	Is_hop_released / Mark_hop_released track which dpids have had their
	predecessor rule and port reservation reclaimed already during
	tail-release, so a hop is never double-released.
*/
func (f *Flow) Is_hop_released(dpid string) bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released_hops[dpid]
}

func (f *Flow) Mark_hop_released(dpid string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released_hops[dpid] = true
}

func (f *Flow) Released_count() int {
	if f == nil {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.released_hops)
}

/*
	To_str renders a diagnostic line similar in spirit to tegu's pledge
	To_str -- never includes anything that isn't safe to log.
*/
func (f *Flow) To_str() (s string) {
	if f == nil {
		return "nil-flow"
	}

	s = fmt.Sprintf("flow_id=%d st=%s src=%s dst=%s sport=%d dport=%d dscp=%d q=%d rate=%d size=%d hops=%d released=%d",
		f.flow_id, f.status, *f.src_ip, *f.dst_ip, f.src_port, f.dst_port, f.dscp, f.queue_id, f.send_rate_bps, f.size_bytes, len(f.path), f.Released_count())
	return
}

/*
	To_json renders a subset of flow state as a JSON object; built by hand
	(not encoding/json) to keep control over which fields are exposed,
	matching the convention used by tegu's pledge object.
*/
func (f *Flow) To_json() (js string) {
	if f == nil {
		return "{}"
	}

	js = fmt.Sprintf(`{ "flow_id": %d, "status": %q, "src_ip": %q, "dst_ip": %q, "src_port": %d, "dst_port": %d, "dscp": %d, "queue_id": %d, "send_rate_bps": %d, "size_bytes": %d }`,
		f.flow_id, f.status, *f.src_ip, *f.dst_ip, f.src_port, f.dst_port, f.dscp, f.queue_id, f.send_rate_bps, f.size_bytes)
	return
}

/*
	Progress_record is the shape written, one per sample, to
	FlowProgress/<flow_id>/progress.log -- exported fields only so
	encoding/json can marshal it directly (unlike the hand-built wire
	records above, this is an append-only diagnostic log, not a wire
	contract, so the stdlib encoder is the right tool).
*/
type Progress_record struct {
	Ts       int64   `json:"ts"`
	Dpid     string  `json:"dpid"`
	Bytes    int64   `json:"bytes"`
	Rate_bps float64 `json:"rate_bps"`
	Released bool    `json:"released"`
}

func (f *Flow) Marshal_progress(dpid string, released bool) ([]byte, error) {
	s, _ := f.Get_sample(dpid)
	rec := Progress_record{Ts: time.Now().Unix(), Dpid: dpid, Bytes: s.Bytes, Rate_bps: s.Rate_bps, Released: released}
	return json.Marshal(rec)
}
