// vi: sw=4 ts=4:

/*

	Mnemonic:	observability
	Abstract:	writes the four observation streams a run produces:
				per-flow progress (continuously appended), per-flow
				port-state, periodic port-ledger snapshots, and periodic
				pending/active/finished summaries. Partitioned under a
				per-run directory so successive runs never clobber each
				other's logs.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/res_mgr.go write_chkpt/load_chkpt
				pattern (forge.research.att.com/gopkgs/chkpt) for the
				snapshot-style logs; the progress log is append-only so a
				plain os.OpenFile in append mode is used for it instead,
				matching fq_mgr's direct os.File use for its own queue log.
*/

package managers

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/chkpt"

	"github.com/conorye/sdn-qos/gizmos"
)

var obs_sheep *bleater.Bleater

/*
	Observability owns every writer the run produces. progress/portstate
	are opened lazily, one file per flow_id, and kept open for the life of
	the flow; snapshot/summary go through chkpt so each write is a fresh,
	atomically-renamed file the way tegu's inventory checkpoints are.
*/
type Observability struct {
	mu sync.Mutex

	root string // run_dir, e.g. /var/log/sdn-qos/<run_id>

	progress  map[int]*os.File // flow_id -> FlowProgress/<flow_id>/progress.log
	portstate map[int]*os.File // flow_id -> Flow_PortState/<flow_id>.log

	snap_ckpt *chkpt.Chkpt // PortSnapshot/port_snapshot.log
	flowm_ckpt *chkpt.Chkpt // FlowManger/flow_manager.log -- directory name kept exactly as the original's typo
}

/*
	Mk_observability creates the run's directory tree under root and
	returns an Observability ready to accept writes. root is expected to
	already include the run identifier (see main/tegu.go).
*/
func Mk_observability(root string) (*Observability, error) {
	obs_sheep = bleater.Mk_bleater(1, os.Stderr)
	obs_sheep.Set_prefix("observ")
	tegu_sheep.Add_child(obs_sheep)

	dirs := []string{
		filepath.Join(root, "FlowProgress"),
		filepath.Join(root, "Flow_PortState"),
		filepath.Join(root, "PortSnapshot"),
		filepath.Join(root, "FlowManger"), // preserves the original tool's misspelling verbatim
		filepath.Join(root, "iperf"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("observability: mkdir %s: %w", d, err)
		}
	}

	o := &Observability{
		root:      root,
		progress:  make(map[int]*os.File),
		portstate: make(map[int]*os.File),
	}

	o.snap_ckpt = chkpt.Mk_chkpt(filepath.Join(root, "PortSnapshot"), 10, 3600)
	o.flowm_ckpt = chkpt.Mk_chkpt(filepath.Join(root, "FlowManger"), 10, 3600)

	return o, nil
}

func (o *Observability) progress_file(flow_id int) *os.File {
	if fh, ok := o.progress[flow_id]; ok {
		return fh
	}

	dir := filepath.Join(o.root, "FlowProgress", fmt.Sprintf("%d", flow_id))
	if err := os.MkdirAll(dir, 0755); err != nil {
		obs_sheep.Baa(0, "ERR: mkdir %s: %s", dir, err)
		return nil
	}

	fh, err := os.OpenFile(filepath.Join(dir, "progress.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		obs_sheep.Baa(0, "ERR: open progress log for flow %d: %s", flow_id, err)
		return nil
	}

	o.progress[flow_id] = fh
	return fh
}

func (o *Observability) portstate_file(flow_id int) *os.File {
	if fh, ok := o.portstate[flow_id]; ok {
		return fh
	}

	fh, err := os.OpenFile(filepath.Join(o.root, "Flow_PortState", fmt.Sprintf("%d.log", flow_id)), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		obs_sheep.Baa(0, "ERR: open port-state log for flow %d: %s", flow_id, err)
		return nil
	}

	o.portstate[flow_id] = fh
	return fh
}

/*
	Write_progress appends one json record to the flow's progress log and,
	for the same sample, a line to its port-state log -- the latter kept
	separate since it is read independently by operators watching a single
	flow's reservation rather than its byte counters.
*/
func (o *Observability) Write_progress(f *gizmos.Flow, dpid string, released bool) {
	if o == nil || f == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := f.Marshal_progress(dpid, released)
	if err != nil {
		obs_sheep.Baa(1, "flow %d: progress marshal: %s", f.Get_id(), err)
		return
	}

	if fh := o.progress_file(f.Get_id()); fh != nil {
		fmt.Fprintf(fh, "%s\n", rec)
	}

	if fh := o.portstate_file(f.Get_id()); fh != nil {
		fmt.Fprintf(fh, "%d %s dscp=%d queue=%d released=%t\n", time.Now().Unix(), dpid, f.Get_dscp(), f.Get_queue_id(), released)
	}
}

/*
	Write_port_snapshot records the ledger's current reservation state for
	every tracked port, one chkpt file per call (old ones aged out per the
	chkpt keep-count/max-age the way tegu's inventory checkpoints are).
*/
func (o *Observability) Write_port_snapshot(snaps []gizmos.Port_snapshot) {
	if o == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.snap_ckpt.Create(); err != nil {
		obs_sheep.Baa(0, "ERR: port snapshot checkpoint create: %s", err)
		return
	}

	for _, s := range snaps {
		fmt.Fprintf(o.snap_ckpt, "%s %d capacity=%d reserved=%d available=%d\n",
			s.Dpid, s.Port_no, s.Capacity, s.Reserved, s.Available)
	}

	name, err := o.snap_ckpt.Close()
	if err != nil {
		obs_sheep.Baa(0, "ERR: port snapshot checkpoint close %s: %s", name, err)
	}
}

/*
	Write_summary records the pending/active/finished flow counts. Lives in
	FlowManger (sic) to match the directory name the original tool used.
*/
func (o *Observability) Write_summary(pending int, active int, finished int) {
	if o == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.flowm_ckpt.Create(); err != nil {
		obs_sheep.Baa(0, "ERR: flow summary checkpoint create: %s", err)
		return
	}

	fmt.Fprintf(o.flowm_ckpt, "%d pending=%d active=%d finished=%d\n", time.Now().Unix(), pending, active, finished)

	name, err := o.flowm_ckpt.Close()
	if err != nil {
		obs_sheep.Baa(0, "ERR: flow summary checkpoint close %s: %s", name, err)
	}
}

/*
	Iperf_dir returns (creating if needed) the directory set aside for a
	flow's iperf artefacts, named flow_id:src_to_dst the way a human
	reading the top-level iperf/ tree can identify a run without opening
	anything.
*/
func (o *Observability) Iperf_dir(flow_id int, src_ip string, dst_ip string) (string, error) {
	if o == nil {
		return "", fmt.Errorf("observability: nil")
	}

	dir := filepath.Join(o.root, "iperf", fmt.Sprintf("%d:%s_to_%s", flow_id, src_ip, dst_ip))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("observability: mkdir %s: %w", dir, err)
	}
	return dir, nil
}

/*
	Close flushes and closes every per-flow file handle still open. Called
	once at shutdown; the chkpt objects need no explicit close since each
	Create/Close pair is self-contained.
*/
func (o *Observability) Close() {
	if o == nil {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, fh := range o.progress {
		fh.Close()
	}
	for _, fh := range o.portstate {
		fh.Close()
	}
}
