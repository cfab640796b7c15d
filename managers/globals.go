// vi: sw=4 ts=4:

/*

	Mnemonic:	globals
	Abstract:	package level initialisation, shared channels and the REQ_*
				message-type constants that ipc.Chmsg requests travelling
				between managers carry. Mirrors the shape tegu's own
				(missing from this retrieval) globals file would have had:
				one sheep tree, one tickler, everything else passed
				explicitly. Unlike tegu's managers, this package has no
				freeform cfg_data map -- config/config.go hands every
				manager its tunables as typed, already-defaulted arguments
				at construction, so there is nothing left for a package
				level config map to hold.
	Date:		31 July 2026
	Author:		C. Oronye
*/

package managers

import (
	"os"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"
)

// REQ_* -- message types carried on ipc.Chmsg.Msg_type between managers.
// The ledger, allocators and scheduler flow tables are plain mutex-guarded
// structs called directly (the "single exclusive lock" model of spec §5),
// so only cross-goroutine traffic -- to the installer, the host channel,
// the datapath listener and the scheduler's own tickler-driven ticks --
// needs a message type here.
const (
	REQ_NOOP = iota

	// scheduler core
	REQ_SCHED_TICK // tickler: run one admission-loop pass
	REQ_LIST       // REST/diagnostic dump of pending+active+finished counts
	REQ_DP_UP      // datapath listener -> scheduler: new switch connected
	REQ_DP_DOWN    // datapath listener -> scheduler: switch dropped (role-slave)

	// flow installer
	REQ_INSTALL   // install all hops of an admitted flow
	REQ_DEL_FLOW  // masked delete, all hops of a flow_id
	REQ_DEL_HOP   // directed delete of one flow's rule on one dpid
	REQ_BOOTSTRAP // wipe + install default pipeline on a newly seen dpid

	// host channel
	REQ_REGISTER      // register host_ip/permit_port/recv_port
	REQ_PICK_DEST     // choose a destination host for a source
	REQ_SEND_PREPARE  // send FLOW_PREPARE to a flow's sink
	REQ_SEND_PERMIT   // send PERMIT to a flow's source
	REQ_IS_REGISTERED // REST validation: is src_ip a known host

	// stats collector
	REQ_POLL_TICK // tickler: dispatch one round of stats requests
	REQ_SNAP_TICK // tickler: dump a port-ledger snapshot to the observation log
	REQ_SUM_TICK  // tickler: record pending/active/finished summary
)

var (
	tegu_sheep *bleater.Bleater // root of the sheep tree; all manager sheep hang off this one

	tklr *ipc.Tickler // shared tickler driving all periodic REQ_* ticks

	run_id string // timestamped tag chosen at boot, partitions observation logs
)

/*
	Initialise wires the package-level state that every manager goroutine
	reads: the sheep tree, the shared tickler, and the run identifier used
	to partition observability output. Called once from main before any
	manager goroutine is started.
*/
func Initialise(rid string) error {
	tegu_sheep = bleater.Mk_bleater(1, os.Stderr)
	tegu_sheep.Set_prefix("tegu-qos")

	run_id = rid

	tklr = ipc.Mk_tickler(20) // capacity chosen generously; a handful of recurring spots live here

	return nil
}

func Get_sheep() *bleater.Bleater {
	return tegu_sheep
}
