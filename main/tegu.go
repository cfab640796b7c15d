// vi: sw=4 ts=4:

/*

	Mnemonic:	tegu
	Abstract:	Entry point for the SDN QoS admission controller: the
				control-plane engine that owns port-bandwidth reservation,
				the per-flow admission/lifecycle state machine, periodic
				statistics collection and hop-by-hop reclamation, and the
				FLOW_PREPARE/PERMIT host-signalling protocol.

				Command line flags:
					-C controller-cfg  -- controller.cfg path (signalling/REST/scheduler tunables)
					-T topology-cfg    -- topology.cfg path (port capacities + path table)
					-v level           -- verbosity level (e.g. -v 2; higher is noisier)

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's main/tegu.go bring-up sequence (bleater
				attach, channel creation, goroutine fan-out, block-forever
				WaitGroup), rebuilt around the scheduler/ledger/installer/
				hostchan/stats managers instead of tegu's
				network/res_mgr/osif/fq_mgr quartet.
*/

package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/clike"
	"github.com/att/gopkgs/ipc"

	"github.com/conorye/sdn-qos/config"
	"github.com/conorye/sdn-qos/gizmos"
	"github.com/conorye/sdn-qos/managers"
)

var sheep *bleater.Bleater

func usage(version string) {
	fmt.Fprintf(os.Stdout, "sdn-qos %s\n", version)
	fmt.Fprintf(os.Stdout, "usage: sdn-qos [-C controller-cfg] [-T topology-cfg] [-v level]\n")
}

func main() {
	var (
		version   string = "v1.0"
		ctl_file  *string
		topo_file *string
		verbose   *int
		needs_help *bool

		wgroup sync.WaitGroup
	)

	sheep = bleater.Mk_bleater(1, os.Stderr)
	sheep.Set_prefix("sdn-qos-main")

	needs_help = flag.Bool("?", false, "show usage")
	ctl_file = flag.String("C", "controller.cfg", "controller configuration file")
	topo_file = flag.String("T", "topology.cfg", "topology configuration file")
	verbose = flag.Int("v", 0, "verbosity level")

	flag.Parse()

	if *needs_help {
		usage(version)
		os.Exit(0)
	}

	if *verbose > 0 {
		sheep.Set_level(uint(*verbose))
	}
	sheep.Baa(1, "sdn-qos %s started", version)

	ctl_cfg, err := config.Load_controller_cfg(*ctl_file)
	if err != nil {
		sheep.Baa(0, "ERR: unable to load controller config %s: %s", *ctl_file, err)
		os.Exit(1)
	}

	topo, err := config.Load_topology_cfg(*topo_file)
	if err != nil {
		sheep.Baa(0, "ERR: unable to load topology config %s: %s", *topo_file, err)
		os.Exit(1)
	}

	run_ts := time.Now().Unix()
	run_id := fmt.Sprintf("%d", run_ts)

	if err := managers.Initialise(run_id); err != nil {
		sheep.Baa(0, "ERR: unable to initialise managers: %s", err)
		os.Exit(1)
	}
	sheep.Add_child(managers.Get_sheep())
	sheep.Add_child(gizmos.Get_sheep())

	ledger := managers.Mk_port_ledger()
	topo.Each_port(func(dpid string, port_no int, capacity_bps int64) {
		ledger.Add_port(dpid, port_no, capacity_bps)
	})

	path_table := gizmos.Mk_path_table()
	topo.Each_path(func(src_ip string, dst_ip string, hops []gizmos.Hop) {
		path_table.Add(src_ip, dst_ip, hops)
	})
	sheep.Baa(1, "topology loaded: %d ports, %d paths", len(topo.Ports), path_table.Size())

	reserved_ports := []int{
		clike.Atoi(ctl_cfg.Rest.Port),
		clike.Atoi(ctl_cfg.Signal.Port),
		clike.Atoi(ctl_cfg.Datapath.Port),
	}
	port_alloc := managers.Mk_port_allocator(ctl_cfg.Ports.Src_base, ctl_cfg.Ports.Src_max, reserved_ports)

	log_root := fmt.Sprintf("%s/%s", ctl_cfg.Observability.Log_dir, run_id)
	obs, err := managers.Mk_observability(log_root)
	if err != nil {
		sheep.Baa(0, "ERR: unable to set up observability at %s: %s", log_root, err)
		os.Exit(1)
	}

	installer_ch := make(chan *ipc.Chmsg, 128)
	hostchan_ch := make(chan *ipc.Chmsg, 128)
	sch_ch := make(chan *ipc.Chmsg, 256)

	sch := managers.Mk_scheduler(path_table, ledger, port_alloc, installer_ch, hostchan_ch, obs, ctl_cfg.Scheduler.Base_octet, run_ts)

	go managers.Install_mgr(installer_ch)
	go managers.Hostchan_mgr(hostchan_ch)
	go managers.Datapath_mgr(ctl_cfg.Datapath.Port, installer_ch, sch_ch)
	go managers.Sched_mgr(sch, sch_ch, int64(ctl_cfg.Scheduler.T_sched))

	stats_installer := managers.Mk_flow_installer()
	collector := managers.Mk_stats_collector(sch, stats_installer, obs, int64(ctl_cfg.Scheduler.T_idle))
	go managers.Stats_mgr(collector, sch_ch, sch, int64(ctl_cfg.Scheduler.T_poll), int64(ctl_cfg.Scheduler.T_snapshot), int64(ctl_cfg.Scheduler.T_flowmgr))

	sheep.Baa(1, "rest front-end listening on %s", ctl_cfg.Rest.Port)
	go managers.Http_frontend_mgr(ctl_cfg.Rest.Port, sch, hostchan_ch)

	wgroup.Add(1) // block forever; every manager above runs until the process is killed
	wgroup.Wait()
	os.Exit(0)
}
