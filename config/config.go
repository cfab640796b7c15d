// vi: sw=4 ts=4:

/*

	Mnemonic:	config
	Abstract:	loads the two declarative files the controller needs at
				boot: controller.cfg (signalling/REST/scheduler tunables)
				and topology.cfg (port capacities and the static path
				table). Both are ini-style gcfg files, read into typed
				structs rather than the freeform section->key->string map
				tegu's older managers carried, since every section here is
				known up front.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on gravwell's config.go (GetConfig/verify shape,
				gopkg.in/gcfg.v1 for parsing including its
				map[string]*SubConfig repeated-subsection support, used
				here for topology.cfg's per-port and per-path entries).
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/conorye/sdn-qos/gizmos"
)

const max_cfg_size = 1024 * 1024 // 1MB is absurdly generous for either file

/*
	Controller_cfg is controller.cfg's shape: one section per subsystem,
	field names matched by gcfg case-insensitively so the file itself can
	use whatever separator convention an operator prefers.
*/
type Controller_cfg struct {
	Signal struct {
		Bind_addr string
		Port      string
	}
	Rest struct {
		Port string
	}
	Datapath struct {
		Port string
	}
	Scheduler struct {
		T_sched    int
		T_idle     int
		T_poll     int
		T_snapshot int
		T_flowmgr  int
		Base_octet int
	}
	Ports struct {
		Src_base int
		Src_max  int
	}
	Observability struct {
		Log_dir string
	}
}

/*
	Load_controller_cfg reads and validates controller.cfg. Defaults are
	filled in for any tunable left at zero, matching fq_mgr's style of
	tolerating a sparse config file rather than demanding every knob be
	set explicitly.
*/
func Load_controller_cfg(path string) (*Controller_cfg, error) {
	content, err := read_capped(path)
	if err != nil {
		return nil, err
	}

	var c Controller_cfg
	if err := gcfg.ReadStringInto(&c, string(content)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if c.Signal.Port == "" {
		c.Signal.Port = "29055"
	}
	if c.Rest.Port == "" {
		c.Rest.Port = "29444"
	}
	if c.Datapath.Port == "" {
		c.Datapath.Port = "6633"
	}
	if c.Scheduler.T_sched <= 0 {
		c.Scheduler.T_sched = 1
	}
	if c.Scheduler.T_idle <= 0 {
		c.Scheduler.T_idle = 3
	}
	if c.Scheduler.T_poll <= 0 {
		c.Scheduler.T_poll = 2
	}
	if c.Scheduler.T_snapshot <= 0 {
		c.Scheduler.T_snapshot = 30
	}
	if c.Scheduler.T_flowmgr <= 0 {
		c.Scheduler.T_flowmgr = 60
	}
	if c.Ports.Src_base <= 0 {
		c.Ports.Src_base = 10000
	}
	if c.Ports.Src_max <= 0 {
		c.Ports.Src_max = 65000
	}
	if c.Observability.Log_dir == "" {
		c.Observability.Log_dir = "/var/log/sdn-qos"
	}

	return &c, nil
}

/*
	Port_entry is one [port "dpid,port_no"] subsection of topology.cfg.
*/
type Port_entry struct {
	Capacity int64
}

/*
	Path_entry is one [path "src_ip,dst_ip"] subsection: hops is a
	comma-separated dpid:out_port list walked in order from src to dst.
*/
type Path_entry struct {
	Hops string
}

type Topology_cfg struct {
	Port map[string]*Port_entry
	Path map[string]*Path_entry
}

/*
	Load_topology_cfg reads topology.cfg and resolves it into parsed port
	and path records (see Each_port/Each_path), which main/tegu.go loads
	into the port ledger and path table; nothing else in the controller
	needs the raw subsection maps once this runs.
*/
func Load_topology_cfg(path string) (*Controller_topology, error) {
	content, err := read_capped(path)
	if err != nil {
		return nil, err
	}

	var t Topology_cfg
	if err := gcfg.ReadStringInto(&t, string(content)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	ledger := make([]port_seed, 0, len(t.Port))
	for key, ent := range t.Port {
		dpid, port_no, err := split_port_key(key)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad [port %q]: %w", path, key, err)
		}
		ledger = append(ledger, port_seed{dpid: dpid, port_no: port_no, capacity_bps: ent.Capacity})
	}

	paths := make([]path_seed, 0, len(t.Path))
	for key, ent := range t.Path {
		src, dst, err := split_path_key(key)
		if err != nil {
			return nil, fmt.Errorf("config: %s: bad [path %q]: %w", path, key, err)
		}
		hops, err := parse_hops(ent.Hops)
		if err != nil {
			return nil, fmt.Errorf("config: %s: [path %q] hops: %w", path, key, err)
		}
		paths = append(paths, path_seed{src_ip: src, dst_ip: dst, hops: hops})
	}

	return &Controller_topology{Ports: ledger, Paths: paths}, nil
}

// port_seed/path_seed are the resolved, ready-to-load-into-a-live-object
// records main/tegu.go feeds to the port ledger and path table at boot.
type port_seed struct {
	dpid         string
	port_no      int
	capacity_bps int64
}

type path_seed struct {
	src_ip string
	dst_ip string
	hops   []gizmos.Hop
}

type Controller_topology struct {
	Ports []port_seed
	Paths []path_seed
}

func (t *Controller_topology) Each_port(fn func(dpid string, port_no int, capacity_bps int64)) {
	for _, p := range t.Ports {
		fn(p.dpid, p.port_no, p.capacity_bps)
	}
}

func (t *Controller_topology) Each_path(fn func(src_ip string, dst_ip string, hops []gizmos.Hop)) {
	for _, p := range t.Paths {
		fn(p.src_ip, p.dst_ip, p.hops)
	}
}

func split_port_key(key string) (dpid string, port_no int, err error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		err = errors.New("expected \"dpid,port_no\"")
		return
	}
	port_no, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return
	}
	dpid = strings.TrimSpace(parts[0])
	return
}

func split_path_key(key string) (src_ip string, dst_ip string, err error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		err = errors.New("expected \"src_ip,dst_ip\"")
		return
	}
	src_ip = strings.TrimSpace(parts[0])
	dst_ip = strings.TrimSpace(parts[1])
	return
}

/*
	parse_hops turns "br0:1,br1:2,br2:3" into an ordered Hop slice, the
	same (dpid, out_port) pairs the flow installer walks hop by hop.
*/
func parse_hops(s string) ([]gizmos.Hop, error) {
	toks := strings.Split(s, ",")
	hops := make([]gizmos.Hop, 0, len(toks))

	for _, t := range toks {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		pair := strings.SplitN(t, ":", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("bad hop token %q, expected dpid:out_port", t)
		}
		port_no, err := strconv.Atoi(strings.TrimSpace(pair[1]))
		if err != nil {
			return nil, fmt.Errorf("bad hop token %q: %w", t, err)
		}
		hops = append(hops, gizmos.Hop{Dpid: strings.TrimSpace(pair[0]), Out_port: port_no})
	}

	return hops, nil
}

func read_capped(path string) ([]byte, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if fi.Size() > max_cfg_size {
		return nil, fmt.Errorf("config: %s far too large", path)
	}

	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	if err != nil && n != int(fi.Size()) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	return content[:n], nil
}
