// vi: sw=4 ts=4:

/*

	Mnemonic:	installer
	Abstract:	Flow Installer -- translates an admitted flow into datapath
				rule insertions/deletions, and lays down the default pipeline
				the first time a switch (bridge) is seen. Runs as its own
				goroutine, fed by a channel, since every operation here is a
				blocking exec() of ovs-vsctl/ovs-ofctl and must not stall the
				scheduler's admission loop.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/fq_mgr.go flow-mod dispatch loop,
				rebuilt against github.com/digitalocean/go-openvswitch/ovs
				instead of a raw OpenFlow/skoogi JSON wire format.
*/

package managers

import (
	"fmt"
	"os"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"
	"github.com/digitalocean/go-openvswitch/ovs"

	"github.com/conorye/sdn-qos/gizmos"
)

var inst_sheep *bleater.Bleater

// Tables of the default pipeline. Flow rules installed per admitted flow
// live only in tbl_qos; tbl_classify and tbl_learn are laid down once per
// bridge and never touched by flow admission/release.
const (
	tbl_classify = 0
	tbl_qos      = 1
	tbl_learn    = 2

	pri_flow  = 1000
	pri_catch = 0 // lowest priority, sends unmatched traffic to controller

	pri_gold   = 100
	pri_silver = 90
	pri_best   = 80

	svc_gold   = 1
	svc_silver = 2
	svc_best   = 3
)

// dscp_band maps a priority class to the (dscp, service-class metadata,
// classify-rule priority) triple table 0 dispatches on.
var dscp_band = []struct {
	dscp int
	svc  int
	pri  int
}{
	{dscp: 32, svc: svc_gold, pri: pri_gold},
	{dscp: 16, svc: svc_silver, pri: pri_silver},
	{dscp: 0, svc: svc_best, pri: pri_best},
}

/*
	dscpMatch renders an ip_dscp match. The library (github.com/digitalocean/
	go-openvswitch/ovs) doesn't export a dedicated constructor for it, so a
	local type fills the gap; Match requires both MarshalText (the wire
	form ovs-ofctl consumes) and GoString (ovs.codegen.go generates the
	latter for every built-in match/action so that flows round-trip through
	%#v), so both are implemented here.
*/
type dscpMatch int

func (m dscpMatch) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("ip_dscp=%d", int(m))), nil
}

func (m dscpMatch) GoString() string {
	return fmt.Sprintf("managers.dscpMatch(%d)", int(m))
}

/*
	setQueueAction renders set_queue:<id>. Same reasoning as dscpMatch:
	Action requires both MarshalText and GoString.
*/
type setQueueAction int

func (a setQueueAction) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("set_queue:%d", int(a))), nil
}

func (a setQueueAction) GoString() string {
	return fmt.Sprintf("managers.setQueueAction(%d)", int(a))
}

/*
	writeMetadataAction renders write_metadata:<value>, used by table 0's
	per-DSCP-band classify rules to tag the service class before
	falling through to the QoS table. The library has no dedicated
	constructor for it either, same reasoning as dscpMatch/setQueueAction.
*/
type writeMetadataAction int

func (a writeMetadataAction) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("write_metadata:%d", int(a))), nil
}

func (a writeMetadataAction) GoString() string {
	return fmt.Sprintf("managers.writeMetadataAction(%d)", int(a))
}

/*
	Flow_installer owns the ovs.Client and the per-dpid bridge name mapping
	(a dpid and an OVS bridge name are the same string in this controller --
	see config/config.go).
*/
type Flow_installer struct {
	ovsc *ovs.Client
}

func Mk_flow_installer() *Flow_installer {
	return &Flow_installer{
		ovsc: ovs.New(ovs.Sudo()),
	}
}

/*
	Bootstrap wipes all existing rules on a newly-seen bridge (defensive
	cold start) and installs the default pipeline: table 0 matches each
	class's exact ip_dscp value (one rule per band in dscp_band) and writes
	metadata indicating service class, falling through to the QoS table,
	with a lowest-priority default that falls through to the QoS table
	too; the QoS table falls through to the learning table; the learning
	table sends unmatched traffic to the controller at lowest priority.
*/
func (fi *Flow_installer) Bootstrap(bridge string) error {
	if err := fi.ovsc.OpenFlow.DelFlows(bridge, nil); err != nil {
		return fmt.Errorf("installer: wipe of %s failed: %w", bridge, err)
	}

	for _, band := range dscp_band {
		classify := &ovs.Flow{
			Priority: band.pri,
			Table:    tbl_classify,
			Matches: []ovs.Match{
				ovs.DataLinkType(0x0800),
				dscpMatch(band.dscp),
			},
			Actions: []ovs.Action{
				writeMetadataAction(band.svc),
				ovs.Resubmit(0, tbl_qos),
			},
		}
		if err := fi.ovsc.OpenFlow.AddFlow(bridge, classify); err != nil {
			return fmt.Errorf("installer: classify band dscp=%d install on %s failed: %w", band.dscp, bridge, err)
		}
	}

	classify_default := &ovs.Flow{
		Priority: pri_catch,
		Table:    tbl_classify,
		Actions:  []ovs.Action{ovs.Resubmit(0, tbl_qos)},
	}
	if err := fi.ovsc.OpenFlow.AddFlow(bridge, classify_default); err != nil {
		return fmt.Errorf("installer: classify table default install on %s failed: %w", bridge, err)
	}

	qos_fallthrough := &ovs.Flow{
		Priority: pri_catch,
		Table:    tbl_qos,
		Actions:  []ovs.Action{ovs.Resubmit(0, tbl_learn)},
	}
	if err := fi.ovsc.OpenFlow.AddFlow(bridge, qos_fallthrough); err != nil {
		return fmt.Errorf("installer: qos fallthrough install on %s failed: %w", bridge, err)
	}

	learn_catch := &ovs.Flow{
		Priority: pri_catch,
		Table:    tbl_learn,
		Actions:  []ovs.Action{ovs.Controller("")},
	}
	if err := fi.ovsc.OpenFlow.AddFlow(bridge, learn_catch); err != nil {
		return fmt.Errorf("installer: learn table install on %s failed: %w", bridge, err)
	}

	inst_sheep.Baa(1, "bootstrapped default pipeline on %s", bridge)
	return nil
}

/*
	Install lays down one rule per hop of an admitted flow's path, matching
	the 3-tuple (ipv4_src, ipv4_dst, ip_dscp) with actions
	set_queue(queue_id); output(out_port), at pri_flow, no idle/hard
	timeout, cookie (flow_id<<32)|hop_index (1-based).
*/
func (fi *Flow_installer) Install(f *gizmos.Flow) error {
	src, dst := f.Get_hosts()
	path := f.Get_path()

	for i, hop := range path {
		hop_index := i + 1
		rule := &ovs.Flow{
			Priority: pri_flow,
			Table:    tbl_qos,
			Cookie:   gizmos.Mk_cookie(f.Get_id(), hop_index),
			Matches: []ovs.Match{
				ovs.DataLinkType(0x0800),
				ovs.NetworkSource(*src + "/32"),
				ovs.NetworkDestination(*dst + "/32"),
				dscpMatch(f.Get_dscp()),
			},
			Actions: []ovs.Action{
				setQueueAction(f.Get_queue_id()),
				ovs.Output(hop.Out_port),
			},
		}

		if err := fi.ovsc.OpenFlow.AddFlow(hop.Dpid, rule); err != nil {
			return fmt.Errorf("installer: install flow %d hop %d on %s failed: %w", f.Get_id(), hop_index, hop.Dpid, err)
		}
	}

	return nil
}

/*
	Del_flow masked-deletes every rule carrying flow_id's high word,
	scoped to the QoS table, on one bridge.
*/
func (fi *Flow_installer) Del_flow(bridge string, flow_id int) error {
	match := &ovs.MatchFlow{
		Table:      tbl_qos,
		Cookie:     gizmos.Mk_cookie(flow_id, 0),
		CookieMask: gizmos.Mask_flow,
	}

	if err := fi.ovsc.OpenFlow.DelFlows(bridge, match); err != nil {
		return fmt.Errorf("installer: masked delete of flow %d on %s failed: %w", flow_id, bridge, err)
	}
	return nil
}

/*
	Del_hop directed-deletes one flow's rule on a single switch -- used
	during hop-by-hop tail-release, where only the predecessor's exact rule
	(flow_id, hop_index) is reclaimed, not the whole flow.
*/
func (fi *Flow_installer) Del_hop(dpid string, flow_id int, hop_index int) error {
	cookie := gizmos.Mk_cookie(flow_id, hop_index)
	match := &ovs.MatchFlow{
		Table:      tbl_qos,
		Cookie:     cookie,
		CookieMask: 0xffffffffffffffff,
	}

	if err := fi.ovsc.OpenFlow.DelFlows(dpid, match); err != nil {
		return fmt.Errorf("installer: directed delete of flow %d hop %d on %s failed: %w", flow_id, hop_index, dpid, err)
	}
	return nil
}

/*
	Aggregate queries the byte/packet counters for one hop's exact rule
	(flow_id, hop_index) via 'ovs-ofctl dump-aggregate'. Used directly by
	the stats collector rather than routed through Install_mgr's channel,
	since the collector already runs on its own goroutine and the call
	blocks only that goroutine, never the scheduler.
*/
func (fi *Flow_installer) Aggregate(dpid string, flow_id int, hop_index int) (*ovs.FlowStats, error) {
	match := &ovs.MatchFlow{
		Table:      tbl_qos,
		Cookie:     gizmos.Mk_cookie(flow_id, hop_index),
		CookieMask: 0xffffffffffffffff,
	}

	stats, err := fi.ovsc.OpenFlow.DumpAggregate(dpid, match)
	if err != nil {
		return nil, fmt.Errorf("installer: aggregate query for flow %d hop %d on %s failed: %w", flow_id, hop_index, dpid, err)
	}
	return stats, nil
}

/*
	Install_mgr is the installer's goroutine main loop: every request it
	receives is fire-and-forget from the caller's perspective (errors are
	logged, not returned up the call chain, matching fq_mgr's dispatch
	model), except REQ_BOOTSTRAP whose caller blocks for the result since
	it gates whether a newly-seen switch is usable at all.
*/
func Install_mgr(ich chan *ipc.Chmsg) {
	inst_sheep = bleater.Mk_bleater(1, os.Stderr)
	inst_sheep.Set_prefix("installer")
	tegu_sheep.Add_child(inst_sheep)

	fi := Mk_flow_installer()

	for {
		req := <-ich
		req.State = nil

		switch req.Msg_type {
		case REQ_NOOP:

		case REQ_BOOTSTRAP:
			bridge := req.Req_data.(string)
			req.State = fi.Bootstrap(bridge)

		case REQ_INSTALL:
			f := req.Req_data.(*gizmos.Flow)
			if err := fi.Install(f); err != nil {
				inst_sheep.Baa(0, "ERR: %s", err)
			}

		case REQ_DEL_FLOW:
			data := req.Req_data.([]interface{})
			bridge := data[0].(string)
			flow_id := data[1].(int)
			if err := fi.Del_flow(bridge, flow_id); err != nil {
				inst_sheep.Baa(0, "ERR: %s", err)
			}

		case REQ_DEL_HOP:
			data := req.Req_data.([]interface{})
			dpid := data[0].(string)
			flow_id := data[1].(int)
			hop_index := data[2].(int)
			if err := fi.Del_hop(dpid, flow_id, hop_index); err != nil {
				inst_sheep.Baa(0, "ERR: %s", err)
			}
		}

		if req.Response_ch != nil {
			req.Response_ch <- req
		}
	}
}
