// vi: sw=4 ts=4:

/*

	Mnemonic:	hostchan
	Abstract:	Host Channel -- registry of hosts plus the outbound signalling
				socket that speaks FLOW_PREPARE/PERMIT to them. Runs as its
				own goroutine since both sends are short TCP dials with a
				connect timeout that must not stall the scheduler.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/agent.go send2one/send2all dispatch
				pattern, redirected at per-host sockets instead of a shared
				agent connection pool.
*/

package managers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"

	"github.com/conorye/sdn-qos/gizmos"
)

var hc_sheep *bleater.Bleater

const signal_dial_timeout = 3 * time.Second

type host_rec struct {
	permit_port int
	recv_port   int
}

type Host_channel struct {
	hosts map[string]host_rec
}

func Mk_host_channel() *Host_channel {
	return &Host_channel{hosts: make(map[string]host_rec)}
}

/*
	Register is an idempotent upsert of a host's signalling ports.
*/
func (hc *Host_channel) Register(host_ip string, permit_port int, recv_port int) {
	hc.hosts[host_ip] = host_rec{permit_port: permit_port, recv_port: recv_port}
}

func (hc *Host_channel) Is_registered(host_ip string) bool {
	_, ok := hc.hosts[host_ip]
	return ok
}

/*
	Pick_destination chooses uniformly at random among registered hosts
	other than src_ip; returns "" if none qualify.
*/
func (hc *Host_channel) Pick_destination(src_ip string) string {
	candidates := make([]string, 0, len(hc.hosts))
	for ip := range hc.hosts {
		if ip != src_ip {
			candidates = append(candidates, ip)
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	return candidates[rand.Intn(len(candidates))]
}

/*
	send writes one newline-terminated JSON record to ip:port and closes
	the connection. Any I/O failure is logged and swallowed -- signalling
	is fire-and-forget; the flow is reclaimed by the idle path if the
	record never arrives.
*/
func (hc *Host_channel) send(ip string, port int, rec gizmos.Signal_rec) {
	addr := fmt.Sprintf("%s:%d", ip, port)

	conn, err := net.DialTimeout("tcp", addr, signal_dial_timeout)
	if err != nil {
		hc_sheep.Baa(1, "WRN: unable to reach %s for %s: %s", addr, rec.Type, err)
		return
	}
	defer conn.Close()

	jb, err := json.Marshal(rec)
	if err != nil {
		hc_sheep.Baa(0, "ERR: unable to marshal %s record: %s", rec.Type, err)
		return
	}

	w := bufio.NewWriter(conn)
	if _, err := w.Write(append(jb, '\n')); err != nil {
		hc_sheep.Baa(1, "WRN: write of %s to %s failed: %s", rec.Type, addr, err)
		return
	}
	if err := w.Flush(); err != nil {
		hc_sheep.Baa(1, "WRN: flush of %s to %s failed: %s", rec.Type, addr, err)
	}
}

/*
	Send_flow_prepare opens a connection to dst_ip:permit_port and writes
	the FLOW_PREPARE record. Must be called before Send_permit for the same
	flow -- the sink needs to be listening before the source attempts to
	open a transport.
*/
func (hc *Host_channel) Send_flow_prepare(f *gizmos.Flow, run_ts int64) {
	_, dst := f.Get_hosts()
	hr, ok := hc.hosts[*dst]
	if !ok {
		hc_sheep.Baa(1, "WRN: flow %d: destination %s not registered, FLOW_PREPARE dropped", f.Get_id(), *dst)
		return
	}

	hc.send(*dst, hr.permit_port, gizmos.Mk_prepare_rec(f, run_ts))
	f.Note_prepare_sent()
}

func (hc *Host_channel) Send_permit(f *gizmos.Flow, run_ts int64) {
	src, _ := f.Get_hosts()
	hr, ok := hc.hosts[*src]
	if !ok {
		hc_sheep.Baa(1, "WRN: flow %d: source %s not registered, PERMIT dropped", f.Get_id(), *src)
		return
	}

	hc.send(*src, hr.permit_port, gizmos.Mk_permit_rec(f, run_ts))
	f.Note_permit_sent()
}

/*
	Hostchan_mgr is the host channel's goroutine main loop.
*/
func Hostchan_mgr(hch chan *ipc.Chmsg) {
	hc_sheep = bleater.Mk_bleater(1, os.Stderr)
	hc_sheep.Set_prefix("hostchan")
	tegu_sheep.Add_child(hc_sheep)

	hc := Mk_host_channel()

	for {
		req := <-hch
		req.State = nil

		switch req.Msg_type {
		case REQ_NOOP:

		case REQ_REGISTER:
			data := req.Req_data.([]interface{})
			hc.Register(data[0].(string), data[1].(int), data[2].(int))

		case REQ_PICK_DEST:
			src_ip := req.Req_data.(string)
			req.Response_data = hc.Pick_destination(src_ip)

		case REQ_IS_REGISTERED:
			src_ip := req.Req_data.(string)
			req.Response_data = hc.Is_registered(src_ip)

		case REQ_SEND_PREPARE:
			data := req.Req_data.([]interface{})
			hc.Send_flow_prepare(data[0].(*gizmos.Flow), data[1].(int64))

		case REQ_SEND_PERMIT:
			data := req.Req_data.([]interface{})
			hc.Send_permit(data[0].(*gizmos.Flow), data[1].(int64))
		}

		if req.Response_ch != nil {
			req.Response_ch <- req
		}
	}
}
