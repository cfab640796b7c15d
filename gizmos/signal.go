// vi: sw=4 ts=4:

/*

	Mnemonic:	signal
	Abstract:	the host-signalling wire record: one newline-terminated JSON
				object per TCP connection, sent by the Host Channel to a
				flow's sink (FLOW_PREPARE) and source (PERMIT).
	Date:		31 July 2026
	Author:		C. Oronye
*/

package gizmos

const (
	SIGNAL_FLOW_PREPARE = "FLOW_PREPARE"
	SIGNAL_PERMIT       = "PERMIT"
)

/*
	Signal_rec is exported end to end so encoding/json can marshal it
	directly -- unlike Flow's own To_json, this one IS the wire contract, so
	there's no benefit in hand-building it.
*/
type Signal_rec struct {
	Type          string `json:"type"`
	Flow_id       int    `json:"flow_id"`
	Src_ip        string `json:"src_ip"`
	Dst_ip        string `json:"dst_ip"`
	Src_port      int    `json:"src_port,omitempty"`
	Dst_port      int    `json:"dst_port,omitempty"`
	Send_rate_bps int64  `json:"send_rate_bps"`
	Size_bytes    int64  `json:"size_bytes"`
	Dscp          int    `json:"dscp"`
	Run_ts        int64  `json:"run_ts,omitempty"`
}

func Mk_prepare_rec(f *Flow, run_ts int64) Signal_rec {
	src, dst := f.Get_hosts()
	_, dport := f.Get_ports()

	return Signal_rec{
		Type:          SIGNAL_FLOW_PREPARE,
		Flow_id:       f.Get_id(),
		Src_ip:        *src,
		Dst_ip:        *dst,
		Dst_port:      dport,
		Send_rate_bps: f.Get_send_rate(),
		Size_bytes:    f.Get_size_bytes(),
		Dscp:          f.Get_dscp(),
		Run_ts:        run_ts,
	}
}

func Mk_permit_rec(f *Flow, run_ts int64) Signal_rec {
	src, dst := f.Get_hosts()
	sport, dport := f.Get_ports()

	return Signal_rec{
		Type:          SIGNAL_PERMIT,
		Flow_id:       f.Get_id(),
		Src_ip:        *src,
		Dst_ip:        *dst,
		Src_port:      sport,
		Dst_port:      dport,
		Send_rate_bps: f.Get_send_rate(),
		Size_bytes:    f.Get_size_bytes(),
		Dscp:          f.Get_dscp(),
		Run_ts:        run_ts,
	}
}
