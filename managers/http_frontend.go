// vi: sw=4 ts=4:

/*

	Mnemonic:	http_frontend
	Abstract:	Request Front-End -- the two REST handlers that accept a
				host registration and a flow request, validate input
				synchronously, and hand off the asynchronous part of the
				work (admission) to the Scheduler Core. Unlike tegu's own
				http_api.go -- which speaks a semicolon-tokenised admin
				command language over a single catch-all endpoint -- this
				controller's wire contract (spec.md Sec.6) is two small
				JSON request/response pairs, so the handlers decode bodies
				with encoding/json rather than tegu's token.Tokenise_drop,
				but keep the same net/http.HandleFunc + bleater + ipc.Chmsg
				dispatch shape as the rest of this package.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/http_api.go Http_api listener
				bring-up (bleater attach, http.HandleFunc registration,
				ListenAndServe).
*/

package managers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/ipc"
)

var fe_sheep *bleater.Bleater

type register_host_req struct {
	Host_ip     string `json:"host_ip"`
	Permit_port int    `json:"permit_port"`
	Recv_port   int    `json:"recv_port"`
}

type register_host_resp struct {
	Ok bool `json:"ok"`
}

type flow_req struct {
	Src_ip           string `json:"src_ip"`
	Src_port         int    `json:"src_port"`
	Size_bytes       int64  `json:"size_bytes"`
	Request_rate_bps int64  `json:"request_rate_bps"`
	Priority         int    `json:"priority"`
}

type flow_resp struct {
	Flow_id  int    `json:"flow_id"`
	Status   string `json:"status"`
	Dst_ip   string `json:"dst_ip"`
	Dst_port int    `json:"dst_port"`
}

type err_resp struct {
	Error string `json:"error"`
}

/*
	Http_frontend owns the net/http handlers and the collaborators they
	call into: the scheduler directly (New_flow is already safe for
	concurrent callers via its own mutex) and the host channel goroutine
	via its request channel (registration/lookup are not exposed as plain
	methods since Host_channel lives entirely inside Hostchan_mgr).
*/
type Http_frontend struct {
	sch         *Scheduler
	hostchan_ch chan *ipc.Chmsg
}

func Mk_http_frontend(sch *Scheduler, hostchan_ch chan *ipc.Chmsg) *Http_frontend {
	return &Http_frontend{sch: sch, hostchan_ch: hostchan_ch}
}

func write_json(out http.ResponseWriter, status int, v interface{}) {
	out.Header().Set("Content-Type", "application/json")
	out.WriteHeader(status)
	if err := json.NewEncoder(out).Encode(v); err != nil {
		fe_sheep.Baa(0, "ERR: response encode failed: %s", err)
	}
}

func bad_request(out http.ResponseWriter, msg string) {
	write_json(out, http.StatusBadRequest, err_resp{Error: msg})
}

/*
	ask_hostchan is the synchronous request/response pattern used to reach
	into the Host Channel goroutine from an HTTP handler: send a request,
	block on a private response channel, hand back whatever Response_data
	came back.
*/
func (fe *Http_frontend) ask_hostchan(msg_type int, data interface{}) interface{} {
	req := ipc.Mk_chmsg()
	resp_ch := make(chan *ipc.Chmsg)
	req.Send_req(fe.hostchan_ch, resp_ch, msg_type, data, nil)
	req = <-resp_ch
	return req.Response_data
}

/*
	register_host handles POST /scheduler/register_host: body
	{host_ip, permit_port, recv_port} -> {ok: true}; 400 for invalid input.
*/
func (fe *Http_frontend) register_host(out http.ResponseWriter, in *http.Request) {
	if in.Method != http.MethodPost {
		bad_request(out, "method not allowed")
		return
	}

	var req register_host_req
	if err := json.NewDecoder(in.Body).Decode(&req); err != nil {
		bad_request(out, "malformed json body")
		return
	}

	if req.Host_ip == "" || req.Permit_port <= 0 || req.Recv_port <= 0 {
		bad_request(out, "host_ip, permit_port and recv_port are required")
		return
	}

	fe.ask_hostchan(REQ_REGISTER, []interface{}{req.Host_ip, req.Permit_port, req.Recv_port})

	fe_sheep.Baa(1, "host registered: %s permit=%d recv=%d", req.Host_ip, req.Permit_port, req.Recv_port)
	write_json(out, http.StatusOK, register_host_resp{Ok: true})
}

/*
	request handles POST /scheduler/request: body {src_ip, src_port,
	size_bytes, request_rate_bps?, priority} -> {flow_id, status, dst_ip,
	dst_port}; 400 for invalid input, 503 if no peer host is registered.
	The destination is drawn by the Host Channel, never supplied by the
	caller.
*/
func (fe *Http_frontend) request(out http.ResponseWriter, in *http.Request) {
	if in.Method != http.MethodPost {
		bad_request(out, "method not allowed")
		return
	}

	var req flow_req
	if err := json.NewDecoder(in.Body).Decode(&req); err != nil {
		bad_request(out, "malformed json body")
		return
	}

	if req.Src_ip == "" {
		bad_request(out, "src_ip is required")
		return
	}
	if req.Size_bytes <= 0 {
		bad_request(out, "size_bytes must be positive")
		return
	}
	if req.Priority < 0 || req.Priority > 2 {
		bad_request(out, "priority must be 0, 1 or 2")
		return
	}

	if ok, _ := fe.ask_hostchan(REQ_IS_REGISTERED, req.Src_ip).(bool); !ok {
		bad_request(out, "unknown source host")
		return
	}

	dst_ip, _ := fe.ask_hostchan(REQ_PICK_DEST, req.Src_ip).(string)
	if dst_ip == "" {
		write_json(out, http.StatusServiceUnavailable, err_resp{Error: "no peer host registered"})
		return
	}

	f, err := fe.sch.New_flow(req.Src_ip, dst_ip, req.Src_port, req.Size_bytes, req.Request_rate_bps, req.Priority)
	if err != nil {
		bad_request(out, err.Error())
		return
	}

	_, dport := f.Get_ports() // zero until the flow is admitted on a later scheduling tick

	write_json(out, http.StatusOK, flow_resp{
		Flow_id:  f.Get_id(),
		Status:   f.Get_status(),
		Dst_ip:   dst_ip,
		Dst_port: dport,
	})
}

/*
	Http_frontend_mgr starts the listener. Blocks; intended to be invoked as `go
	managers.Http_frontend_mgr(...)` from main, matching every other
	manager goroutine's Xxx_mgr naming.
*/
func Http_frontend_mgr(rest_port string, sch *Scheduler, hostchan_ch chan *ipc.Chmsg) {
	fe_sheep = bleater.Mk_bleater(1, os.Stderr)
	fe_sheep.Set_prefix("http_frontend")
	tegu_sheep.Add_child(fe_sheep)

	fe := Mk_http_frontend(sch, hostchan_ch)

	mux := http.NewServeMux()
	mux.HandleFunc("/scheduler/register_host", fe.register_host)
	mux.HandleFunc("/scheduler/request", fe.request)

	fe_sheep.Baa(1, "rest front-end listening on %s", rest_port)
	err := http.ListenAndServe(":"+rest_port, mux)
	if err != nil {
		fe_sheep.Baa(0, "ERR: rest listener failed: %s", err)
	}
}
