// vi: sw=4 ts=4:

/*

	Mnemonic:	datapath
	Abstract:	Datapath lifecycle tracking. Raw OpenFlow connection
				management is out of scope for this controller (the message
				library is an external collaborator); what this goroutine
				reproduces is the boundary behaviour the scheduler depends
				on -- a switch announcing itself and eventually dropping --
				using a lightweight TCP hello on a well known port, exactly
				the shape tegu's agent channel already manages.

				A connecting bridge is not trusted to be identified by its
				TCP session id alone: it sends one newline-terminated JSON
				hello record naming its own dpid (the same string used as
				the bridge name the installer and ledger key on), and that
				reported dpid -- not the session id -- is what gets
				bootstrapped and handed to the scheduler.

	Date:		31 July 2026
	Author:		C. Oronye

	Mods:		based on tegu's managers/agent.go connman + jsontools wiring.
*/

package managers

import (
	"encoding/json"
	"os"

	"github.com/att/gopkgs/bleater"
	"github.com/att/gopkgs/connman"
	"github.com/att/gopkgs/ipc"
	"github.com/att/gopkgs/jsontools"
)

var dp_sheep *bleater.Bleater

// dp_hello is the one-record hello a bridge sends immediately after connecting.
type dp_hello struct {
	Dpid string `json:"dpid"`
}

// dp_session tracks the per-connection json cache and the dpid learned from
// its hello record, so a later ST_DISC (which carries only the session id)
// can still be translated into the right REQ_DP_DOWN.
type dp_session struct {
	cache *jsontools.Jsoncache
	dpid  string
}

/*
	Datapath_mgr listens on port for bridge hello connections. A session is
	tracked from ST_NEW, but bootstrap/REQ_DP_UP do not fire until its hello
	blob has been parsed and a dpid extracted -- until then the switch is
	not usable.
*/
func Datapath_mgr(port string, ich chan *ipc.Chmsg, sch_ch chan *ipc.Chmsg) {
	dp_sheep = bleater.Mk_bleater(1, os.Stderr)
	dp_sheep.Set_prefix("datapath")
	tegu_sheep.Add_child(dp_sheep)

	sess_chan := make(chan *connman.Sess_data, 1024)
	connman.NewManager(port, sess_chan)

	dp_sheep.Baa(1, "datapath listener started on port %s", port)

	sessions := make(map[string]*dp_session)

	for sreq := range sess_chan {
		switch sreq.State {
		case connman.ST_ACCEPTED:

		case connman.ST_NEW:
			dp_sheep.Baa(2, "datapath session opened, awaiting hello: %s", sreq.Id)
			sessions[sreq.Id] = &dp_session{cache: jsontools.Mk_jsoncache()}

		case connman.ST_DATA:
			sess, ok := sessions[sreq.Id]
			if !ok {
				dp_sheep.Baa(1, "WRN: data from unknown datapath session: %s", sreq.Id)
				continue
			}

			sess.cache.Add_bytes(sreq.Buf)
			for blob := sess.cache.Get_blob(); blob != nil; blob = sess.cache.Get_blob() {
				var hello dp_hello
				if err := json.Unmarshal(blob, &hello); err != nil || hello.Dpid == "" {
					dp_sheep.Baa(0, "ERR: corrupt or empty datapath hello on %s: %v", sreq.Id, err)
					continue
				}

				if sess.dpid != "" {
					continue // hello already processed for this session, ignore repeats
				}
				sess.dpid = hello.Dpid

				boot := ipc.Mk_chmsg()
				resp_ch := make(chan *ipc.Chmsg)
				boot.Send_req(ich, resp_ch, REQ_BOOTSTRAP, hello.Dpid, nil)
				boot = <-resp_ch
				if boot.State != nil {
					dp_sheep.Baa(0, "ERR: bootstrap of %s failed: %s", hello.Dpid, boot.State)
					continue
				}

				up := ipc.Mk_chmsg()
				up.Send_req(sch_ch, nil, REQ_DP_UP, hello.Dpid, nil)
				dp_sheep.Baa(1, "datapath connected: %s (session %s)", hello.Dpid, sreq.Id)
			}

		case connman.ST_DISC:
			sess, ok := sessions[sreq.Id]
			delete(sessions, sreq.Id)
			if !ok || sess.dpid == "" {
				dp_sheep.Baa(2, "datapath session closed before hello: %s", sreq.Id)
				continue
			}

			dp_sheep.Baa(1, "datapath dropped: %s", sess.dpid)
			down := ipc.Mk_chmsg()
			down.Send_req(sch_ch, nil, REQ_DP_DOWN, sess.dpid, nil)
		}
	}
}
