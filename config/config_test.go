// vi: sw=4 ts=4:

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/conorye/sdn-qos/gizmos"
)

func writeTempCfg(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writeTempCfg: %s", err)
	}
	return path
}

func TestLoadControllerCfgDefaults(t *testing.T) {
	path := writeTempCfg(t, "controller.cfg", `
[signal]
bind_addr = 0.0.0.0
`)

	cfg, err := Load_controller_cfg(path)
	if err != nil {
		t.Fatalf("Load_controller_cfg: %s", err)
	}

	if cfg.Rest.Port != "29444" {
		t.Errorf("Rest.Port default = %q, want 29444", cfg.Rest.Port)
	}
	if cfg.Datapath.Port != "6633" {
		t.Errorf("Datapath.Port default = %q, want 6633", cfg.Datapath.Port)
	}
	if cfg.Scheduler.T_sched != 1 || cfg.Scheduler.T_idle != 3 || cfg.Scheduler.T_poll != 2 {
		t.Errorf("scheduler defaults wrong: %+v", cfg.Scheduler)
	}
	if cfg.Ports.Src_base != 10000 || cfg.Ports.Src_max != 65000 {
		t.Errorf("port range defaults wrong: %+v", cfg.Ports)
	}
	if cfg.Observability.Log_dir != "/var/log/sdn-qos" {
		t.Errorf("Log_dir default = %q", cfg.Observability.Log_dir)
	}
}

func TestLoadControllerCfgExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeTempCfg(t, "controller.cfg", `
[rest]
port = 8080

[scheduler]
t_sched = 5
t_idle = 9
base_octet = 100
`)

	cfg, err := Load_controller_cfg(path)
	if err != nil {
		t.Fatalf("Load_controller_cfg: %s", err)
	}

	if cfg.Rest.Port != "8080" {
		t.Errorf("Rest.Port = %q, want 8080", cfg.Rest.Port)
	}
	if cfg.Scheduler.T_sched != 5 || cfg.Scheduler.T_idle != 9 {
		t.Errorf("explicit scheduler values not honoured: %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Base_octet != 100 {
		t.Errorf("Base_octet = %d, want 100", cfg.Scheduler.Base_octet)
	}
}

func TestLoadControllerCfgMissingFile(t *testing.T) {
	if _, err := Load_controller_cfg(filepath.Join(t.TempDir(), "nope.cfg")); err == nil {
		t.Errorf("Load_controller_cfg on a missing file should error")
	}
}

func TestLoadTopologyCfgPortsAndPaths(t *testing.T) {
	path := writeTempCfg(t, "topology.cfg", `
[port "br0,1"]
capacity = 10000000

[port "br1,2"]
capacity = 20000000

[path "10.0.0.1,10.0.0.2"]
hops = br0:1,br1:2

[path "10.0.0.2,10.0.0.1"]
hops = br1:2,br0:1
`)

	topo, err := Load_topology_cfg(path)
	if err != nil {
		t.Fatalf("Load_topology_cfg: %s", err)
	}

	if len(topo.Ports) != 2 {
		t.Fatalf("Ports len = %d, want 2", len(topo.Ports))
	}
	if len(topo.Paths) != 2 {
		t.Fatalf("Paths len = %d, want 2", len(topo.Paths))
	}

	seen := map[string]int64{}
	topo.Each_port(func(dpid string, port_no int, capacity_bps int64) {
		seen[dpid] = capacity_bps
	})
	if seen["br0"] != 10000000 || seen["br1"] != 20000000 {
		t.Errorf("Each_port capacities = %+v", seen)
	}

	var forward []gizmos.Hop
	topo.Each_path(func(src_ip string, dst_ip string, hops []gizmos.Hop) {
		if src_ip == "10.0.0.1" && dst_ip == "10.0.0.2" {
			forward = hops
		}
	})
	if len(forward) != 2 || forward[0].Dpid != "br0" || forward[1].Dpid != "br1" {
		t.Errorf("Each_path forward hops = %+v", forward)
	}
}

func TestSplitPortKey(t *testing.T) {
	dpid, port_no, err := split_port_key("br0,7")
	if err != nil || dpid != "br0" || port_no != 7 {
		t.Errorf("split_port_key(br0,7) = %q,%d,%v", dpid, port_no, err)
	}

	if _, _, err := split_port_key("no-comma"); err == nil {
		t.Errorf("split_port_key without a comma should error")
	}

	if _, _, err := split_port_key("br0,notanumber"); err == nil {
		t.Errorf("split_port_key with a non-numeric port should error")
	}
}

func TestSplitPathKey(t *testing.T) {
	src, dst, err := split_path_key(" 10.0.0.1 , 10.0.0.2 ")
	if err != nil || src != "10.0.0.1" || dst != "10.0.0.2" {
		t.Errorf("split_path_key trims whitespace wrong: %q %q %v", src, dst, err)
	}

	if _, _, err := split_path_key("no-comma"); err == nil {
		t.Errorf("split_path_key without a comma should error")
	}
}

func TestParseHops(t *testing.T) {
	hops, err := parse_hops("br0:1, br1:2 ,br2:3")
	if err != nil {
		t.Fatalf("parse_hops: %s", err)
	}
	if len(hops) != 3 {
		t.Fatalf("parse_hops len = %d, want 3", len(hops))
	}
	if hops[0].Dpid != "br0" || hops[0].Out_port != 1 {
		t.Errorf("parse_hops[0] = %+v", hops[0])
	}
	if hops[2].Dpid != "br2" || hops[2].Out_port != 3 {
		t.Errorf("parse_hops[2] = %+v", hops[2])
	}
}

func TestParseHopsMalformedToken(t *testing.T) {
	if _, err := parse_hops("br0-missing-colon"); err == nil {
		t.Errorf("parse_hops with a token missing ':' should error")
	}
	if _, err := parse_hops("br0:notanumber"); err == nil {
		t.Errorf("parse_hops with a non-numeric out_port should error")
	}
}
