// vi: sw=4 ts=4:

package gizmos

import "testing"

func TestPathTableDirectLookup(t *testing.T) {
	pt := Mk_path_table()
	hops := []Hop{{Dpid: "br0", Out_port: 1}, {Dpid: "br1", Out_port: 2}}
	pt.Add("10.0.0.1", "10.0.0.2", hops)

	got := pt.Lookup("10.0.0.1", "10.0.0.2")
	if len(got) != 2 || got[0] != hops[0] || got[1] != hops[1] {
		t.Errorf("Lookup direct = %v, want %v", got, hops)
	}
}

func TestPathTableReverseLookupIsReversed(t *testing.T) {
	pt := Mk_path_table()
	hops := []Hop{{Dpid: "br0", Out_port: 1}, {Dpid: "br1", Out_port: 2}, {Dpid: "br2", Out_port: 3}}
	pt.Add("10.0.0.1", "10.0.0.2", hops)

	got := pt.Lookup("10.0.0.2", "10.0.0.1")
	want := []Hop{{Dpid: "br2", Out_port: 3}, {Dpid: "br1", Out_port: 2}, {Dpid: "br0", Out_port: 1}}

	if len(got) != len(want) {
		t.Fatalf("reverse lookup length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reverse lookup[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestPathTableNoPathReturnsEmpty(t *testing.T) {
	pt := Mk_path_table()
	got := pt.Lookup("10.0.0.9", "10.0.0.8")
	if len(got) != 0 {
		t.Errorf("Lookup with no entry = %v, want empty", got)
	}
	if got == nil {
		t.Errorf("Lookup with no entry must return a non-nil empty slice")
	}
}

func TestPathTableSize(t *testing.T) {
	pt := Mk_path_table()
	pt.Add("a", "b", []Hop{{Dpid: "br0", Out_port: 1}})
	pt.Add("c", "d", []Hop{{Dpid: "br1", Out_port: 1}})
	if pt.Size() != 2 {
		t.Errorf("Size() = %d, want 2", pt.Size())
	}
}
