// vi: sw=4 ts=4:

/*

	Mnemonic:	pathtable
	Abstract:	static lookup of a hop list for a (src_ip, dst_ip) pair, loaded
				once at boot from the topology configuration and never mutated
				thereafter.
	Date:		31 July 2026
	Author:		C. Oronye
*/

package gizmos

type Path_table struct {
	paths map[string][]Hop // key: src_ip + "," + dst_ip
}

func Mk_path_table() *Path_table {
	return &Path_table{paths: make(map[string][]Hop)}
}

func pt_key(src_ip string, dst_ip string) string {
	return src_ip + "," + dst_ip
}

/*
	Add installs the hop sequence for (src_ip, dst_ip); called only during
	boot-time configuration load.
*/
func (pt *Path_table) Add(src_ip string, dst_ip string, hops []Hop) {
	pt.paths[pt_key(src_ip, dst_ip)] = hops
}

/*
	Lookup returns the ordered hop sequence for (src_ip, dst_ip). If the
	direct key is absent the reverse key is tried with its hop list
	reversed; otherwise an empty (non-nil) sequence is returned, signalling
	"no path".
*/
func (pt *Path_table) Lookup(src_ip string, dst_ip string) []Hop {
	if hops, ok := pt.paths[pt_key(src_ip, dst_ip)]; ok {
		return hops
	}

	if rev, ok := pt.paths[pt_key(dst_ip, src_ip)]; ok {
		out := make([]Hop, len(rev))
		for i := range rev {
			out[len(rev)-1-i] = rev[i]
		}
		return out
	}

	return []Hop{}
}

func (pt *Path_table) Size() int {
	return len(pt.paths)
}
