// vi: sw=4 ts=4:

/*

	Mnemonic:	cookie
	Abstract:	pack/unpack helpers for the 64-bit flow rule cookie: flow_id in
				the upper 32 bits, hop index (1-based) in the lower 32 bits.
	Date:		31 July 2026
	Author:		C. Oronye
*/

package gizmos

// Mask_flow is the cookie mask used for masked (flow-scoped) deletes: it
// matches only the upper 32 bits, ignoring hop index.
const Mask_flow uint64 = 0xffffffff00000000

func Mk_cookie(flow_id int, hop_index int) uint64 {
	return (uint64(uint32(flow_id)) << 32) | uint64(uint32(hop_index))
}

func Cookie_flow_id(cookie uint64) int {
	return int(uint32(cookie >> 32))
}

func Cookie_hop_index(cookie uint64) int {
	return int(uint32(cookie))
}
