package ip

import (
	"net"
)

// NetSet is a fast lookup table for membership of a single IP address
// within a collection of CIDR networks. Named IP sets referenced from
// resource rules are compiled into one of these at load time.
//
// Supports 4-byte (IPv4) and 16-byte (IPv6) networks. O(1) best case,
// O(log n) worst case over the distinct mask lengths present; in practice
// masks cluster on the standard lengths so lookups lean toward best case.
type NetSet struct {
	ip4NetMaps []ipNetMap
	ip6NetMaps []ipNetMap
}

// NewNetSet creates an empty NetSet.
func NewNetSet() *NetSet {
	return &NetSet{
		ip4NetMaps: make([]ipNetMap, 0),
		ip6NetMaps: make([]ipNetMap, 0),
	}
}

// Has reports whether ip falls inside any network in the set.
func (w *NetSet) Has(ip net.IP) bool {
	netMaps := w.getNetMaps(ip)
	if netMaps == nil {
		return false
	}

	for _, netMap := range *netMaps {
		if netMap.has(ip) {
			return true
		}
	}
	return false
}

// AddIPNet adds a CIDR network to the set.
func (w *NetSet) AddIPNet(ipNet net.IPNet) {
	netMaps := w.getNetMaps(ipNet.IP)
	if netMaps == nil {
		return
	}

	ones, _ := ipNet.Mask.Size()

	var netMap *ipNetMap
	for i := 0; len(*netMaps) > i; i++ {
		if netMapOnes, _ := (*netMaps)[i].mask.Size(); netMapOnes == ones {
			netMap = &(*netMaps)[i]
			break
		}
	}

	if netMap == nil {
		*netMaps = append(*netMaps, ipNetMap{
			mask: ipNet.Mask,
			ips:  make(map[string]bool),
		})
		netMap = &(*netMaps)[len(*netMaps)-1]
	}

	netMap.ips[ipNet.IP.Mask(ipNet.Mask).String()] = true
}

// getNetMaps returns the appropriate array of networks for the given IP
// version, or nil when the IP is neither 4-byte nor 16-byte.
func (w *NetSet) getNetMaps(ip net.IP) *[]ipNetMap {
	switch {
	case ip.To4() != nil:
		return &w.ip4NetMaps
	case ip.To16() != nil:
		return &w.ip6NetMaps
	default:
		return nil
	}
}

// ipNetMap is a hash-set of CIDR networks sharing one mask size.
type ipNetMap struct {
	mask net.IPMask
	ips  map[string]bool
}

// has checks if the IP is in any of the CIDR networks contained in this map.
func (m ipNetMap) has(ip net.IP) bool {
	ipMasked := ip.Mask(m.mask)
	if ipMasked == nil {
		// Mask and IP protocol versions disagree; not a member.
		return false
	}
	return m.ips[ipMasked.String()]
}
