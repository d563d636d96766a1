// Package partition splits target networks into sub-ranges sized for
// parallel host discovery scans.
package partition

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

const (
	// Ranges wider than this are cut into /24 blocks.
	splitBelow = 23
	// Ranges at least this narrow are scanned as they are.
	keepFrom  = 26
	blockBits = 24
	// Ranges in between are cut into quarters.
	quarterStep = 2
)

// Partition returns the sub-targets of p. Ranges shorter than /23 become /24
// blocks, /23 to /25 are split into quarters, and /26 or narrower ranges as
// well as single addresses come back unchanged. The result is ordered by
// address.
func Partition(p netip.Prefix) []netip.Prefix {
	p = p.Masked()
	bits := p.Bits()
	switch {
	case p.IsSingleIP() || bits >= keepFrom:
		return []netip.Prefix{p}
	case bits < splitBelow:
		return split(p, blockBits)
	default:
		return split(p, bits+quarterStep)
	}
}

// PartitionAll partitions every target in order.
func PartitionAll(targets []netip.Prefix) []netip.Prefix {
	var out []netip.Prefix
	for _, t := range targets {
		out = append(out, Partition(t)...)
	}
	return out
}

func split(p netip.Prefix, newBits int) []netip.Prefix {
	n := 1 << min(newBits-p.Bits(), 16)
	out := make([]netip.Prefix, 0, n)
	for addr := p.Addr(); p.Contains(addr); {
		sub := netip.PrefixFrom(addr, newBits)
		out = append(out, sub)
		addr = netipx.PrefixLastIP(sub).Next()
		if !addr.IsValid() {
			// wrapped past the end of the address space
			break
		}
	}
	return out
}

// ParseTarget accepts a single address or a CIDR range. Single addresses are
// returned as full-length prefixes.
func ParseTarget(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("parsing network %q: %w", s, err)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("parsing address %q: %w", s, err)
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// ParseTargets parses every entry, failing on the first invalid one.
func ParseTargets(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
