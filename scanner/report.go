package scanner

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/Ullaakut/nmap/v3"
)

// ErrMalformedReport is returned when a report cannot be parsed as nmap XML.
var ErrMalformedReport = errors.New("malformed nmap report")

// Host is one host of a scan report.
type Host struct {
	Addr       netip.Addr
	Up         bool
	Hostname   string
	OS         string
	OSAccuracy int
	// Ports holds the open ports only.
	Ports []Port
}

// Port is an open port of a host.
type Port struct {
	Number     uint16
	Protocol   string
	Service    string
	Product    string
	Version    string
	ExtraInfo  string
	Tunnel     string
	Confidence int
}

// ServiceVersion joins product, version and extra info the way nmap prints
// them, e.g. "OpenSSH 9.6 (protocol 2.0)".
func (p Port) ServiceVersion() string {
	var sb strings.Builder
	sb.WriteString(p.Product)
	if p.Version != "" {
		sb.WriteString(" " + p.Version)
	}
	if p.ExtraInfo != "" {
		sb.WriteString(" (" + p.ExtraInfo + ")")
	}
	return strings.TrimSpace(sb.String())
}

// Parse reads an nmap XML report. Hosts without an IP address are skipped.
func Parse(raw []byte) ([]Host, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty report", ErrMalformedReport)
	}
	var run nmap.Run
	if err := nmap.Parse(raw, &run); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	hosts := make([]Host, 0, len(run.Hosts))
	for _, h := range run.Hosts {
		addr, ok := ipAddress(h)
		if !ok {
			continue
		}
		host := Host{
			Addr: addr,
			Up:   strings.EqualFold(h.Status.State, "up"),
		}
		for _, hn := range h.Hostnames {
			host.Hostname = hn.Name
		}
		for _, m := range h.OS.Matches {
			if host.OS == "" || m.Accuracy > host.OSAccuracy {
				host.OS = m.Name
				host.OSAccuracy = m.Accuracy
			}
		}
		for _, p := range h.Ports {
			if p.State.State != "open" {
				continue
			}
			host.Ports = append(host.Ports, Port{
				Number:     p.ID,
				Protocol:   p.Protocol,
				Service:    p.Service.Name,
				Product:    p.Service.Product,
				Version:    p.Service.Version,
				ExtraInfo:  p.Service.ExtraInfo,
				Tunnel:     p.Service.Tunnel,
				Confidence: p.Service.Confidence,
			})
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

// ipAddress picks the first IP address of the host; ARP scans also report
// the MAC address.
func ipAddress(h nmap.Host) (netip.Addr, bool) {
	for _, a := range h.Addresses {
		if a.AddrType == "mac" {
			continue
		}
		addr, err := netip.ParseAddr(a.Addr)
		if err != nil {
			continue
		}
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}
