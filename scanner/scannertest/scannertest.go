// Package scannertest builds nmap XML reports for tests.
package scannertest

import (
	"fmt"
	"strings"
)

// Port describes an open port in a generated report.
type Port struct {
	Number   int
	Protocol string
	Service  string
	Product  string
	Version  string
}

// Host describes a host in a generated report.
type Host struct {
	Addr     string
	Up       bool
	Hostname string
	MAC      string
	Ports    []Port
}

// XML renders a minimal nmaprun document that nmap.Parse accepts.
func XML(hosts ...Host) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<nmaprun scanner="nmap" args="nmap" version="7.94" xmloutputversion="1.05">` + "\n")
	for _, h := range hosts {
		state := "down"
		if h.Up {
			state = "up"
		}
		sb.WriteString("<host>")
		fmt.Fprintf(&sb, `<status state="%s" reason="echo-reply"/>`, state)
		fmt.Fprintf(&sb, `<address addr="%s" addrtype="ipv4"/>`, h.Addr)
		if h.MAC != "" {
			fmt.Fprintf(&sb, `<address addr="%s" addrtype="mac"/>`, h.MAC)
		}
		if h.Hostname != "" {
			fmt.Fprintf(&sb, `<hostnames><hostname name="%s" type="PTR"/></hostnames>`, h.Hostname)
		}
		if len(h.Ports) > 0 {
			sb.WriteString("<ports>")
			for _, p := range h.Ports {
				fmt.Fprintf(&sb, `<port protocol="%s" portid="%d"><state state="open" reason="syn-ack"/>`, p.Protocol, p.Number)
				fmt.Fprintf(&sb, `<service name="%s" product="%s" version="%s" method="probed" conf="10"/></port>`,
					p.Service, p.Product, p.Version)
			}
			sb.WriteString("</ports>")
		}
		sb.WriteString("</host>\n")
	}
	sb.WriteString(`<runstats><finished time="1700000000" elapsed="1.00" exit="success"/></runstats>` + "\n")
	sb.WriteString("</nmaprun>\n")
	return []byte(sb.String())
}
