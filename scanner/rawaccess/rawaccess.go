// Package rawaccess checks whether this host may capture raw packets. It is
// kept apart from scanner because libpcap needs cgo.
package rawaccess

import (
	"errors"
	"fmt"

	"github.com/google/gopacket/pcap"
)

// ErrUnavailable means packet capture is unavailable, so nmap cannot run
// SYN, SCTP INIT or UDP scans and falls back or fails.
var ErrUnavailable = errors.New("raw packet access unavailable")

// Check verifies that libpcap can enumerate capture devices, which requires
// the same privileges nmap needs for raw scans. It returns the device names.
func Check() ([]string, error) {
	devices, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no capture devices visible, run as root or grant CAP_NET_RAW", ErrUnavailable)
	}
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}
