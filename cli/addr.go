package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
)

// probeAddr is only dialled over UDP, which sends nothing; the kernel picks
// the outbound interface.
const probeAddr = "1.1.1.1:53"

// workerAddress returns the configured address, else the address of the
// interface used for outbound traffic, else the first address of an up,
// non-loopback interface, else the hostname.
func workerAddress(ctx context.Context, configured string) string {
	if configured != "" {
		return configured
	}
	addr, err := outboundAddr()
	if err == nil {
		return addr
	}
	slog.DebugContext(ctx, "no route for outbound address detection", "error", err)

	if addr, err := interfaceAddr(); err == nil {
		return addr
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

func outboundAddr() (string, error) {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func interfaceAddr() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}
	return "", errors.New("no usable interface address")
}
