package scanner

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmapcluster/scanner/scannertest"
)

func TestParseDiscovery(t *testing.T) {
	raw := scannertest.XML(
		scannertest.Host{Addr: "10.0.0.1", Up: true, MAC: "00:11:22:33:44:55", Hostname: "gw.lab"},
		scannertest.Host{Addr: "10.0.0.2", Up: false},
	)

	hosts, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, hosts, 2)

	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), hosts[0].Addr, "ip address wins over mac")
	assert.True(t, hosts[0].Up)
	assert.Equal(t, "gw.lab", hosts[0].Hostname)
	assert.Empty(t, hosts[0].Ports)

	assert.Equal(t, netip.MustParseAddr("10.0.0.2"), hosts[1].Addr)
	assert.False(t, hosts[1].Up)
}

func TestParsePortScan(t *testing.T) {
	raw := scannertest.XML(scannertest.Host{
		Addr: "10.0.0.1",
		Up:   true,
		Ports: []scannertest.Port{
			{Number: 22, Protocol: "tcp", Service: "ssh", Product: "OpenSSH", Version: "9.6"},
			{Number: 53, Protocol: "udp", Service: "domain"},
		},
	})

	hosts, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Ports, 2)

	ssh := hosts[0].Ports[0]
	assert.Equal(t, uint16(22), ssh.Number)
	assert.Equal(t, "tcp", ssh.Protocol)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, "OpenSSH 9.6", ssh.ServiceVersion())
	assert.Equal(t, 10, ssh.Confidence)

	assert.Equal(t, "udp", hosts[0].Ports[1].Protocol)
}

func TestParseSkipsClosedPortsAndAddresslessHosts(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<nmaprun scanner="nmap">
<host><status state="up"/><address addr="10.0.0.9" addrtype="ipv4"/>
<ports>
<port protocol="tcp" portid="80"><state state="closed"/><service name="http"/></port>
<port protocol="tcp" portid="443"><state state="open"/><service name="https" tunnel="ssl"/></port>
</ports>
<os><osmatch name="Linux 5.X" accuracy="90"/><osmatch name="Linux 6.X" accuracy="97"/></os>
</host>
<host><status state="up"/><address addr="00:aa:bb:cc:dd:ee" addrtype="mac"/></host>
</nmaprun>`)

	hosts, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Ports, 1)
	assert.Equal(t, uint16(443), hosts[0].Ports[0].Number)
	assert.Equal(t, "ssl", hosts[0].Ports[0].Tunnel)
	assert.Equal(t, "Linux 6.X", hosts[0].OS)
	assert.Equal(t, 97, hosts[0].OSAccuracy)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte("not xml at all"), []byte("<nmaprun><host>")} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMalformedReport, "%q", raw)
	}
}

func TestServiceVersion(t *testing.T) {
	assert.Equal(t, "", Port{}.ServiceVersion())
	assert.Equal(t, "nginx", Port{Product: "nginx"}.ServiceVersion())
	assert.Equal(t, "OpenSSH 9.6 (protocol 2.0)", Port{Product: "OpenSSH", Version: "9.6", ExtraInfo: "protocol 2.0"}.ServiceVersion())
}
