package bom

import (
	"bytes"
	"testing"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"

	"nmapcluster/store"
)

var hosts = []store.HostRow{
	{
		IP:         "10.0.0.1",
		Hostname:   "gw.lab",
		OS:         "Linux 5.0 - 5.14",
		OSAccuracy: 98,
		ScannedAt:  time.Unix(1700000000, 0),
		Ports: []store.PortRow{
			{Port: 22, Protocol: "tcp", Service: "ssh", ServiceVersion: "OpenSSH 9.6", Confidence: 10},
			{Port: 443, Protocol: "tcp", Service: "http", Tunnel: "ssl", Confidence: 10},
		},
	},
	{IP: "10.0.0.7", ScannedAt: time.Unix(1700000000, 0)},
}

func TestBuild(t *testing.T) {
	bom := Build(hosts)

	require.Equal(t, cdx.SpecVersion1_6, bom.SpecVersion)
	require.NotNil(t, bom.Components)
	require.Len(t, *bom.Components, 4)

	var device cdx.Component
	for _, c := range *bom.Components {
		if c.BOMRef == "nmap:host/10.0.0.1" {
			device = c
		}
	}
	require.Equal(t, cdx.ComponentTypeDevice, device.Type)
	require.Equal(t, "gw.lab", device.Name)
	require.Contains(t, *device.Properties, cdx.Property{Name: "nmap:os_accuracy", Value: "98"})

	require.NotNil(t, bom.Dependencies)
	require.Len(t, *bom.Dependencies, 1, "hosts without ports have no dependencies")
	dep := (*bom.Dependencies)[0]
	require.Equal(t, "nmap:host/10.0.0.1", dep.Ref)
	require.Equal(t, []string{"nmap:tcp/10.0.0.1:22", "nmap:tcp/10.0.0.1:443"}, *dep.Dependencies)
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, hosts))

	var decoded cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(&buf, cdx.BOMFileFormatJSON).Decode(&decoded))
	require.Len(t, *decoded.Components, 4)
	require.Equal(t, "nmapcluster", decoded.Metadata.Component.Name)
}

func TestBuildEmptyInventory(t *testing.T) {
	bom := Build(nil)
	require.NotNil(t, bom.Components)
	require.Empty(t, *bom.Components)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	require.NotContains(t, buf.String(), "null")
}
