// Package bom exports the host inventory as a CycloneDX document.
package bom

import (
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"

	"nmapcluster/store"
)

var version string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		version = "unknown"
	} else {
		version = info.Main.Version
	}
}

// Build converts hosts into a BOM. Each host becomes a device component that
// depends on one data component per open port.
func Build(hosts []store.HostRow) cdx.BOM {
	// must be non-nil: the CycloneDX schema rejects null arrays
	components := []cdx.Component{}
	dependencies := []cdx.Dependency{}

	for _, h := range hosts {
		hostCompo := hostComponent(h)
		refs := make([]string, 0, len(h.Ports))
		for _, p := range h.Ports {
			compo := portComponent(h.IP, p)
			components = append(components, compo)
			refs = append(refs, compo.BOMRef)
		}
		components = append(components, hostCompo)
		if len(refs) > 0 {
			dependencies = append(dependencies, cdx.Dependency{Ref: hostCompo.BOMRef, Dependencies: &refs})
		}
	}

	return cdx.BOM{
		JSONSchema:   "https://cyclonedx.org/schema/bom-1.6.schema.json",
		BOMFormat:    cdx.BOMFormat,
		SpecVersion:  cdx.SpecVersion1_6,
		SerialNumber: "urn:uuid:" + uuid.NewString(),
		Version:      1,
		Metadata: &cdx.Metadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Component: &cdx.Component{
				Type:    cdx.ComponentTypeApplication,
				Name:    "nmapcluster",
				Version: version,
			},
		},
		Components:   &components,
		Dependencies: &dependencies,
	}
}

// Write encodes the BOM of hosts as indented JSON.
func Write(w io.Writer, hosts []store.HostRow) error {
	bom := Build(hosts)
	if err := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(&bom); err != nil {
		return fmt.Errorf("encoding BOM: %w", err)
	}
	return nil
}

func hostComponent(h store.HostRow) cdx.Component {
	props := []cdx.Property{
		{Name: "nmap:address", Value: h.IP},
		{Name: "nmap:scan_time", Value: h.ScannedAt.UTC().Format(time.RFC3339)},
	}
	if h.Hostname != "" {
		props = append(props, cdx.Property{Name: "nmap:hostname", Value: h.Hostname})
	}
	if h.OS != "" {
		props = append(props,
			cdx.Property{Name: "nmap:os", Value: h.OS},
			cdx.Property{Name: "nmap:os_accuracy", Value: strconv.Itoa(h.OSAccuracy)},
		)
	}
	name := h.IP
	if h.Hostname != "" {
		name = h.Hostname
	}
	return cdx.Component{
		BOMRef:     "nmap:host/" + h.IP,
		Type:       cdx.ComponentTypeDevice,
		Name:       name,
		Properties: &props,
	}
}

func portComponent(ip string, p store.PortRow) cdx.Component {
	proto := strings.ToLower(p.Protocol)
	props := []cdx.Property{
		{Name: "nmap:port", Value: strconv.Itoa(p.Port)},
		{Name: "nmap:protocol", Value: proto},
		{Name: "nmap:service_name", Value: p.Service},
		{Name: "nmap:service_version", Value: p.ServiceVersion},
		{Name: "nmap:service_confidence", Value: strconv.Itoa(p.Confidence)},
	}
	if p.Tunnel != "" {
		props = append(props, cdx.Property{Name: "nmap:tunnel", Value: p.Tunnel})
	}
	return cdx.Component{
		BOMRef:     fmt.Sprintf("nmap:%s/%s:%d", proto, ip, p.Port),
		Type:       cdx.ComponentTypeData,
		Name:       fmt.Sprintf("%s/%d", proto, p.Port),
		Properties: &props,
	}
}
