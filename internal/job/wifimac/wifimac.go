// Package wifimac implements the jobs that export the wireless MAC address of
// every computer or mobile device in an advanced search.
package wifimac

import (
	"fmt"

	"github.com/macadmin-tools/jamfkit/internal/job"
	"github.com/macadmin-tools/jamfkit/internal/outcome"
	"github.com/macadmin-tools/jamfkit/internal/resource"
)

const (
	ComputerJob = "computer-wifi-macs"
	MobileJob   = "mobile-device-wifi-macs"
)

// wirelessAdapter is the adapter type Jamf reports for Wi-Fi interfaces.
const wirelessAdapter = "IEEE80211"

func init() {
	job.Register(ComputerJob, "Serial number and Wi-Fi MAC address of computers, from an advanced computer search or all computers (CSV)", NewComputerJob)
	job.Register(MobileJob, "Serial number and Wi-Fi MAC address of mobile devices, from an advanced mobile device search or all devices (CSV)", NewMobileJob)
}

// ComputerEndpoint returns the computer endpoint, listed through the advanced
// computer search searchID when it is non-zero.
func ComputerEndpoint(searchID int) resource.Endpoint {
	ep := resource.Endpoint{
		Collection: resource.Computer,
		ListPath:   "/JSSResource/computers",
		ListKey:    []string{"computers"},
		DetailPath: "/JSSResource/computers/id/{id}/subset/General",
	}
	if searchID > 0 {
		ep.ListPath = fmt.Sprintf("/JSSResource/advancedcomputersearches/id/%d", searchID)
		ep.ListKey = []string{"advanced_computer_search", "computers"}
	}
	return ep
}

// MobileEndpoint returns the mobile device endpoint, listed through the
// advanced mobile device search searchID when it is non-zero. Details come
// from the v2 API.
func MobileEndpoint(searchID int) resource.Endpoint {
	ep := resource.Endpoint{
		Collection: resource.MobileDevice,
		ListPath:   "/JSSResource/mobiledevices",
		ListKey:    []string{"mobile_devices"},
		DetailPath: "/api/v2/mobile-devices/{id}/detail",
	}
	if searchID > 0 {
		ep.ListPath = fmt.Sprintf("/JSSResource/advancedmobiledevicesearches/id/%d", searchID)
		ep.ListKey = []string{"advanced_mobile_device_search", "mobile_devices"}
	}
	return ep
}

// NewComputerJob builds the computer Wi-Fi MAC job.
func NewComputerJob(p job.Params) (*job.Job, error) {
	return &job.Job{
		Name:        ComputerJob,
		Description: job.Description(ComputerJob),
		Endpoint:    ComputerEndpoint(p.SearchID),
		Transformer: job.TransformFunc(ComputerMAC),
		Columns:     []string{"serial_number", "mac_address"},
		KeyField:    "serial_number",
		Format:      job.FormatCSV,
	}, nil
}

// NewMobileJob builds the mobile device Wi-Fi MAC job.
func NewMobileJob(p job.Params) (*job.Job, error) {
	return &job.Job{
		Name:        MobileJob,
		Description: job.Description(MobileJob),
		Endpoint:    MobileEndpoint(p.SearchID),
		Transformer: job.TransformFunc(MobileMAC),
		Columns:     []string{"serialNumber", "wifiMacAddress"},
		KeyField:    "serialNumber",
		Format:      job.FormatCSV,
	}, nil
}

// ComputerMAC emits the MAC address of the computer's wireless adapter,
// preferring the primary adapter over the alternate one. Computers without a
// wireless adapter are declined.
func ComputerMAC(d resource.Detail) (resource.Record, error) {
	general, err := d.Map("computer", "general")
	if err != nil {
		return nil, err
	}
	g := resource.Detail(general)

	serial, err := g.String("serial_number")
	if err != nil {
		return nil, err
	}

	macField := ""
	primary, err := g.String("network_adapter_type")
	if err != nil {
		return nil, err
	}
	if primary == wirelessAdapter {
		macField = "mac_address"
	} else {
		alt, err := g.String("alt_network_adapter_type")
		if err != nil {
			return nil, err
		}
		if alt == wirelessAdapter {
			macField = "alt_mac_address"
		}
	}
	if macField == "" {
		return nil, outcome.Decline("no wireless adapter found on %s", serial)
	}

	mac, err := g.String(macField)
	if err != nil {
		return nil, err
	}
	return resource.Record{"serial_number": serial, "mac_address": mac}, nil
}

// MobileMAC projects the serial number and Wi-Fi MAC address of a mobile
// device's v2 detail. There is no filter.
func MobileMAC(d resource.Detail) (resource.Record, error) {
	serial, err := d.String("serialNumber")
	if err != nil {
		return nil, err
	}
	mac, err := d.String("wifiMacAddress")
	if err != nil {
		return nil, err
	}
	return resource.Record{"serialNumber": serial, "wifiMacAddress": mac}, nil
}
