package airmedia

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
)

const uptimePrefix = "The system has been running for "

type scalarField struct {
	key     string
	pointer string
}

var deviceScalars = []scalarField{
	{key: "Device#pufVersion", pointer: "/Device/DeviceInfo/PufVersion"},
	{key: "Device#serialNumber", pointer: "/Device/DeviceInfo/SerialNumber"},
	{key: "Device#macAddress", pointer: "/Device/DeviceInfo/MacAddress"},
	{key: "Device#model", pointer: "/Device/DeviceInfo/Model"},
	{key: "Device#rebootReason", pointer: "/Device/DeviceInfo/RebootReason"},
	{key: "Device#autoRoutingEnabled", pointer: "/Device/SourceSelectionConfiguration/IsAutoRoutingEnabled"},
	{key: "Device#miracastEnabled", pointer: "/Device/AirMedia/Miracast/IsEnabled"},
	{key: "Device#autoUpdateEnabled", pointer: "/Device/AutoUpdateMaster/IsEnabled"},
	{key: "Device#airmediaEnabled", pointer: "/Device/AirMedia/IsEnabled"},
	{key: "Device#loginCode", pointer: "/Device/AirMedia/loginCode"},
	{key: "Device#flexModeEnabled", pointer: "/Device/App/Config/General/IsFlexModeEnabled"},
	{key: "RoomName", pointer: "/Device/App/Config/General/RoomName"},
}

var inputFields = []scalarField{
	{key: "SourceDetected", pointer: "/IsSourceDetected"},
	{key: "SyncDetected", pointer: "/IsSyncDetected"},
	{key: "HdcpSupportEnabled", pointer: "/Hdmi/IsHdcpSupportEnabled"},
	{key: "SourceHdcpActive", pointer: "/Hdmi/IsSourceHdcpActive"},
	{key: "HdcpState", pointer: "/Hdmi/HdcpState"},
}

var outputFields = []scalarField{
	{key: "SinkConnected", pointer: "/IsSinkConnected"},
	{key: "HdcpForceDisabled", pointer: "/Hdmi/IsHdcpForceDisabled"},
	{key: "DisabledByHdcp", pointer: "/Hdmi/DisabledByHdcp"},
	{key: "HdcpTransmitterMode", pointer: "/Hdmi/HdcpTransmitterMode"},
	{key: "HdcpState", pointer: "/Hdmi/HdcpState"},
}

// Flatten maps a decoded /Device/ document onto the statistics map.
// Controls are not included; see GetMultipleStatistics.
func Flatten(doc any) (types.Statistics, error) {
	if err := validateStructure(doc); err != nil {
		return nil, err
	}

	stats := make(types.Statistics)
	for _, f := range deviceScalars {
		stats[f.key] = text(doc, f.pointer)
	}
	stats["Device#uptime"] = strings.ReplaceAll(text(doc, "/Device/DeviceSpecific/UpTime"), uptimePrefix, "")

	if text(doc, "/Device/AirMedia/Miracast/IsEnabled") == "true" {
		stats["Device#miracastDongleStatus"] = text(doc, "/Device/AirMedia/Miracast/WifiDongleStatus")
	}

	inputs, err := firstPorts(doc, "/Device/AudioVideoInputOutput/Inputs")
	if err != nil {
		return nil, err
	}
	hdmi := 1
	for _, port := range inputs {
		name := portName(port, "Input", &hdmi)
		for _, f := range inputFields {
			stats[name+"#"+f.key] = text(port, f.pointer)
		}
		stats[name+"#Resolution"] = resolution(port)
	}

	outputs, err := firstPorts(doc, "/Device/AudioVideoInputOutput/Outputs")
	if err != nil {
		return nil, err
	}
	hdmi = 1
	for _, port := range outputs {
		name := portName(port, "Output", &hdmi)
		if text(port, "/Hdmi/IsOutputDisabled") == "true" {
			stats[name+"#Disabled"] = "true"
			continue
		}
		for _, f := range outputFields {
			stats[name+"#"+f.key] = text(port, f.pointer)
		}
		stats[name+"#Resolution"] = resolution(port)
	}

	return stats, nil
}

// firstPorts returns Ports[0] of every entry of the list at pointer.
func firstPorts(doc any, pointer string) ([]any, error) {
	node, ok := lookup(doc, pointer)
	if !ok {
		return nil, &types.ParseError{Path: pointer, Err: fmt.Errorf("missing list")}
	}
	entries, ok := node.([]any)
	if !ok {
		return nil, &types.ParseError{Path: pointer, Err: fmt.Errorf("expected array, got %T", node)}
	}

	ports := make([]any, 0, len(entries))
	for i, entry := range entries {
		port, ok := lookup(entry, "/Ports/0")
		if !ok {
			return nil, &types.ParseError{Path: pointer + "/" + strconv.Itoa(i) + "/Ports", Err: fmt.Errorf("entry has no ports")}
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// portName numbers HDMI ports through counter and names the rest by type.
func portName(port any, direction string, counter *int) string {
	portType := text(port, "/PortType")
	if strings.EqualFold(portType, "HDMI") {
		name := "Hdmi " + strconv.Itoa(*counter) + " " + direction
		*counter++
		return name
	}
	return portType + " " + direction
}

func resolution(port any) string {
	return text(port, "/HorizontalResolution") + "x" +
		text(port, "/VerticalResolution") + "@" +
		text(port, "/FramesPerSecond") + " " +
		text(port, "/Audio/Digital/Format")
}
