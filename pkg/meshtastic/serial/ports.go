package serial

import (
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ListPorts returns the serial ports known to the operating system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

// PortInfo holds details about a serial port.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListDetailedPorts returns available serial ports together with their USB identity.
func ListDetailedPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return result, nil
}
