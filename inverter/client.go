// Package inverter reads the home storage system's live state over Modbus
// TCP. The rolling loop uses it to seed the optimizer's initial battery
// state of energy from the real battery instead of a configured guess.
package inverter

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// Register map of the hybrid inverter's plant info block.
const (
	regESSSOC       = 30014 // 0.1 %, unsigned
	regESSBatteryKW = 30037 // 0.01 kW, signed, positive = charging
)

// Client represents a Modbus TCP connection to the inverter
type Client struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler
}

// NewTCPClient connects to the inverter at address (host:port)
func NewTCPClient(address string, slaveID byte) (*Client, error) {
	handler := modbus.NewTCPClientHandler(address)
	handler.SlaveId = slaveID
	handler.Timeout = 1 * time.Second

	if err := handler.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %v", err)
	}
	return &Client{
		client:  modbus.NewClient(handler),
		handler: handler,
	}, nil
}

// Close closes the Modbus connection
func (c *Client) Close() error {
	return c.handler.Close()
}

// BatteryStatus is a snapshot of the storage system.
type BatteryStatus struct {
	SOCPercent float64
	PowerKW    float64 // positive = charging
}

// ReadBatteryStatus reads the battery state-of-charge and power registers.
func (c *Client) ReadBatteryStatus() (*BatteryStatus, error) {
	socData, err := c.client.ReadInputRegisters(regESSSOC, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read SOC register: %v", err)
	}
	if len(socData) < 2 {
		return nil, fmt.Errorf("short SOC register read: %d bytes", len(socData))
	}

	powerData, err := c.client.ReadInputRegisters(regESSBatteryKW, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read battery power register: %v", err)
	}
	if len(powerData) < 2 {
		return nil, fmt.Errorf("short power register read: %d bytes", len(powerData))
	}

	return &BatteryStatus{
		SOCPercent: float64(binary.BigEndian.Uint16(socData)) / 10.0,
		PowerKW:    float64(int16(binary.BigEndian.Uint16(powerData))) / 100.0,
	}, nil
}

// EnergyKWh converts the state of charge into absolute energy for a battery
// of the given capacity.
func (s *BatteryStatus) EnergyKWh(capacityKWh float64) float64 {
	return s.SOCPercent / 100.0 * capacityKWh
}
