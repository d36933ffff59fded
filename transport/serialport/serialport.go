// Package serialport opens a go.bug.st/serial connection to a
// USB/TTL ELM327 or STN-class adapter and exposes it as a
// streamqueue.Stream, so the ASCII command layer never has to know
// whether it is talking to real hardware or a test double.
package serialport

import (
	"fmt"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"obdcore/errs"
)

// knownVendorIDs lists USB vendor IDs seen on ELM327/STN clones and
// genuine ScanTool.net devices, used by Find to pick a default port
// when the caller hasn't named one.
var knownVendorIDs = map[string]bool{
	"0403": true, // FTDI, common in ELM327 clones
	"1A86": true, // CH340, common in cheap clones
	"0483": true, // STMicroelectronics, STN11xx/22xx reference boards
}

// DefaultBaudRate is the rate ELM327-class adapters reset to after
// power-up; STN extensions can later raise it with an AT command, but
// the initial handshake always happens here.
const DefaultBaudRate = 38400

// Port wraps a serial.Port to satisfy streamqueue.Stream (io.Reader
// plus io.Writer) without exposing the rest of the library's surface.
type Port struct {
	port serial.Port
	name string
}

// Open opens portName at baud and returns a ready streamqueue.Stream.
func Open(portName string, baud int) (*Port, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, errs.Wrap(errs.KindDisconnected, err, fmt.Sprintf("open %s", portName))
	}
	return &Port{port: p, name: portName}, nil
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, errs.Wrap(errs.KindDisconnected, err, "serial read")
	}
	return n, nil
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	n, err := p.port.Write(b)
	if err != nil {
		return n, errs.Wrap(errs.KindDisconnected, err, "serial write")
	}
	return n, nil
}

// Close releases the underlying serial port.
func (p *Port) Close() error {
	return p.port.Close()
}

// Name returns the OS device path Open was called with.
func (p *Port) Name() string {
	return p.name
}

// Find scans the system's USB serial ports for one matching a known
// ELM327/STN vendor ID, returning its OS device path. Callers still
// decide the baud rate and hand the result to Open; Find never opens
// the port itself, so a caller can inspect alternatives first.
func Find() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", errs.Wrap(errs.KindDisconnected, err, "enumerate serial ports")
	}

	for _, p := range ports {
		if p.IsUSB && knownVendorIDs[p.VID] {
			return p.Name, nil
		}
	}

	return "", errs.New(errs.KindDisconnected, "no ELM327/STN-class adapter found on any USB serial port")
}
