package udp

import (
	"fmt"
	"net"

	"tigpsd/internal/ai2"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Forwarder sends NMEA passthrough sentences to a UDP consumer
// (chart plotters and gpsd both accept NMEA-over-UDP feeds).
type Forwarder struct {
	dest string
	conn udpConn
}

func NewForwarder(dest string) (*Forwarder, error) {
	return newForwarder(dest, net.ResolveUDPAddr,
		func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
			return net.DialUDP(network, laddr, raddr)
		})
}

func newForwarder(dest string, resolve resolveFunc, dial dialFunc) (*Forwarder, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Forwarder{dest: dest, conn: conn}, nil
}

// HandleFrame forwards the text of every NMEA report in the frame.
// Send errors are dropped: a missing consumer must not stall the
// reader.
func (f *Forwarder) HandleFrame(frame ai2.Frame) {
	for _, r := range frame.Reports {
		if n, ok := r.(ai2.NMEAReport); ok {
			_ = f.Send(n.Text)
		}
	}
}

func (f *Forwarder) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := f.conn.Write(payload)
	return err
}

func (f *Forwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}
