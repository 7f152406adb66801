//go:build !linux

package power

import "fmt"

// Stub implementation for non-Linux platforms.
func Enable(pin int) (*Line, error) {
	return nil, fmt.Errorf("power: gpio unsupported on this platform")
}

type Line struct{}

func (l *Line) Close() error { return nil }
