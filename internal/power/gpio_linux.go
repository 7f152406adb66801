//go:build linux

package power

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// Enable asserts the receiver enable line on the given BCM GPIO using
// the Linux GPIO character device. The returned handle de-asserts the
// line when closed so the receiver powers down with the daemon.
func Enable(pin int) (*Line, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("power: invalid gpio pin %d", pin)
	}

	// On Pi, line names are commonly "GPIO18", etc.
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", name))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(1), gpiocdev.WithConsumer("tigpsd"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &Line{chip: chip, line: line}, nil
	}

	return nil, fmt.Errorf("power: gpio line %q not found (or busy)", lineName)
}

type Line struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (l *Line) Close() error {
	if l == nil || l.line == nil {
		return nil
	}
	// Power the receiver down on the way out.
	_ = l.line.SetValue(0)
	err := l.line.Close()
	l.line = nil
	if l.chip != nil {
		_ = l.chip.Close()
		l.chip = nil
	}
	return err
}
