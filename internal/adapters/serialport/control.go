package serialport

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
)

// pulseWidth is the hold time for each half of the DTR/RTS reset toggle.
const pulseWidth = 50 * time.Millisecond

// Control opens the serial port only for the duration of each call. It
// must never be used while a monitor session owns the port.
type Control struct{}

// NewControl creates a Control.
func NewControl() *Control {
	return &Control{}
}

// Pulse performs the boot-reset sequence: DTR and RTS low, then high.
func (c *Control) Pulse(port string) error {
	p, err := serial.Open(port, &serial.Mode{BaudRate: domain.DefaultBaud})
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPortUnreachable, port, err)
	}
	defer p.Close()

	if err := p.SetDTR(false); err != nil {
		return fmt.Errorf("set DTR: %w", err)
	}
	if err := p.SetRTS(false); err != nil {
		return fmt.Errorf("set RTS: %w", err)
	}
	time.Sleep(pulseWidth)
	if err := p.SetDTR(true); err != nil {
		return fmt.Errorf("set DTR: %w", err)
	}
	if err := p.SetRTS(true); err != nil {
		return fmt.Errorf("set RTS: %w", err)
	}
	time.Sleep(pulseWidth)
	return nil
}

// Sample opens the port at the given rate and collects whatever bytes
// arrive during the window. A silent port yields an empty sample, not an
// error.
func (c *Control) Sample(ctx context.Context, port string, baud int, window time.Duration) ([]byte, error) {
	p, err := serial.Open(port, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrPortUnreachable, port, err)
	}
	defer p.Close()

	if err := p.SetReadTimeout(100 * time.Millisecond); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(window)
	buf := make([]byte, 512)
	var sample []byte
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return sample, ctx.Err()
		}
		n, err := p.Read(buf)
		if err != nil {
			return sample, err
		}
		sample = append(sample, buf[:n]...)
	}
	return sample, nil
}
