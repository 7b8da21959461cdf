package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ButtonOptions are the hardware button sensors watched by ButtonPoller.
var ButtonOptions = []string{"scan", "button-scan"}

// ButtonPoller polls the scanner's button sensor options and calls
// callback when a button goes down.
type ButtonPoller struct {
	scanner  *Scanner
	interval time.Duration
	callback func()
	pressed  bool
	done     chan struct{}
}

// NewButtonPoller creates a ButtonPoller checking every interval.
func NewButtonPoller(sc *Scanner, interval time.Duration, callback func()) *ButtonPoller {
	return &ButtonPoller{scanner: sc, interval: interval, callback: callback}
}

// Start begins polling in the background until ctx is cancelled.
func (b *ButtonPoller) Start(ctx context.Context) {
	b.done = make(chan struct{})
	slog.Info("button poller started", "interval", b.interval, "options", ButtonOptions)
	go b.loop(ctx)
}

// Wait blocks until the polling goroutine has exited.
func (b *ButtonPoller) Wait() {
	if b.done != nil {
		<-b.done
	}
}

func (b *ButtonPoller) loop(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

// poll reads the buttons once and reports whether the callback fired.
func (b *ButtonPoller) poll() bool {
	pressed, err := b.scanner.ButtonPressed(ButtonOptions...)
	if err != nil {
		if !errors.Is(err, ErrBusy) {
			slog.Debug("button poll failed", "err", err)
		}
		return false
	}
	rising := pressed && !b.pressed
	b.pressed = pressed
	if rising {
		slog.Info("scanner button pressed", "device", b.scanner.DeviceName())
		if b.callback != nil {
			b.callback()
		}
	}
	return rising
}
