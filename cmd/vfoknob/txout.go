package main

import (
	"fmt"
	"log/slog"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// TxOutput switches the transmitter.
type TxOutput interface {
	SetTransmit(on bool) error
}

// logTx only logs; used when no TX pin is configured.
type logTx struct {
	logger *slog.Logger
}

func (t logTx) SetTransmit(on bool) error {
	t.logger.Info("transmit", "on", on)
	return nil
}

// gpioTx drives a periph output pin, high while transmitting.
type gpioTx struct {
	pin gpio.PinIO
}

func openGPIOTx(name string) (*gpioTx, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	return &gpioTx{pin: pin}, nil
}

func (t *gpioTx) SetTransmit(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return t.pin.Out(level)
}
