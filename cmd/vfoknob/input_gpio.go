package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"

	"vfoknob/encoder"
)

// gpioEdgePoll bounds each WaitForEdge so watchers notice cancellation.
const gpioEdgePoll = 250 * time.Millisecond

// durationTick maps time since the source started onto the encoder counter.
func durationTick(d time.Duration, hz uint64) encoder.Tick {
	sec := uint64(d / time.Second)
	sub := uint64(d % time.Second)
	return encoder.Tick(sec*hz + sub*hz/uint64(time.Second))
}

func openInputPin(name string) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("gpio %s: %w", name, err)
	}
	return pin, nil
}

// watchEdges signals out on every edge of pin until ctx is done.
func watchEdges(ctx context.Context, pin gpio.PinIO, out chan<- struct{}) {
	for ctx.Err() == nil {
		if !pin.WaitForEdge(gpioEdgePoll) {
			continue
		}
		select {
		case out <- struct{}{}:
		default:
		}
	}
}

// runGPIOSource samples the encoder channels on every edge. Both pins are
// read together on one goroutine, which keeps the sampler single-owner.
func runGPIOSource(ctx context.Context, cfg InputConfig, tickHz int, sampler *Sampler, events chan<- Event, logger *slog.Logger) error {
	pinA, err := openInputPin(cfg.GPIOA)
	if err != nil {
		return err
	}
	pinB, err := openInputPin(cfg.GPIOB)
	if err != nil {
		return err
	}
	var pinKey gpio.PinIO
	if cfg.GPIOKey != "" {
		if pinKey, err = openInputPin(cfg.GPIOKey); err != nil {
			return err
		}
	}
	logger.Info("gpio input ready", "a", cfg.GPIOA, "b", cfg.GPIOB, "key", cfg.GPIOKey)

	edges := make(chan struct{}, 1)
	go watchEdges(ctx, pinA, edges)
	go watchEdges(ctx, pinB, edges)

	var keyEdges chan struct{}
	if pinKey != nil {
		keyEdges = make(chan struct{}, 1)
		go watchEdges(ctx, pinKey, keyEdges)
	}

	start := time.Now()
	hz := uint64(tickHz)
	var last encoder.PinSample = 0xFF
	keyDown := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-edges:
			pins := encoder.NewPinSample(pinA.Read() == gpio.High, pinB.Read() == gpio.High)
			if pins == last {
				continue
			}
			last = pins
			sampler.Feed(PinEvent{Pins: pins, Tick: durationTick(time.Since(start), hz)})
		case <-keyEdges:
			// Key to ground against the pull-up.
			down := pinKey.Read() == gpio.Low
			if down != keyDown {
				keyDown = down
				sendEvent(events, KeyInput{Down: down}, logger)
			}
		}
	}
}
