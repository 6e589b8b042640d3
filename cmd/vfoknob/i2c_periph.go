package main

import (
	"fmt"

	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
)

// periphI2C adapts a periph I2C bus to the register-level bus the chip
// drivers expect.
type periphI2C struct {
	bus i2c.BusCloser
}

// openI2C opens a bus by periph name; "" picks the first one available.
func openI2C(name string) (*periphI2C, error) {
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return &periphI2C{bus: bus}, nil
}

func (p *periphI2C) Tx(addr uint16, w, r []byte) error {
	return p.bus.Tx(addr, w, r)
}

func (p *periphI2C) ReadRegister(addr uint8, r uint8, buf []byte) error {
	return p.bus.Tx(uint16(addr), []byte{r}, buf)
}

func (p *periphI2C) WriteRegister(addr uint8, r uint8, buf []byte) error {
	return p.bus.Tx(uint16(addr), append([]byte{r}, buf...), nil)
}

func (p *periphI2C) Close() error {
	return p.bus.Close()
}

// si5351Synth owns the bus so closing the synthesizer releases it.
type si5351Synth struct {
	*Si5351
	bus *periphI2C
}

func (s si5351Synth) Close() error {
	err := s.Si5351.Close()
	if cerr := s.bus.Close(); err == nil {
		err = cerr
	}
	return err
}

// openSi5351 opens the configured bus and initializes the chip.
func openSi5351(cfg SynthConfig) (Synthesizer, error) {
	bus, err := openI2C(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	chip := NewSi5351(bus, cfg.Address, cfg.XtalHz, cfg.CorrectionPPB)
	if err := chip.Init(); err != nil {
		bus.Close()
		return nil, err
	}
	return si5351Synth{Si5351: chip, bus: bus}, nil
}
