package main

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// Si5351 output range with the R divider in play.
const (
	si5351MinHz = 8_000
	si5351MaxHz = 112_500_000
)

// Si5351 registers
const (
	si5351RegOutputEnable = 3
	si5351RegCLK0Control  = 16
	si5351RegPLLA         = 26
	si5351RegMS0          = 42
	si5351RegPLLReset     = 177
	si5351RegXtalLoad     = 183
)

const (
	si5351PLLMult     = 36      // PLLA = xtal * 36 (900 MHz from 25 MHz)
	si5351Denominator = 1048575 // largest 20-bit c, finest fractional step
	si5351MinMSHz     = 500_000 // below this the R divider kicks in
	si5351MaxRDiv     = 128
)

var errSi5351Range = errors.New("frequency outside si5351 range")

// Si5351 drives CLK0 of an Si5351A from PLLA in fractional mode.
type Si5351 struct {
	bus  drivers.I2C
	addr uint8
	vco  int64
}

// NewSi5351 returns a driver for the chip at addr. correctionPPB trims the
// crystal frequency. Init must be called before SetFrequency.
func NewSi5351(bus drivers.I2C, addr uint8, xtalHz, correctionPPB int64) *Si5351 {
	xtal := xtalHz + xtalHz*correctionPPB/1_000_000_000
	return &Si5351{bus: bus, addr: addr, vco: xtal * si5351PLLMult}
}

func (s *Si5351) write(reg uint8, data ...byte) error {
	if err := s.bus.Tx(uint16(s.addr), append([]byte{reg}, data...), nil); err != nil {
		return fmt.Errorf("si5351 write reg %d: %w", reg, err)
	}
	return nil
}

// Init disables the outputs, programs PLLA and routes MS0 to CLK0.
func (s *Si5351) Init() error {
	if err := s.write(si5351RegOutputEnable, 0xFF); err != nil {
		return err
	}
	// Power down CLK0..CLK7.
	if err := s.write(si5351RegCLK0Control, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80); err != nil {
		return err
	}
	if err := s.write(si5351RegXtalLoad, 0x92); err != nil { // 8 pF
		return err
	}
	pll := si5351Params(128*si5351PLLMult-512, 0, 1, 0)
	if err := s.write(si5351RegPLLA, pll[:]...); err != nil {
		return err
	}
	if err := s.write(si5351RegPLLReset, 0x20); err != nil {
		return err
	}
	// CLK0 on, MS0 source, PLLA, fractional, 8 mA.
	return s.write(si5351RegCLK0Control, 0x0F)
}

// SetFrequency reprograms MS0 and enables CLK0.
func (s *Si5351) SetFrequency(hz int64) error {
	regs, err := Si5351MultisynthRegisters(s.vco, hz)
	if err != nil {
		return err
	}
	if err := s.write(si5351RegMS0, regs[:]...); err != nil {
		return err
	}
	return s.write(si5351RegOutputEnable, 0xFE)
}

// Close disables all outputs.
func (s *Si5351) Close() error {
	return s.write(si5351RegOutputEnable, 0xFF)
}

// Si5351Divider is a multisynth divider a + b/c with its output R divider.
type Si5351Divider struct {
	A, B, C int64
	R       int64
}

// Si5351DividerFor picks the output divider for hz from a vco in Hz.
func Si5351DividerFor(vco, hz int64) (Si5351Divider, error) {
	if hz < si5351MinHz || hz > si5351MaxHz {
		return Si5351Divider{}, fmt.Errorf("%w: %d Hz", errSi5351Range, hz)
	}
	r := int64(1)
	for hz*r < si5351MinMSHz && r < si5351MaxRDiv {
		r *= 2
	}
	f := hz * r
	a := vco / f
	rem := vco - a*f
	b := rem * si5351Denominator / f
	return Si5351Divider{A: a, B: b, C: si5351Denominator, R: r}, nil
}

// Si5351MultisynthRegisters returns the eight MS0 register bytes (42..49)
// for hz.
func Si5351MultisynthRegisters(vco, hz int64) ([8]byte, error) {
	d, err := Si5351DividerFor(vco, hz)
	if err != nil {
		return [8]byte{}, err
	}
	frac := 128 * d.B / d.C
	p1 := 128*d.A + frac - 512
	p2 := 128*d.B - d.C*frac
	return si5351Params(p1, p2, d.C, rDivBits(d.R)), nil
}

// si5351Params packs P1/P2/P3 in the layout shared by the PLL and
// multisynth register blocks.
func si5351Params(p1, p2, p3 int64, rdiv byte) [8]byte {
	return [8]byte{
		byte(p3 >> 8),
		byte(p3),
		rdiv<<4 | byte(p1>>16)&0x03,
		byte(p1 >> 8),
		byte(p1),
		byte(p3>>16)&0x0F<<4 | byte(p2>>16)&0x0F,
		byte(p2 >> 8),
		byte(p2),
	}
}

// rDivBits encodes R (a power of two) as log2(R).
func rDivBits(r int64) byte {
	var n byte
	for r > 1 {
		r >>= 1
		n++
	}
	return n
}
