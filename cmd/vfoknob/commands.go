package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon
// loop: synthesizer writes, TX output, the state file and snapshot replies.
type Command interface {
	commandMarker()
	String() string
}

// CmdSetFrequency programs the synthesizer.
type CmdSetFrequency struct {
	Hz int64
}

func (CmdSetFrequency) commandMarker() {}
func (c CmdSetFrequency) String() string {
	return fmt.Sprintf("CmdSetFrequency(hz=%d)", c.Hz)
}

// CmdSetTransmit switches the TX output.
type CmdSetTransmit struct {
	On bool
}

func (CmdSetTransmit) commandMarker()   {}
func (c CmdSetTransmit) String() string { return fmt.Sprintf("CmdSetTransmit(on=%v)", c.On) }

// CmdSaveState writes the tuning state to disk.
type CmdSaveState struct {
	State PersistedState
}

func (CmdSaveState) commandMarker() {}
func (c CmdSaveState) String() string {
	return fmt.Sprintf("CmdSaveState(hz=%d, band=%q)", c.State.FrequencyHz, c.State.Band)
}

// CmdPublishStateSnapshot delivers a reducer-built snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
