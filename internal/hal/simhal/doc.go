// Package simhal provides simulated drivers for running block systems on a
// host: scripted digital inputs, sensors and actuators attached to a
// simulated plant, a multi-channel waveform converter and a serial-style
// value sink.
//
// Every driver here implements a capability from internal/peripherals and
// can be bound with System.Bind exactly like a hardware driver.
package simhal
