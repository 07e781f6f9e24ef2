// Package blocks contains ready-made blocks: sensors that sample bound
// peripherals, signal conditioning, a PID controller and an actuator.
//
// Every block declares its variables and peripherals in its constructor
// through the BlockBuilder it is given, so its storage needs are known
// before the system is built.
package blocks
