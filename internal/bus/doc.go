// Package bus manages the shared hardware buses sensors hang off.
//
// Two families are built in:
//   - i2c: an addressed, multiplexed bus. Devices are found by probing every
//     7-bit address (0x03..0x77) on the Linux /dev/i2c-N character device.
//   - onewire: a single-wire enumerable bus. Devices are the 64-bit ROM ids
//     listed by the Linux w1 bus master, filtered to known family codes.
//
// A bus is named "<family>:<number>" and the Registry holds at most one bus
// per name. SetupBuses starts every enabled bus from configuration; a bus
// that fails to start is logged and left out of the registry so sensors
// depending on it are skipped at registration.
//
// Bus power (an optional GPIO behind a sysfs value file) is toggled through
// PowerOn/PowerOff. The sensor registry orders these calls so that sensors
// are never addressed on an unpowered bus.
package bus
