// Package sensor owns sensor instances and the per-cycle read pass.
//
// Sensor types are registered by name with a Factory (see RegisterType and
// the built-ins in NewRegistry). Configuration entries are turned into
// sensors by Register: an unknown type is a configuration error, while a
// sensor whose bus did not come up is skipped with ErrBusMissing and never
// constructed with a nil bus.
//
// Start runs each sensor's bring-up once. A sensor that fails to start stays
// registered but every later read yields StatusNotInitialized without
// touching the driver.
//
// ReadSensors never fails. Each driver call runs with the garbage collector
// suspended for just that call, panics and errors are recovered per sensor,
// configured decimal rounding is applied, and values are merged into the
// frame with later sensors overwriting earlier ones on equal field names.
//
// Field names follow one convention so the compact binary codec can assign
// channels from the name alone:
//
//	system.<kind>[.<name>]           system.memfree, system.voltage.battery
//	i2c:<n>.<addr>.<kind>            i2c:0.0x76.pressure
//	onewire:<n>.<rom>.temperature    onewire:0.28-0316a2791bff.temperature
//	weight.<name>                    weight.hive1
package sensor
