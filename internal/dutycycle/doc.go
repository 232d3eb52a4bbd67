// Package dutycycle runs the logger's main loop:
//
//	SETUP -> (READ -> TRANSMIT -> SLEEP)*
//
// One cycle runs to completion before the next starts. A cycle always
// reaches the sleep decision: sensor and target failures are contained by
// the sensor registry and the telemetry manager, and the scheduler only
// sees aggregate counts.
//
// The sleep after a cycle is the base interval minus the time the cycle
// took. The base interval is the maintenance interval in maintenance mode,
// otherwise the override stored by a radio downlink, otherwise the field
// interval. It is never zero: when the cycle overran, the full interval is
// slept.
//
// Deep sleep ends the process. Run returns ErrDeepSleep and the caller
// exits; anything that must survive is already in non-volatile storage.
package dutycycle
