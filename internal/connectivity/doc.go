// Package connectivity brings network media up before transmission and
// tears them down before deep sleep, and provides the modem and radio
// capabilities some transports need.
//
// Media:
//
//	interface  a kernel network interface (WiFi, Ethernet), optionally
//	           raised and lowered by commands
//	modem      a cellular PPP link; also a transport.Modem whose HTTP
//	           requests are bound to the PPP interface
//
// The radio is an AT-command LoRaWAN module on a serial port, exposed as a
// transport.Radio.
package connectivity
