// Package process supervises long-running link daemons.
//
// Some network media are held up by a daemon rather than a one-shot
// command: pppd in nodetach mode for a cellular modem, wpa_supplicant for
// WiFi. The connectivity layer starts the daemon when a medium is needed
// and stops it before the device sleeps.
//
// Features:
//   - Start/stop with SIGTERM to the process group, SIGKILL after a grace period
//   - Restart on unexpected exit with a fixed delay and an attempt limit
//   - Daemon stdout/stderr forwarded to the logger line by line
//   - The daemon outlives the context passed to Start; only Stop ends it
//
// Example usage:
//
//	mgr := process.NewManager(process.Config{
//	    Name:             "gsm",
//	    Argv:             []string{"pppd", "call", "gsm", "nodetach"},
//	    RestartOnFailure: true,
//	})
//
//	if err := mgr.Start(ctx); err != nil {
//	    return err
//	}
//	defer mgr.Stop()
package process
