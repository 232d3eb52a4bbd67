//go:build !linux

package bus

import "errors"

func openAdapter(string) (prober, error) {
	return nil, errors.New("bus: i2c requires linux")
}
