package device

import "time"

// Clock supplies the device's idea of unix time in seconds.
type Clock interface {
	Now() uint64
}

// SystemClock reads the host's real-time clock.
type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}
