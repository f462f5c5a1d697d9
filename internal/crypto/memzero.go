package crypto

import "runtime"

// Wipe zeroes each buffer in place. Session keys, per-message keys and
// recovered cache keys pass through here once the caller is done with them.
//
//go:noinline
func Wipe(bufs ...[]byte) {
	for _, b := range bufs {
		for i := range b {
			b[i] = 0
		}
	}
	runtime.KeepAlive(bufs)
}
