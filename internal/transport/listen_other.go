//go:build !unix

package transport

import "syscall"

// reuseAddr is a no-op where SO_REUSEADDR semantics differ; the platform
// default already permits rapid rebinds.
func reuseAddr(network, address string, c syscall.RawConn) error {
	return nil
}
