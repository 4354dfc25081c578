//go:build !unix

package proxy

import "syscall"

// Elsewhere the runtime's own listener defaults apply.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
