//go:build !unix

package apihttp

import "syscall"

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
