package tcp

import (
	"net"
	"time"
)

// upgradeTCPConn applies the socket settings to conn. Zero values keep the system defaults,
// a negative linger keeps the system default as well.
func upgradeTCPConn(conn net.Conn, noDelay bool, keepAliveSec, lingerSec, writeBuf, readBuf int) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(noDelay); err != nil {
		return err
	}

	if writeBuf > 0 {
		if err := tcpConn.SetWriteBuffer(writeBuf); err != nil {
			return err
		}
	}

	if readBuf > 0 {
		if err := tcpConn.SetReadBuffer(readBuf); err != nil {
			return err
		}
	}

	if keepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(keepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	if lingerSec > 0 {
		if err := tcpConn.SetLinger(lingerSec); err != nil {
			return err
		}
	}

	return nil
}
