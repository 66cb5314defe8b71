package httpx

import (
	"errors"
	"net"
	"os"
	"runtime"
	"strconv"
	"syscall"

	"github.com/giongto35/voice-relay/pkg/logger"
)

const maxPortRollAttempts = 42

// NewListener opens a TCP listener, with rollPorts it tries
// next ports when the requested one is busy.
func NewListener(address string, rollPorts bool, log *logger.Logger) (net.Listener, error) {
	ls, err := net.Listen("tcp", address)
	if err == nil || !rollPorts || !isErrorAddressAlreadyInUse(err) {
		return ls, err
	}
	host, p, err2 := net.SplitHostPort(address)
	if err2 != nil {
		return nil, err
	}
	port, err2 := strconv.Atoi(p)
	if err2 != nil {
		return nil, err
	}
	for i := port + 1; i < port+maxPortRollAttempts; i++ {
		log.Debug().Msgf("Port roll %v:%v", host, i)
		if ls, err = net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(i))); err == nil {
			return ls, nil
		}
	}
	return nil, err
}

func isErrorAddressAlreadyInUse(err error) bool {
	var eOsSyscall *os.SyscallError
	if !errors.As(err, &eOsSyscall) {
		return false
	}
	var errErrno syscall.Errno
	if !errors.As(eOsSyscall, &errErrno) {
		return false
	}
	if errErrno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	if runtime.GOOS == "windows" && errErrno == WSAEADDRINUSE {
		return true
	}
	return false
}
