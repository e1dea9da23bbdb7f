package serial

import (
	"errors"
	"io/fs"

	goserial "go.bug.st/serial"
)

var errNoPortFound = errors.New("serial: no matching port found")

// retryable reports whether an open failure can be expected to clear
// on its own (device absent, busy, or not yet configured, as when the
// gateway is unplugged or still enumerating). Permission problems
// never clear without operator action and are terminal.
func retryable(err error) bool {
	var portErr *goserial.PortError
	if errors.As(err, &portErr) && portErr.Code() == goserial.PermissionDenied {
		return false
	}
	return !errors.Is(err, fs.ErrPermission)
}
