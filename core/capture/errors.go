package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied means the operating system refused microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrNoDevice means no usable input device could be opened.
	ErrNoDevice = errors.New("no usable input device")
)

var permissionHints = []string{"permission", "denied", "not permitted", "access"}

// classifyDeviceError maps a backend error onto the capture error taxonomy.
// Audio backends do not expose typed permission errors, so the message is
// inspected as a last resort.
func classifyDeviceError(err error) error {
	if err == nil || errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice) {
		return err
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range permissionHints {
		if strings.Contains(msg, hint) {
			return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrNoDevice, err)
}
