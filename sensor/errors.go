package sensor

import (
	"errors"
	"fmt"
)

// ErrUnsupported is returned when the host lacks a motion or orientation source
var ErrUnsupported = errors.New("motion sensors not supported")

// PermissionDeniedError reports an explicit non-grant answer from a consent request
type PermissionDeniedError struct {
	Sensor     Kind
	Permission Permission
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("%s permission not granted (%s)", e.Sensor, e.Permission)
}

// PermissionRequestError wraps a failure raised while asking for consent
type PermissionRequestError struct {
	Sensor Kind
	Err    error
}

func (e *PermissionRequestError) Error() string {
	return fmt.Sprintf("%s permission error: %v", e.Sensor, e.Err)
}

func (e *PermissionRequestError) Unwrap() error {
	return e.Err
}
