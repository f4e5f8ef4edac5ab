//go:build !linux

package service

import "errors"

// ErrProcessMode is returned on platforms without process supervision.
var ErrProcessMode = errors.New("process mode is only supported on linux")
