package sysvipc

import (
	"errors"
	"fmt"

	"github.com/edirooss/smokers/internal/infrastructure/gateset"
	"github.com/edirooss/smokers/internal/infrastructure/statestore"
)

// ErrUnsupported is returned on platforms without System V IPC support.
var ErrUnsupported = errors.New("System V IPC is not supported on this platform")

func semErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", gateset.ErrPrimitive, op, err)
}

func shmErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", statestore.ErrPrimitive, op, err)
}
