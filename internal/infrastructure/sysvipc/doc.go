// Package sysvipc backs the shared state store and the gate set with System V
// IPC objects, so that participants running as separate processes can share
// them: one shared memory segment holding the msgpack-encoded state and one
// semaphore set holding every gate.
//
// Both objects are addressed by a numeric IPC key. The supervisor creates
// them (Create*), participants attach to them (Open*), and the supervisor
// removes them (Destroy) only after every participant has exited.
//
// Only linux/amd64 and linux/arm64 are supported; elsewhere every constructor
// returns ErrUnsupported.
package sysvipc
