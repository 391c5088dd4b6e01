// Package collab declares the application collaborator interfaces spec.md
// §6 names by interface only: the core consumes these, the host process
// provides them. Keeping them in their own package lets both the internal
// protocol packages and the public pkg/ambrosia facade depend on the same
// types without an import cycle.
package collab

import "io"

// MethodDispatcher is invoked by the ingress loop for each incoming RPC.
type MethodDispatcher interface {
	Dispatch(methodID int32, args []byte) error
}

// CheckpointWriter writes a checkpoint envelope in the coordinator's
// expected shape. The core invokes it during startup and whenever a
// TakeCheckpoint message arrives; the checkpoint payload's contents are out
// of scope for this module (spec.md §1) beyond the "dummy checkpoint"
// framing it is responsible for.
type CheckpointWriter interface {
	WriteDummyCheckpoint(w io.Writer) error
}

// StartupSpec carries the application-owned constants spec.md §6 names:
// the startup method ID and its argument bytes.
type StartupSpec struct {
	MethodID int32
	Args     []byte
}
