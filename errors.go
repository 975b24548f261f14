package qserv

import "errors"

// ErrNotRunning is returned by every Controller operation when the
// controller is not in the Running state.
var ErrNotRunning = errors.New("qserv: controller is not running")

// ErrAlreadyRunning is returned by Start if the controller has already
// been started.
var ErrAlreadyRunning = errors.New("qserv: controller already running")

// ErrUnknownRequest is returned by operations that look up a request
// by id (Cancel, Snapshot) when no such request is registered.
var ErrUnknownRequest = errors.New("qserv: unknown request id")
