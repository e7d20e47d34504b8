package data

import (
	"errors"
	"sync"
)

// Standard flashfs errors. Bridge operations translate walker and
// engine outcomes into exactly these sentinels so hosts can map them
// onto their own errno taxonomy.
var (
	// Path resolution errors
	ErrNotExist     = errors.New("flashfs: object does not exist")
	ErrNotDirectory = errors.New("flashfs: not a directory")
	ErrInvalidPath  = errors.New("flashfs: invalid path detected")

	// Mount lifecycle errors
	ErrNotMounted     = errors.New("flashfs: device not mounted")
	ErrAlreadyMounted = errors.New("flashfs: path already mounted")
	ErrMountBusy      = errors.New("flashfs: mount point busy")
	ErrMountFailed    = errors.New("flashfs: mount initialization failed")

	// Operation errors
	ErrExist          = errors.New("flashfs: object already exists")
	ErrReadOnly       = errors.New("flashfs: read-only device")
	ErrNoSpace        = errors.New("flashfs: no space left on device")
	ErrNotEmpty       = errors.New("flashfs: directory not empty")
	ErrNotImplemented = errors.New("flashfs: operation not implemented")
	ErrNotSupported   = errors.New("flashfs: operation not supported")
	ErrInvalid        = errors.New("flashfs: invalid argument")
	ErrIO             = errors.New("flashfs: input/output error")

	// Handle errors
	ErrClosed = errors.New("flashfs: handle already closed")
	ErrBusy   = errors.New("flashfs: device is busy")
)

// Errors accumulates failures from multi-part operations such as
// unmount cleanup and joins them into one error.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
