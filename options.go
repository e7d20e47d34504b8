package flashfs

import (
	"fmt"

	"github.com/mwantia/flashfs/data"
	"github.com/mwantia/flashfs/log"
)

type FileSystemOptions struct {
	LogLevel      log.LogLevel
	LogFile       string
	NoTerminalLog bool
	ReadOnly      bool
	ChunkSize     int64
}

type FileSystemOption func(*FileSystemOptions) error

func newDefaultFileSystemOptions() *FileSystemOptions {
	return &FileSystemOptions{
		LogLevel: log.Info,
	}
}

func WithLogLevel(logLevel log.LogLevel) FileSystemOption {
	return func(opts *FileSystemOptions) error {
		opts.LogLevel = logLevel
		return nil
	}
}

func WithLogFile(logFile string) FileSystemOption {
	return func(opts *FileSystemOptions) error {
		opts.LogFile = logFile
		return nil
	}
}

func WithoutTerminalLog() FileSystemOption {
	return func(opts *FileSystemOptions) error {
		opts.NoTerminalLog = true
		return nil
	}
}

// WithReadOnly mounts the device read-only; every mutating bridge
// operation fails with ErrReadOnly.
func WithReadOnly() FileSystemOption {
	return func(opts *FileSystemOptions) error {
		opts.ReadOnly = true
		return nil
	}
}

// WithChunkSize sets the block size used for size accounting and
// chunked file content.
func WithChunkSize(size int64) FileSystemOption {
	return func(opts *FileSystemOptions) error {
		if size <= 0 {
			return fmt.Errorf("%w: chunk size %d", data.ErrInvalid, size)
		}
		opts.ChunkSize = size
		return nil
	}
}
