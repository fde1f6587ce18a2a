package dump

import "fmt"

// FilesystemError reports a local directory or file operation that failed.
type FilesystemError struct {
	Op   string // "mkdir" or "write"
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
