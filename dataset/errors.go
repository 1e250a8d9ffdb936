package dataset

import (
	"errors"
	"fmt"
)

// ErrNoRecords signals an operation that needs at least one flight
// record to mean anything.
var ErrNoRecords = errors.New("dataset contains no records")

// DataFormatError reports an input file or batch from which no usable
// flight records could be parsed.
type DataFormatError struct {
	Path   string
	Reason string
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("data format error in %s: %s", e.Path, e.Reason)
}

// FileWriteError reports a failure to produce an output artifact such
// as a chart or an export file.
type FileWriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("writing %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error {
	return e.Err
}
