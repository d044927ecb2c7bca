package store

import "fmt"

// FormatError reports a violation of the store grammar: a bad sentinel, an
// unknown type tag, a truncated stream or an unknown format version. Format
// errors are fatal for the entire load - no partial result is produced.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "store format error: " + e.Reason
}

func formatErrorf(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationError reports a syntactically well-formed watch record that
// failed to construct a valid configuration. Unlike a FormatError it is
// local: the record is skipped and the load continues.
type ConfigurationError struct {
	Name string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid watch record %q: %v", e.Name, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UnsupportedValueError reports an application-data entry whose type falls
// outside {string, int32, float64, bool} at write time. The entry is dropped
// with a warning; the write succeeds.
type UnsupportedValueError struct {
	Key   string
	Value interface{}
}

func (e *UnsupportedValueError) Error() string {
	return fmt.Sprintf("unsupported value type %T for key %q", e.Value, e.Key)
}
