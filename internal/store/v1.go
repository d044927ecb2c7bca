package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/brianly1003/janus/internal/config"
	"github.com/brianly1003/janus/internal/filter"
)

// Version 1 grammar. Record-oriented with ASCII sentinel bytes:
//
//	stream  = { '[' watch ']' } '.' { '[' kv ']' } '#'
//	watch   = name watchDir syncDir filterCount { filter } recursive autoAdd
//	          autoDelete observe delayMillis
//	filter  = behavior typeTag patternCount { pattern }
//	kv      = key typeTag value
//
// Strings are uint32 little-endian length prefixed; int32/uint64 are
// little-endian; float64 is its IEEE-754 bit pattern; bool is one byte, 0 or
// 1. The filter behavior byte is legacy: written as a constant, read and
// discarded. Filter type tags are "EF"/"EFF"/"IF"; value type tags are
// 's'/'i'/'d'/'b'. Any other sentinel or tag is a fatal FormatError.
type v1Codec struct{}

// Sentinel bytes.
const (
	sentinelBegin   = '['
	sentinelEnd     = ']'
	sentinelSection = '.'
	sentinelEOF     = '#'
)

// Value type tags.
const (
	tagString  = 's'
	tagInt32   = 'i'
	tagFloat64 = 'd'
	tagBool    = 'b'
)

// behaviorExclude is the constant legacy behavior byte.
const behaviorExclude = 'E'

// maxCount caps length-prefixed counts so a corrupt stream cannot request an
// absurd allocation before the grammar check catches it.
const maxCount = 1 << 20

func (v1Codec) read(r *bufio.Reader) (Data, error) {
	data := NewData()
	inValues := false

	for {
		b, err := r.ReadByte()
		if err != nil {
			return Data{}, formatErrorf("missing stream terminator: %v", err)
		}

		switch b {
		case sentinelEOF:
			if !inValues {
				return Data{}, formatErrorf("stream terminator before section separator")
			}
			return data, nil

		case sentinelSection:
			if inValues {
				return Data{}, formatErrorf("duplicate section separator")
			}
			inValues = true

		case sentinelBegin:
			if inValues {
				key, value, err := readValueRecord(r)
				if err != nil {
					return Data{}, err
				}
				data.Values[key] = value
				continue
			}

			cfg, err := readWatchRecord(r)
			if err != nil {
				var cfgErr *ConfigurationError
				if errors.As(err, &cfgErr) {
					// Local failure: the grammar was satisfied, only the
					// configuration is unusable. Skip this record.
					log.Warn().Err(cfgErr).Msg("skipping invalid watch record")
					continue
				}
				return Data{}, err
			}
			data.Watches = append(data.Watches, cfg)

		default:
			return Data{}, formatErrorf("unexpected sentinel 0x%02x", b)
		}
	}
}

func (v1Codec) write(w *bufio.Writer, data Data) error {
	for _, cfg := range data.Watches {
		if err := cfg.Validate(); err != nil {
			return &ConfigurationError{Name: cfg.Name, Err: err}
		}
		if err := writeWatchRecord(w, cfg); err != nil {
			return err
		}
	}

	if err := w.WriteByte(sentinelSection); err != nil {
		return err
	}

	for _, key := range sortedKeys(data.Values) {
		if err := writeValueRecord(w, key, data.Values[key]); err != nil {
			return err
		}
	}

	return w.WriteByte(sentinelEOF)
}

// readWatchRecord parses one watch record after its '[' sentinel. A
// *ConfigurationError return means the record was grammatically complete but
// invalid; every other error is fatal.
func readWatchRecord(r *bufio.Reader) (config.WatchConfig, error) {
	var cfg config.WatchConfig
	var err error

	if cfg.Name, err = readString(r); err != nil {
		return cfg, err
	}
	if cfg.WatchDir, err = readString(r); err != nil {
		return cfg, err
	}
	if cfg.SyncDir, err = readString(r); err != nil {
		return cfg, err
	}

	filterCount, err := readInt32(r)
	if err != nil {
		return cfg, err
	}
	if filterCount < 0 || filterCount > maxCount {
		return cfg, formatErrorf("invalid filter count %d", filterCount)
	}

	for i := int32(0); i < filterCount; i++ {
		f, err := readFilter(r)
		if err != nil {
			return cfg, err
		}
		cfg.Filters = append(cfg.Filters, f)
	}

	if cfg.Recursive, err = readBool(r); err != nil {
		return cfg, err
	}
	if cfg.AutoAdd, err = readBool(r); err != nil {
		return cfg, err
	}
	if cfg.AutoDelete, err = readBool(r); err != nil {
		return cfg, err
	}
	if cfg.Observe, err = readBool(r); err != nil {
		return cfg, err
	}

	delayMillis, err := readUint64(r)
	if err != nil {
		return cfg, err
	}
	cfg.Delay = time.Duration(delayMillis) * time.Millisecond

	if err := expectByte(r, sentinelEnd); err != nil {
		return cfg, err
	}

	// Grammar satisfied; construction failures from here on are local.
	if err := cfg.Validate(); err != nil {
		return cfg, &ConfigurationError{Name: cfg.Name, Err: err}
	}
	return cfg, nil
}

func writeWatchRecord(w *bufio.Writer, cfg config.WatchConfig) error {
	if err := w.WriteByte(sentinelBegin); err != nil {
		return err
	}
	if err := writeString(w, cfg.Name); err != nil {
		return err
	}
	if err := writeString(w, cfg.WatchDir); err != nil {
		return err
	}
	if err := writeString(w, cfg.SyncDir); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(cfg.Filters))); err != nil {
		return err
	}
	for _, f := range cfg.Filters {
		if err := writeFilter(w, f); err != nil {
			return err
		}
	}
	for _, flag := range []bool{cfg.Recursive, cfg.AutoAdd, cfg.AutoDelete, cfg.Observe} {
		if err := writeBool(w, flag); err != nil {
			return err
		}
	}
	if err := writeUint64(w, uint64(cfg.Delay/time.Millisecond)); err != nil {
		return err
	}
	return w.WriteByte(sentinelEnd)
}

func readFilter(r *bufio.Reader) (filter.Filter, error) {
	var f filter.Filter

	// Legacy behavior byte: read but unused.
	if _, err := r.ReadByte(); err != nil {
		return f, formatErrorf("truncated filter record: %v", err)
	}

	tag, err := readString(r)
	if err != nil {
		return f, err
	}
	kind, ok := filter.KindFromTag(tag)
	if !ok {
		return f, formatErrorf("unknown filter type tag %q", tag)
	}
	f.Kind = kind

	patternCount, err := readInt32(r)
	if err != nil {
		return f, err
	}
	if patternCount < 0 || patternCount > maxCount {
		return f, formatErrorf("invalid pattern count %d", patternCount)
	}
	for i := int32(0); i < patternCount; i++ {
		pattern, err := readString(r)
		if err != nil {
			return f, err
		}
		f.Patterns = append(f.Patterns, pattern)
	}
	return f, nil
}

// writeFilter emits one filter. Kinds outside the closed enum were rejected
// by Validate before writing began, so the tag lookup cannot fail here; the
// writer never emits a marker the paired reader would refuse.
func writeFilter(w *bufio.Writer, f filter.Filter) error {
	tag, ok := f.Kind.Tag()
	if !ok {
		return &ConfigurationError{Err: f.Validate()}
	}
	if err := w.WriteByte(behaviorExclude); err != nil {
		return err
	}
	if err := writeString(w, tag); err != nil {
		return err
	}
	if err := writeInt32(w, int32(len(f.Patterns))); err != nil {
		return err
	}
	for _, pattern := range f.Patterns {
		if err := writeString(w, pattern); err != nil {
			return err
		}
	}
	return nil
}

func readValueRecord(r *bufio.Reader) (string, interface{}, error) {
	key, err := readString(r)
	if err != nil {
		return "", nil, err
	}

	tag, err := r.ReadByte()
	if err != nil {
		return "", nil, formatErrorf("truncated value record: %v", err)
	}

	var value interface{}
	switch tag {
	case tagString:
		value, err = readString(r)
	case tagInt32:
		value, err = readInt32(r)
	case tagFloat64:
		value, err = readFloat64(r)
	case tagBool:
		value, err = readBool(r)
	default:
		return "", nil, formatErrorf("unknown value type tag 0x%02x", tag)
	}
	if err != nil {
		return "", nil, err
	}

	if err := expectByte(r, sentinelEnd); err != nil {
		return "", nil, err
	}
	return key, value, nil
}

// writeValueRecord emits one key/value record. An unsupported value type is
// dropped with a warning before any bytes for the record are written, so the
// stream never carries a tag the reader does not accept.
func writeValueRecord(w *bufio.Writer, key string, value interface{}) error {
	var tag byte
	switch value.(type) {
	case string:
		tag = tagString
	case int32:
		tag = tagInt32
	case float64:
		tag = tagFloat64
	case bool:
		tag = tagBool
	default:
		log.Warn().
			Err(&UnsupportedValueError{Key: key, Value: value}).
			Msg("dropping application-data entry")
		return nil
	}

	if err := w.WriteByte(sentinelBegin); err != nil {
		return err
	}
	if err := writeString(w, key); err != nil {
		return err
	}
	if err := w.WriteByte(tag); err != nil {
		return err
	}

	var err error
	switch v := value.(type) {
	case string:
		err = writeString(w, v)
	case int32:
		err = writeInt32(w, v)
	case float64:
		err = writeFloat64(w, v)
	case bool:
		err = writeBool(w, v)
	}
	if err != nil {
		return err
	}
	return w.WriteByte(sentinelEnd)
}

// --- primitive encoding ---

func expectByte(r *bufio.Reader, want byte) error {
	b, err := r.ReadByte()
	if err != nil {
		return formatErrorf("missing sentinel 0x%02x: %v", want, err)
	}
	if b != want {
		return formatErrorf("expected sentinel 0x%02x, found 0x%02x", want, b)
	}
	return nil
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readInt32(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxCount {
		return "", formatErrorf("invalid string length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", formatErrorf("truncated string: %v", err)
	}
	return string(buf), nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeInt32(w, int32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

func readInt32(r *bufio.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, formatErrorf("truncated int32: %v", err)
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func writeInt32(w *bufio.Writer, v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r *bufio.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, formatErrorf("truncated uint64: %v", err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeUint64(w *bufio.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readFloat64(r *bufio.Reader) (float64, error) {
	bits, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

func writeFloat64(w *bufio.Writer, v float64) error {
	return writeUint64(w, math.Float64bits(v))
}

func readBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, formatErrorf("truncated bool: %v", err)
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, formatErrorf("invalid bool byte 0x%02x", b)
	}
}

func writeBool(w *bufio.Writer, v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}
