package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// ErrUnsupportedFormat is returned when no reader handles the sniffed format.
var ErrUnsupportedFormat = errors.New("unsupported schedule file format")

// Reader decodes one schedule file format.
type Reader interface {
	Format() Format
	Read(r io.Reader) (*File, error)
}

var (
	readers   = make(map[Format]Reader)
	readersMu sync.RWMutex
)

// Register adds a reader to the registry.
// Panics if a reader for the same format is already registered.
func Register(r Reader) {
	readersMu.Lock()
	defer readersMu.Unlock()

	if _, exists := readers[r.Format()]; exists {
		panic(fmt.Sprintf("reader already registered: %s", r.Format()))
	}
	readers[r.Format()] = r
}

// Lookup returns the reader for a format.
func Lookup(f Format) (Reader, bool) {
	readersMu.RLock()
	defer readersMu.RUnlock()

	r, ok := readers[f]
	return r, ok
}

// Formats returns all formats with a registered reader, sorted.
func Formats() []Format {
	readersMu.RLock()
	defer readersMu.RUnlock()

	out := make([]Format, 0, len(readers))
	for f := range readers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Supported reports whether data is in a format that can be read.
func Supported(data []byte) bool {
	_, ok := Lookup(Sniff(data))
	return ok
}

// Read sniffs the format of data and decodes it with the matching reader.
func Read(data []byte) (*File, error) {
	format := Sniff(data)
	r, ok := Lookup(format)
	if !ok {
		if format == FormatUnknown {
			return nil, ErrUnsupportedFormat
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	f, err := r.Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", format, err)
	}
	f.Format = format
	return f, nil
}
