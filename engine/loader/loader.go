package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// Errors returned by the loader. Backends wrap these with format-specific context,
// so callers should match them with errors.Is.
var (
	ErrInvalidSplatSize     = errors.New("raw splat data size is not a multiple of the record stride")
	ErrMissingVertexElement = errors.New("ply file has no vertex element")
	ErrMalformedPLY         = errors.New("malformed ply file")
	ErrTooManySplats        = errors.New("splat count exceeds the configured maximum")
	ErrUnsupportedFormat    = errors.New("unsupported splat format")
)

// Format identifies the splat file format backend to use.
type Format int

const (
	// FormatAuto selects the backend from the file extension, or by sniffing the
	// data for a PLY magic when no extension is available.
	FormatAuto Format = iota

	// FormatRaw selects the fixed-stride little-endian binary backend.
	FormatRaw

	// FormatPLY selects the PLY backend (ascii and binary).
	FormatPLY
)

// String returns the lowercase name of the format.
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatRaw:
		return "raw"
	case FormatPLY:
		return "ply"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat converts a format name ("auto", "raw", "splat" or "ply") into a Format.
//
// Parameters:
//   - s: the format name, case-insensitive
//
// Returns:
//   - Format: the parsed format
//   - error: ErrUnsupportedFormat if the name is unknown
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "raw", "splat", "bin":
		return FormatRaw, nil
	case "ply":
		return FormatPLY, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	backends map[Format]loaderBackend

	// maxSplats caps the number of splats a single load may return. Zero disables the cap.
	maxSplats int
}

// Loader decodes splat files into Splat slices. Every load is all-or-nothing:
// either the complete slice is returned, or an error and no splats.
type Loader interface {
	// Load reads and decodes the file at path.
	//
	// Parameters:
	//   - path: the file to load
	//   - format: the format to decode, or FormatAuto to select by extension
	//
	// Returns:
	//   - []splat.Splat: the decoded splats in file order
	//   - error: error if reading or decoding fails
	Load(path string, format Format) ([]splat.Splat, error)

	// LoadReader reads r to EOF and decodes the data.
	//
	// Parameters:
	//   - r: the reader providing splat data
	//   - format: the format to decode, or FormatAuto to sniff the data
	//
	// Returns:
	//   - []splat.Splat: the decoded splats in stream order
	//   - error: error if reading or decoding fails
	LoadReader(r io.Reader, format Format) ([]splat.Splat, error)

	// LoadBytes decodes an in-memory splat file.
	//
	// Parameters:
	//   - data: the complete file contents
	//   - format: the format to decode, or FormatAuto to sniff the data
	//
	// Returns:
	//   - []splat.Splat: the decoded splats
	//   - error: error if decoding fails
	LoadBytes(data []byte, format Format) ([]splat.Splat, error)

	// MaxSplats returns the per-load splat cap, zero when unlimited.
	MaxSplats() int
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the raw and PLY backends registered.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader instance
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		backends: map[Format]loaderBackend{
			FormatRaw: newRawLoaderBackend(),
			FormatPLY: newPLYLoaderBackend(),
		},
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string, format Format) ([]splat.Splat, error) {
	if format == FormatAuto {
		format = formatFromPath(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	splats, err := l.LoadBytes(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	common.Logf("[Loader] loaded %d splats from %s (%s)", len(splats), filepath.Base(path), l.resolveFormat(data, format))
	return splats, nil
}

func (l *loader) LoadReader(r io.Reader, format Format) ([]splat.Splat, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read splat stream: %w", err)
	}
	return l.LoadBytes(data, format)
}

func (l *loader) LoadBytes(data []byte, format Format) ([]splat.Splat, error) {
	format = l.resolveFormat(data, format)

	l.mu.RLock()
	backend, ok := l.backends[format]
	maxSplats := l.maxSplats
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	splats, err := backend.Decode(data, maxSplats)
	if err != nil {
		return nil, err
	}
	if maxSplats > 0 && len(splats) > maxSplats {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManySplats, len(splats), maxSplats)
	}
	return splats, nil
}

func (l *loader) MaxSplats() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.maxSplats
}

// resolveFormat replaces FormatAuto with a concrete format by sniffing the data.
func (l *loader) resolveFormat(data []byte, format Format) Format {
	if format != FormatAuto {
		return format
	}
	if bytes.HasPrefix(data, []byte("ply\n")) || bytes.HasPrefix(data, []byte("ply\r\n")) {
		return FormatPLY
	}
	return FormatRaw
}

// formatFromPath maps a file extension to a Format. Unknown extensions stay on
// FormatAuto so the data is sniffed instead.
func formatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ply":
		return FormatPLY
	case ".splat", ".bin", ".raw":
		return FormatRaw
	default:
		return FormatAuto
	}
}
