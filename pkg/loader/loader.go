// Package loader reads LC-3 object images: a sequence of big-endian 16-bit
// words where the first word is the origin address and the rest populate
// memory from there.
package loader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrBadImage is returned for images that cannot be read completely: a
// missing origin word, a truncated body, or a body that would run past the
// end of memory.
var ErrBadImage = errors.New("malformed object image")

// Program is a decoded object image.
type Program struct {
	Origin uint16
	Words  []uint16
}

// Read decodes an object image from r.
func Read(r io.Reader) (Program, error) {
	var origin uint16
	if err := binary.Read(r, binary.BigEndian, &origin); err != nil {
		return Program{}, fmt.Errorf("reading origin: %w", ErrBadImage)
	}

	var words []uint16
	var buf [2]byte
	for {
		n, err := io.ReadFull(r, buf[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return Program{}, fmt.Errorf("reading body after %d words (%d stray bytes): %w", len(words), n, ErrBadImage)
		}
		words = append(words, binary.BigEndian.Uint16(buf[:]))
	}

	if int(origin)+len(words) > 0x10000 {
		return Program{}, fmt.Errorf("origin 0x%04X with %d words overruns memory: %w", origin, len(words), ErrBadImage)
	}
	return Program{Origin: origin, Words: words}, nil
}

// ReadFile decodes the object image in the named file.
func ReadFile(path string) (Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return Program{}, err
	}
	defer f.Close()
	return Read(f)
}
