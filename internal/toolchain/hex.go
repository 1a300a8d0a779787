package toolchain

import (
	"errors"
	"fmt"
	"os"

	"github.com/marcinbor85/gohex"
)

// ErrInvalidImage is returned when a hex file cannot be parsed or holds no data.
var ErrInvalidImage = errors.New("invalid hex image")

// Image summarizes an Intel-hex firmware file.
type Image struct {
	Path     string
	Address  uint32
	Size     int
	Segments int
}

// LoadImage parses an Intel-hex file and reports where its data lands.
func LoadImage(filename string) (*Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	mem := gohex.NewMemory()
	if err = mem.ParseIntelHex(file); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImage, filename, err)
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %s has no data records", ErrInvalidImage, filename)
	}

	img := &Image{
		Path:     filename,
		Address:  segments[0].Address,
		Segments: len(segments),
	}
	for _, s := range segments {
		if s.Address < img.Address {
			img.Address = s.Address
		}
		img.Size += len(s.Data)
	}
	return img, nil
}
