package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageMagic prefixes every program image: "TCBC" (Tiny C ByteCode).
var ImageMagic = []byte{'T', 'C', 'B', 'C'}

// ErrNotImage is returned when data does not start with ImageMagic.
var ErrNotImage = errors.New("not a tinyc program image")

// cborEncMode uses canonical mode so that equal programs encode to equal
// bytes, which the program cache relies on.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalImage serializes a program to an image.
// Format:
//
//	[magic:4] [version:2] [cbor program:...]
func MarshalImage(p *Program) ([]byte, error) {
	body, err := cborEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal program: %w", err)
	}
	buf := make([]byte, 0, len(ImageMagic)+2+len(body))
	buf = append(buf, ImageMagic...)
	buf = binary.BigEndian.AppendUint16(buf, p.Version)
	buf = append(buf, body...)
	return buf, nil
}

// UnmarshalImage decodes an image produced by MarshalImage. The decoded
// program must pass Validate.
func UnmarshalImage(data []byte) (*Program, error) {
	if len(data) < len(ImageMagic)+2 {
		return nil, fmt.Errorf("bytecode: image too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(ImageMagic)], ImageMagic) {
		return nil, ErrNotImage
	}
	version := binary.BigEndian.Uint16(data[len(ImageMagic):])
	if version != ImageVersion {
		return nil, fmt.Errorf("bytecode: image version %d, expected %d", version, ImageVersion)
	}

	var p Program
	if err := cbor.Unmarshal(data[len(ImageMagic)+2:], &p); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal program: %w", err)
	}
	if p.Version != version {
		return nil, fmt.Errorf("bytecode: header version %d does not match program version %d", version, p.Version)
	}
	if p.Functions == nil {
		p.Functions = make(map[string]int)
	}
	if p.Arity == nil {
		p.Arity = make(map[string]int)
	}
	if p.FuncLines == nil {
		p.FuncLines = make(map[string]int)
	}
	if p.Locals == nil {
		p.Locals = make(map[string]int)
	}
	if p.Lines == nil {
		p.Lines = make([]int, len(p.Code))
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: invalid image: %w", err)
	}
	return &p, nil
}
