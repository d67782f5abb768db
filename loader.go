package rtmcvm

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// BinaryMagic and BinaryVersion identify the little-endian binary image
// format (spec.md §4.1; original_source/rtmc_binary_loader.h).
const (
	BinaryMagic   uint32 = 0x434D5452 // 'RTMC'
	BinaryVersion uint32 = 1

	headerSize = 8 * 4 // eight uint32 fields, see binaryHeader below
)

// binaryHeader mirrors rtmc_binary_header_t exactly: magic, version,
// four table counts, and a trailing CRC-32 over everything that follows
// the header.
type binaryHeader struct {
	Magic    uint32
	Version  uint32
	NInstr   uint32
	NConst   uint32
	NStr     uint32
	NFunc    uint32
	NSym     uint32
	Checksum uint32
}

// ImageErrorReason classifies why a binary image failed to load
// (spec.md §7, ImageInvalid).
type ImageErrorReason int

const (
	ReasonTruncated ImageErrorReason = iota
	ReasonBadMagic
	ReasonBadVersion
	ReasonChecksumMismatch
	ReasonCapacityExceeded
	ReasonMalformedString
)

func (r ImageErrorReason) String() string {
	switch r {
	case ReasonTruncated:
		return "truncated"
	case ReasonBadMagic:
		return "bad magic"
	case ReasonBadVersion:
		return "unsupported version"
	case ReasonChecksumMismatch:
		return "checksum mismatch"
	case ReasonCapacityExceeded:
		return "capacity exceeded"
	case ReasonMalformedString:
		return "malformed string table entry"
	default:
		return "unknown"
	}
}

// ImageInvalid is returned by Decode when a binary image cannot be
// loaded; Reason identifies the specific cause.
type ImageInvalid struct {
	Reason ImageErrorReason
	Detail string
}

func (e *ImageInvalid) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("rtmcvm: image invalid: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("rtmcvm: image invalid: %s", e.Reason)
}

// Encode serializes an Image to the little-endian binary wire format,
// computing the trailing CRC-32/IEEE checksum over the body (everything
// after the header's checksum field).
func Encode(img *Image) ([]byte, error) {
	if len(img.Instructions) > MaxInstructions ||
		len(img.Constants) > MaxConstants ||
		len(img.Strings) > MaxStrings ||
		len(img.Functions) > MaxFunctions ||
		len(img.Symbols) > MaxSymbols {
		return nil, &ImageInvalid{Reason: ReasonCapacityExceeded}
	}

	var body []byte

	for _, inst := range img.Instructions {
		buf := make([]byte, 1+1+2+4*MaxOperands+4)
		buf[0] = byte(inst.Op)
		buf[1] = inst.OperandCount
		for i := 0; i < MaxOperands; i++ {
			binary.LittleEndian.PutUint32(buf[4+4*i:], uint32(inst.Operands[i]))
		}
		binary.LittleEndian.PutUint32(buf[4+4*MaxOperands:], inst.Line)
		body = append(body, buf...)
	}

	for _, c := range img.Constants {
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(c))
		body = append(body, buf...)
	}

	for _, s := range img.Strings {
		if len(s) > MaxStringLen {
			return nil, &ImageInvalid{Reason: ReasonMalformedString, Detail: s}
		}
		buf := make([]byte, MaxStringLen+1)
		copy(buf, s)
		body = append(body, buf...)
	}

	for _, f := range img.Functions {
		if len(f.Name) > MaxFuncNameLen {
			return nil, &ImageInvalid{Reason: ReasonMalformedString, Detail: f.Name}
		}
		buf := make([]byte, MaxFuncNameLen+1+4)
		copy(buf, f.Name)
		binary.LittleEndian.PutUint32(buf[MaxFuncNameLen+1:], f.Addr)
		body = append(body, buf...)
	}

	for _, s := range img.Symbols {
		if len(s.Name) > MaxSymNameLen {
			return nil, &ImageInvalid{Reason: ReasonMalformedString, Detail: s.Name}
		}
		buf := make([]byte, MaxSymNameLen+1+4)
		copy(buf, s.Name)
		binary.LittleEndian.PutUint32(buf[MaxSymNameLen+1:], s.Addr)
		body = append(body, buf...)
	}

	checksum := crc32.ChecksumIEEE(body)

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:], BinaryMagic)
	binary.LittleEndian.PutUint32(hdr[4:], BinaryVersion)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(len(img.Instructions)))
	binary.LittleEndian.PutUint32(hdr[12:], uint32(len(img.Constants)))
	binary.LittleEndian.PutUint32(hdr[16:], uint32(len(img.Strings)))
	binary.LittleEndian.PutUint32(hdr[20:], uint32(len(img.Functions)))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(len(img.Symbols)))
	binary.LittleEndian.PutUint32(hdr[28:], checksum)

	return append(hdr, body...), nil
}

// Decode parses and validates a binary image, returning a typed
// *ImageInvalid error on any failure. Validation order: header length,
// magic, version, per-table capacity, body length, checksum, then the
// opcode of each instruction.
func Decode(data []byte) (*Image, error) {
	if len(data) < headerSize {
		return nil, &ImageInvalid{Reason: ReasonTruncated}
	}

	magic := binary.LittleEndian.Uint32(data[0:])
	if magic != BinaryMagic {
		return nil, &ImageInvalid{Reason: ReasonBadMagic}
	}
	version := binary.LittleEndian.Uint32(data[4:])
	if version != BinaryVersion {
		return nil, &ImageInvalid{Reason: ReasonBadVersion}
	}

	nInstr := binary.LittleEndian.Uint32(data[8:])
	nConst := binary.LittleEndian.Uint32(data[12:])
	nStr := binary.LittleEndian.Uint32(data[16:])
	nFunc := binary.LittleEndian.Uint32(data[20:])
	nSym := binary.LittleEndian.Uint32(data[24:])
	wantChecksum := binary.LittleEndian.Uint32(data[28:])

	if nInstr > MaxInstructions || nConst > MaxConstants || nStr > MaxStrings ||
		nFunc > MaxFunctions || nSym > MaxSymbols {
		return nil, &ImageInvalid{Reason: ReasonCapacityExceeded}
	}

	instrBytes := int(nInstr) * (1 + 1 + 2 + 4*MaxOperands + 4)
	constBytes := int(nConst) * 4
	strBytes := int(nStr) * (MaxStringLen + 1)
	funcBytes := int(nFunc) * (MaxFuncNameLen + 1 + 4)
	symBytes := int(nSym) * (MaxSymNameLen + 1 + 4)

	body := data[headerSize:]
	wantLen := instrBytes + constBytes + strBytes + funcBytes + symBytes
	if len(body) < wantLen {
		return nil, &ImageInvalid{Reason: ReasonTruncated}
	}
	body = body[:wantLen]

	if crc32.ChecksumIEEE(body) != wantChecksum {
		return nil, &ImageInvalid{Reason: ReasonChecksumMismatch}
	}

	img := &Image{}
	off := 0

	for i := uint32(0); i < nInstr; i++ {
		b := body[off : off+1+1+2+4*MaxOperands+4]
		var inst Instruction
		inst.Op = Opcode(b[0])
		inst.OperandCount = b[1]
		for k := 0; k < MaxOperands; k++ {
			inst.Operands[k] = Value(binary.LittleEndian.Uint32(b[4+4*k:]))
		}
		inst.Line = binary.LittleEndian.Uint32(b[4+4*MaxOperands:])
		if !inst.Op.Valid() {
			return nil, &ImageInvalid{Reason: ReasonMalformedString, Detail: "invalid opcode in instruction table"}
		}
		img.Instructions = append(img.Instructions, inst)
		off += len(b)
	}

	for i := uint32(0); i < nConst; i++ {
		img.Constants = append(img.Constants, Value(binary.LittleEndian.Uint32(body[off:])))
		off += 4
	}

	for i := uint32(0); i < nStr; i++ {
		b := body[off : off+MaxStringLen+1]
		img.Strings = append(img.Strings, cStringFrom(b))
		off += len(b)
	}

	for i := uint32(0); i < nFunc; i++ {
		b := body[off : off+MaxFuncNameLen+1+4]
		name := cStringFrom(b[:MaxFuncNameLen+1])
		addr := binary.LittleEndian.Uint32(b[MaxFuncNameLen+1:])
		img.Functions = append(img.Functions, FuncEntry{Name: name, Addr: addr})
		off += len(b)
	}

	for i := uint32(0); i < nSym; i++ {
		b := body[off : off+MaxSymNameLen+1+4]
		name := cStringFrom(b[:MaxSymNameLen+1])
		addr := binary.LittleEndian.Uint32(b[MaxSymNameLen+1:])
		img.Symbols = append(img.Symbols, SymEntry{Name: name, Addr: addr})
		off += len(b)
	}

	return img, nil
}

// cStringFrom reads a NUL-terminated (or full-width) string out of a
// fixed-size buffer, matching the original's fixed char[N] table layout.
func cStringFrom(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
