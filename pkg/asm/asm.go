// Package asm translates the compiler's textual assembly into the binary
// image consumed by the virtual machine.
//
// The input has two sections. The .data section is a list of
// "<length> <bytes>" entries; the .code section is a list of blocks, each
// headed by "function <name>" or "entrypoint" and holding one instruction
// per line. The output image starts with a fixed header, then the encoded
// data segment, then the encoded code segment.
package asm

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Opcode values of the fixed instruction set.
const (
	OpPush  byte = 0x01
	OpLoad  byte = 0x02
	OpStore byte = 0x03
	OpCall  byte = 0x04
	OpPop   byte = 0x05
	OpRet   byte = 0x06
)

// Segment tags used as the source/destination byte of load and store.
const (
	SegData   byte = 0x00
	SegScope  byte = 0x01
	SegGlobal byte = 0x02
)

// callIntrinsicBit marks a call target byte as an intrinsic ordinal instead
// of a function block index.
const callIntrinsicBit byte = 0x80

// intrinsicOrdinals fixes the runtime's intrinsic numbering.
var intrinsicOrdinals = map[string]byte{
	"print":   0,
	"println": 1,
}

// Magic is the fixed 23-byte marker opening every binary image.
const Magic = "this is a tagml program"

// headerSize is the magic plus the three big-endian uint32 offsets.
const headerSize = len(Magic) + 12

// Header is the decoded image header. All offsets are relative to the start
// of the segment payload that follows the header.
type Header struct {
	DataOffset       uint32
	CodeOffset       uint32
	EntrypointOffset uint32
}

// DecodeHeader reads the header back out of an assembled image.
func DecodeHeader(image []byte) (Header, error) {
	if len(image) < headerSize {
		return Header{}, fmt.Errorf("image too short: %d bytes", len(image))
	}
	if string(image[:len(Magic)]) != Magic {
		return Header{}, fmt.Errorf("bad magic marker")
	}

	rest := image[len(Magic):]
	return Header{
		DataOffset:       binary.BigEndian.Uint32(rest[0:4]),
		CodeOffset:       binary.BigEndian.Uint32(rest[4:8]),
		EntrypointOffset: binary.BigEndian.Uint32(rest[8:12]),
	}, nil
}

// Assemble translates assembly text into a binary image. Unlike parsing
// there is no recovery here: the first malformed line fails the whole
// translation.
func Assemble(text string) ([]byte, error) {
	dataLines, codeLines, err := splitSections(text)
	if err != nil {
		return nil, err
	}

	data, err := assembleData(dataLines)
	if err != nil {
		return nil, err
	}

	code, entrypoint, err := assembleCode(codeLines)
	if err != nil {
		return nil, err
	}

	image := make([]byte, 0, headerSize+len(data)+len(code))
	image = append(image, Magic...)
	image = binary.BigEndian.AppendUint32(image, 0)
	image = binary.BigEndian.AppendUint32(image, uint32(len(data)))
	image = binary.BigEndian.AppendUint32(image, entrypoint)
	image = append(image, data...)
	image = append(image, code...)

	return image, nil
}

// splitSections separates the .data and .code section lines, enforcing
// their order.
func splitSections(text string) (dataLines, codeLines []string, err error) {
	const (
		sectionNone = iota
		sectionData
		sectionCode
	)

	section := sectionNone

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		switch trimmed {
		case ".data":
			if section != sectionNone {
				return nil, nil, fmt.Errorf("misplaced .data section")
			}
			section = sectionData
		case ".code":
			if section != sectionData {
				return nil, nil, fmt.Errorf("misplaced .code section")
			}
			section = sectionCode
		default:
			switch section {
			case sectionData:
				// Data bytes may carry leading or trailing spaces,
				// keep the raw line.
				dataLines = append(dataLines, line)
			case sectionCode:
				codeLines = append(codeLines, trimmed)
			default:
				return nil, nil, fmt.Errorf("line %q outside of any section", trimmed)
			}
		}
	}

	if section != sectionCode {
		return nil, nil, fmt.Errorf("missing .code section")
	}

	return dataLines, codeLines, nil
}

// assembleData encodes each "<length> <bytes>" entry as a big-endian 4-byte
// length prefix followed by the bytes verbatim.
func assembleData(lines []string) ([]byte, error) {
	var data []byte

	for _, line := range lines {
		lengthText, bytesText, _ := strings.Cut(strings.TrimLeft(line, " "), " ")

		length, err := strconv.ParseUint(lengthText, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad data entry %q: %w", line, err)
		}
		if int(length) != len(bytesText) {
			return nil, fmt.Errorf("data entry %q declares %d bytes but holds %d",
				line, length, len(bytesText))
		}

		data = binary.BigEndian.AppendUint32(data, uint32(length))
		data = append(data, bytesText...)
	}

	return data, nil
}

// assembleCode encodes the code section and returns the byte offset of the
// entrypoint block. Block headers are pre-scanned first so a call can target
// a function declared after it.
func assembleCode(lines []string) ([]byte, uint32, error) {
	functionOrdinals := make(map[string]byte)

	ordinal := byte(0)
	for _, line := range lines {
		if name, ok := strings.CutPrefix(line, "function "); ok {
			if _, dup := functionOrdinals[name]; dup {
				return nil, 0, fmt.Errorf("duplicate function block %q", name)
			}
			functionOrdinals[name] = ordinal
			ordinal++
		}
	}

	var code []byte
	entrypoint := uint32(0)
	sawEntrypoint := false

	for _, line := range lines {
		if strings.HasPrefix(line, "function ") {
			continue
		}
		if line == "entrypoint" {
			entrypoint = uint32(len(code))
			sawEntrypoint = true
			continue
		}

		encoded, err := encodeInstruction(line, functionOrdinals)
		if err != nil {
			return nil, 0, err
		}
		code = append(code, encoded...)
	}

	if !sawEntrypoint {
		return nil, 0, fmt.Errorf("missing entrypoint block")
	}

	return code, entrypoint, nil
}

// encodeInstruction dispatches one instruction line to its fixed-width
// encoding.
func encodeInstruction(line string, functionOrdinals map[string]byte) ([]byte, error) {
	mnemonic, operand, _ := strings.Cut(line, " ")

	switch mnemonic {
	case "push":
		value, err := strconv.ParseInt(operand, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad push operand %q: %w", operand, err)
		}
		out := []byte{OpPush}
		return binary.BigEndian.AppendUint32(out, uint32(int32(value))), nil

	case "load", "store":
		segment, offset, err := parseSegmentOperand(operand)
		if err != nil {
			return nil, fmt.Errorf("bad %s operand: %w", mnemonic, err)
		}
		opcode := OpLoad
		if mnemonic == "store" {
			opcode = OpStore
		}
		out := []byte{opcode, segment}
		return binary.BigEndian.AppendUint32(out, offset), nil

	case "call":
		target, err := resolveCallTarget(operand, functionOrdinals)
		if err != nil {
			return nil, err
		}
		return []byte{OpCall, target}, nil

	case "pop":
		return []byte{OpPop}, nil

	case "ret":
		return []byte{OpRet}, nil
	}

	return nil, fmt.Errorf("unknown mnemonic %q", mnemonic)
}

// parseSegmentOperand decodes "<segment>[<offset>]" operands such as
// .data[8] or scope[0].
func parseSegmentOperand(operand string) (byte, uint32, error) {
	open := strings.IndexByte(operand, '[')
	if open < 0 || !strings.HasSuffix(operand, "]") {
		return 0, 0, fmt.Errorf("malformed operand %q", operand)
	}

	var segment byte
	switch operand[:open] {
	case ".data":
		segment = SegData
	case "scope":
		segment = SegScope
	case "global":
		segment = SegGlobal
	default:
		return 0, 0, fmt.Errorf("unknown segment %q", operand[:open])
	}

	offset, err := strconv.ParseUint(operand[open+1:len(operand)-1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed offset in %q: %w", operand, err)
	}

	return segment, uint32(offset), nil
}

// resolveCallTarget encodes a call target byte: intrinsics carry their
// ordinal with the intrinsic mode bit set, user functions carry their block
// index in emission order.
func resolveCallTarget(name string, functionOrdinals map[string]byte) (byte, error) {
	if ordinal, ok := intrinsicOrdinals[name]; ok {
		return ordinal | callIntrinsicBit, nil
	}
	if ordinal, ok := functionOrdinals[name]; ok {
		return ordinal, nil
	}
	return 0, fmt.Errorf("call to unknown target %q", name)
}
