// Package wire implements the RVideo binary frame codec.
//
// All multi-byte integers are little-endian. Every encode function writes
// into the caller-supplied buffer when it has room for the message; when
// the buffer is nil or too short, the function allocates a new one.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel codec errors. Connection-level errors (timeouts, EOF) are wrapped
// by internal/conn, not here.
var (
	// ErrInvalidFPS is returned when a STREAM-SELECT requests fps == 0.
	ErrInvalidFPS = errors.New("wire: fps must be between 1 and 255")
	// ErrBadAck is returned when an ACK byte is not 0x00.
	ErrBadAck = errors.New("wire: malformed ack byte")
	// ErrUnknownFormat is returned when a PixelFormat byte is not in the closed set.
	ErrUnknownFormat = errors.New("wire: unknown pixel format")
)

// magicR is the leading byte of GREETINGS, the ASCII letter 'R'.
const magicR = 0x52

// ackByte is the only valid value for the client's ACK.
const ackByte = 0x00

// Format is the tagged pixel format code carried in STREAM-INFO.
type Format uint8

// The closed set of pixel formats recognized by the protocol.
const (
	Luma8   Format = 0
	Luma16  Format = 1
	LumaA8  Format = 2
	LumaA16 Format = 3
	Rgb8    Format = 4
	Rgb16   Format = 5
	RgbA8   Format = 6
	RgbA16  Format = 7
	Mjpeg   Format = 64
)

// BytesPerPixel returns the number of bytes one pixel occupies for raw
// (non-MJpeg) formats. The second return value is false for Mjpeg, whose
// picture length is arbitrary, and for any unrecognized code.
func (f Format) BytesPerPixel() (int, bool) {
	switch f {
	case Luma8:
		return 1, true
	case Luma16:
		return 2, true
	case LumaA8:
		return 2, true
	case LumaA16:
		return 4, true
	case Rgb8:
		return 3, true
	case Rgb16:
		return 6, true
	case RgbA8:
		return 4, true
	case RgbA16:
		return 8, true
	case Mjpeg:
		return 0, false
	default:
		return 0, false
	}
}

// Valid reports whether f is one of the closed set of recognized codes.
func (f Format) Valid() bool {
	switch f {
	case Luma8, Luma16, LumaA8, LumaA16, Rgb8, Rgb16, RgbA8, RgbA16, Mjpeg:
		return true
	default:
		return false
	}
}

func (f Format) String() string {
	switch f {
	case Luma8:
		return "Luma8"
	case Luma16:
		return "Luma16"
	case LumaA8:
		return "LumaA8"
	case LumaA16:
		return "LumaA16"
	case Rgb8:
		return "Rgb8"
	case Rgb16:
		return "Rgb16"
	case RgbA8:
		return "RgbA8"
	case RgbA16:
		return "RgbA16"
	case Mjpeg:
		return "Mjpeg"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// StreamInfo is the fixed 7-byte payload sent after a successful
// STREAM-SELECT.
type StreamInfo struct {
	StreamID uint16
	Format   Format
	Width    uint16
	Height   uint16
}

// GreetingsLen is the fixed size of the GREETINGS message.
const GreetingsLen = 3

// StreamSelectLen is the fixed size of the STREAM-SELECT message.
const StreamSelectLen = 3

// StreamInfoLen is the fixed size of the STREAM-INFO message.
const StreamInfoLen = 7

// BlockHeaderLen is the size of a block's length prefix.
const BlockHeaderLen = 4

// EncodeGreetings writes the 3-byte GREETINGS message: the literal 'R'
// followed by the little-endian stream count.
func EncodeGreetings(numStreams uint16, buf []byte) []byte {
	if len(buf) < GreetingsLen {
		buf = make([]byte, GreetingsLen)
	}
	buf[0] = magicR
	binary.LittleEndian.PutUint16(buf[1:3], numStreams)
	return buf[:GreetingsLen]
}

// DecodeStreamSelect parses a 3-byte STREAM-SELECT message into a stream id
// and requested FPS. It fails if fps == 0.
func DecodeStreamSelect(buf []byte) (streamID uint16, fps uint8, err error) {
	if len(buf) < StreamSelectLen {
		return 0, 0, fmt.Errorf("wire: stream-select needs %d bytes, got %d", StreamSelectLen, len(buf))
	}
	streamID = binary.LittleEndian.Uint16(buf[0:2])
	fps = buf[2]
	if fps == 0 {
		return 0, 0, ErrInvalidFPS
	}
	return streamID, fps, nil
}

// EncodeStreamSelect is the client-side encoder, used by rvclient.
func EncodeStreamSelect(streamID uint16, fps uint8, buf []byte) ([]byte, error) {
	if fps == 0 {
		return nil, ErrInvalidFPS
	}
	if len(buf) < StreamSelectLen {
		buf = make([]byte, StreamSelectLen)
	}
	binary.LittleEndian.PutUint16(buf[0:2], streamID)
	buf[2] = fps
	return buf[:StreamSelectLen], nil
}

// EncodeStreamInfo writes the 7-byte STREAM-INFO message.
func EncodeStreamInfo(info StreamInfo, buf []byte) []byte {
	if len(buf) < StreamInfoLen {
		buf = make([]byte, StreamInfoLen)
	}
	binary.LittleEndian.PutUint16(buf[0:2], info.StreamID)
	buf[2] = byte(info.Format)
	binary.LittleEndian.PutUint16(buf[3:5], info.Width)
	binary.LittleEndian.PutUint16(buf[5:7], info.Height)
	return buf[:StreamInfoLen]
}

// DecodeStreamInfo parses a 7-byte STREAM-INFO message. Used by rvclient.
func DecodeStreamInfo(buf []byte) (StreamInfo, error) {
	if len(buf) < StreamInfoLen {
		return StreamInfo{}, fmt.Errorf("wire: stream-info needs %d bytes, got %d", StreamInfoLen, len(buf))
	}
	info := StreamInfo{
		StreamID: binary.LittleEndian.Uint16(buf[0:2]),
		Format:   Format(buf[2]),
		Width:    binary.LittleEndian.Uint16(buf[3:5]),
		Height:   binary.LittleEndian.Uint16(buf[5:7]),
	}
	if !info.Format.Valid() {
		return StreamInfo{}, fmt.Errorf("%w: %d", ErrUnknownFormat, buf[2])
	}
	return info, nil
}

// EncodeBlockHeader writes the 4-byte little-endian length prefix shared by
// the metadata and picture blocks.
func EncodeBlockHeader(length uint32, buf []byte) []byte {
	if len(buf) < BlockHeaderLen {
		buf = make([]byte, BlockHeaderLen)
	}
	binary.LittleEndian.PutUint32(buf[0:4], length)
	return buf[:BlockHeaderLen]
}

// DecodeBlockHeader reads a 4-byte little-endian block length.
func DecodeBlockHeader(buf []byte) (uint32, error) {
	if len(buf) < BlockHeaderLen {
		return 0, fmt.Errorf("wire: block header needs %d bytes, got %d", BlockHeaderLen, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[0:4]), nil
}

// EncodeAck returns the single-byte ACK.
func EncodeAck() byte {
	return ackByte
}

// DecodeAck validates a received ACK byte.
func DecodeAck(b byte) error {
	if b != ackByte {
		return fmt.Errorf("%w: got 0x%02x", ErrBadAck, b)
	}
	return nil
}
