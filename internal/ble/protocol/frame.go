package protocol

import (
	"errors"
	"fmt"
)

// ErrFraming matches every *FramingError via errors.Is.
var ErrFraming = errors.New("protocol: invalid frame")

// FramingErrorKind identifies which structural check a frame failed.
type FramingErrorKind int

const (
	TooShort FramingErrorKind = iota + 1
	BadHeader
	BadType
	BadLength
	BadChecksum
	BadFooter
)

func (k FramingErrorKind) String() string {
	switch k {
	case TooShort:
		return "TooShort"
	case BadHeader:
		return "BadHeader"
	case BadType:
		return "BadType"
	case BadLength:
		return "BadLength"
	case BadChecksum:
		return "BadChecksum"
	case BadFooter:
		return "BadFooter"
	default:
		return fmt.Sprintf("FramingErrorKind(%d)", int(k))
	}
}

// FramingError reports the first failed structural check of a frame,
// with the observed and expected values of the offending field.
type FramingError struct {
	Kind FramingErrorKind
	Got  int
	Want int
}

func (e *FramingError) Error() string {
	switch e.Kind {
	case TooShort:
		return fmt.Sprintf("protocol: message too short: got %d bytes, expected at least %d", e.Got, e.Want)
	case BadHeader:
		return fmt.Sprintf("protocol: unknown message header %d, expected %d", e.Got, e.Want)
	case BadType:
		return fmt.Sprintf("protocol: unknown message type %02x, expected %02x or %02x", e.Got, RequestType, ResponseType)
	case BadLength:
		return fmt.Sprintf("protocol: incorrect message length %d, expected %d", e.Got, e.Want)
	case BadChecksum:
		return fmt.Sprintf("protocol: invalid checksum %d, calculated %d", e.Got, e.Want)
	case BadFooter:
		return fmt.Sprintf("protocol: invalid footer %d, expected %d", e.Got, e.Want)
	default:
		return fmt.Sprintf("protocol: invalid frame (%s)", e.Kind)
	}
}

func (e *FramingError) Is(target error) bool {
	return target == ErrFraming
}

// Checksum XOR-folds data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}
	return sum
}

// ChecksumMessage computes the checksum of a complete frame, covering the
// length byte through the last payload byte. msg must be at least
// MinMessageLength bytes long.
func ChecksumMessage(msg []byte) byte {
	return Checksum(msg[2 : len(msg)-2])
}

// BuildMessage frames payload as a request:
//
//	AB AA LEN payload... CHK 55
//
// where LEN is len(payload)+2 and CHK covers LEN and the payload.
func BuildMessage(payload []byte) []byte {
	msg := make([]byte, 0, len(payload)+5)
	msg = append(msg, Header, RequestType, byte(len(payload)+2))
	msg = append(msg, payload...)
	msg = append(msg, Checksum(msg[2:]), Footer)
	return msg
}

// BuildCommand frames an opcode and its optional parameter bytes.
func BuildCommand(op Opcode, param ...byte) []byte {
	payload := make([]byte, 0, len(param)+1)
	payload = append(payload, byte(op))
	payload = append(payload, param...)
	return BuildMessage(payload)
}

// ValidateMessage runs the structural checks on a frame in a fixed order
// and returns a *FramingError for the first one that fails.
func ValidateMessage(msg []byte) error {
	if len(msg) < MinMessageLength {
		return &FramingError{Kind: TooShort, Got: len(msg), Want: MinMessageLength}
	}
	if msg[0] != Header {
		return &FramingError{Kind: BadHeader, Got: int(msg[0]), Want: int(Header)}
	}
	if msg[1] != RequestType && msg[1] != ResponseType {
		return &FramingError{Kind: BadType, Got: int(msg[1])}
	}
	if int(msg[2]) != len(msg)-3 {
		return &FramingError{Kind: BadLength, Got: len(msg), Want: int(msg[2]) + 3}
	}
	if sum := ChecksumMessage(msg); msg[len(msg)-2] != sum {
		return &FramingError{Kind: BadChecksum, Got: int(msg[len(msg)-2]), Want: int(sum)}
	}
	if msg[len(msg)-1] != Footer {
		return &FramingError{Kind: BadFooter, Got: int(msg[len(msg)-1]), Want: int(Footer)}
	}
	return nil
}

// Payload strips framing and the opcode from a validated response,
// returning the data bytes the parsers operate on.
func Payload(resp []byte) []byte {
	if len(resp) < MinMessageLength {
		return nil
	}
	return resp[4 : len(resp)-2]
}

// FrameOpcode returns the opcode byte of a validated frame.
func FrameOpcode(msg []byte) Opcode {
	return Opcode(msg[3])
}
