package zkvm

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	xerrors "PQ-Bitcoin/internal/errors"
)

// CodeInputStream marks a guest read that does not match the input stream.
const CodeInputStream xerrors.Code = "INPUT_STREAM_ERROR"

func init() {
	xerrors.Register(CodeInputStream, xerrors.Attributes{
		Message:  "input stream does not match program",
		Severity: xerrors.SeverityInfo,
	})
}

const (
	u32FrameSize    = 4
	lengthPrefixLen = 8
)

// Stdin is the ordered list of frames handed to a guest program. Each Write
// appends exactly one frame; the guest must read them back in the same order.
type Stdin struct {
	Buffers [][]byte
}

// NewStdin returns an empty input stream.
func NewStdin() *Stdin {
	return &Stdin{}
}

// WriteU32 appends v as four little-endian bytes.
func (s *Stdin) WriteU32(v uint32) {
	frame := make([]byte, u32FrameSize)
	binary.LittleEndian.PutUint32(frame, v)
	s.Buffers = append(s.Buffers, frame)
}

// WriteBytes appends b as an eight-byte little-endian length followed by b.
func (s *Stdin) WriteBytes(b []byte) {
	frame := make([]byte, lengthPrefixLen+len(b))
	binary.LittleEndian.PutUint64(frame, uint64(len(b)))
	copy(frame[lengthPrefixLen:], b)
	s.Buffers = append(s.Buffers, frame)
}

// Len returns the number of frames.
func (s *Stdin) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Buffers)
}

// Size returns the total number of bytes across all frames.
func (s *Stdin) Size() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, b := range s.Buffers {
		total += len(b)
	}
	return total
}

// Clone returns a deep copy.
func (s *Stdin) Clone() *Stdin {
	if s == nil {
		return nil
	}
	out := &Stdin{Buffers: make([][]byte, len(s.Buffers))}
	for i, b := range s.Buffers {
		out.Buffers[i] = bytes.Clone(b)
	}
	return out
}

// Reader returns a cursor over the frames.
func (s *Stdin) Reader() *Reader {
	if s == nil {
		return &Reader{}
	}
	return &Reader{frames: s.Buffers}
}

// MarshalJSON encodes the frames as an array of 0x-prefixed hex strings.
func (s Stdin) MarshalJSON() ([]byte, error) {
	frames := make([]hexutil.Bytes, len(s.Buffers))
	for i, b := range s.Buffers {
		frames[i] = b
	}
	return json.Marshal(frames)
}

// UnmarshalJSON decodes an array of hex strings.
func (s *Stdin) UnmarshalJSON(data []byte) error {
	var frames []hexutil.Bytes
	if err := json.Unmarshal(data, &frames); err != nil {
		return err
	}
	s.Buffers = make([][]byte, len(frames))
	for i, f := range frames {
		s.Buffers[i] = []byte(f)
	}
	return nil
}

// Reader hands frames to a guest in order.
type Reader struct {
	frames    [][]byte
	pos       int
	bytesRead int
}

// ReadU32 consumes a four-byte frame.
func (r *Reader) ReadU32() (uint32, error) {
	frame, err := r.next("u32")
	if err != nil {
		return 0, err
	}
	if len(frame) != u32FrameSize {
		return 0, r.frameError("u32", "frame is not 4 bytes")
	}
	return binary.LittleEndian.Uint32(frame), nil
}

// ReadBytes consumes a length-prefixed byte frame.
func (r *Reader) ReadBytes() ([]byte, error) {
	frame, err := r.next("bytes")
	if err != nil {
		return nil, err
	}
	if len(frame) < lengthPrefixLen {
		return nil, r.frameError("bytes", "frame is shorter than its length prefix")
	}
	n := binary.LittleEndian.Uint64(frame)
	if n != uint64(len(frame)-lengthPrefixLen) {
		return nil, r.frameError("bytes", "length prefix does not match frame")
	}
	return bytes.Clone(frame[lengthPrefixLen:]), nil
}

// Consumed returns the number of frames read so far.
func (r *Reader) Consumed() int { return r.pos }

// BytesRead returns the number of bytes read so far.
func (r *Reader) BytesRead() int { return r.bytesRead }

// Remaining returns the number of unread frames.
func (r *Reader) Remaining() int { return len(r.frames) - r.pos }

func (r *Reader) next(kind string) ([]byte, error) {
	if r.pos >= len(r.frames) {
		return nil, xerrors.New(CodeInputStream, "input stream exhausted",
			xerrors.WithMetadata("kind", kind))
	}
	frame := r.frames[r.pos]
	r.pos++
	r.bytesRead += len(frame)
	return frame, nil
}

func (r *Reader) frameError(kind, reason string) error {
	return xerrors.New(CodeInputStream, reason, xerrors.WithMetadata("kind", kind))
}
