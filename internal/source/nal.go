package source

import (
	"bufio"
	"errors"
	"io"

	"github.com/pion/webrtc/v3/pkg/media/h264reader"
)

// nalSource yields NAL unit payloads without start codes.
type nalSource interface {
	next() ([]byte, error)
}

type h264NALs struct {
	reader *h264reader.H264Reader
}

func (h h264NALs) next() ([]byte, error) {
	nal, err := h.reader.NextNAL()
	if err != nil {
		return nil, err
	}
	return nal.Data, nil
}

// annexBScanner splits an H.265 byte stream on start codes. h264reader parses
// every header as H.264 and discards what it takes for SEI, which would drop
// H.265 IDR_W_RADL slices.
type annexBScanner struct {
	r       *bufio.Reader
	started bool
	zeros   int
	buf     []byte
}

func newAnnexBScanner(r io.Reader) *annexBScanner {
	return &annexBScanner{r: bufio.NewReader(r)}
}

func (s *annexBScanner) next() ([]byte, error) {
	for {
		b, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			if !s.started {
				return nil, errors.New("stream does not start with an annex-b start code")
			}
			// Trailing zero bytes are stream padding.
			nal := s.buf
			s.buf = nil
			s.zeros = 0
			if len(nal) == 0 {
				return nil, io.EOF
			}
			return nal, nil
		}
		if err != nil {
			return nil, err
		}
		switch {
		case b == 0:
			s.zeros++
		case b == 1 && s.zeros >= 2:
			nal := s.buf
			s.buf = nil
			s.zeros = 0
			if !s.started {
				s.started = true
				continue
			}
			if len(nal) > 0 {
				return nal, nil
			}
		default:
			for ; s.zeros > 0; s.zeros-- {
				s.buf = append(s.buf, 0)
			}
			s.buf = append(s.buf, b)
		}
	}
}
