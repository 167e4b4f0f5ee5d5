package source

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"

	"vidbridge/internal/engine"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// Reader groups the NAL units of an Annex-B stream into access units.
type Reader struct {
	codec    engine.Codec
	nals     nalSource
	duration time.Duration

	carry   []byte
	hasVCL  bool
	current []byte
	done    bool
}

// NewReader reads an Annex-B stream of the given codec. fps sets the sample
// duration; zero leaves it unset.
func NewReader(r io.Reader, codec engine.Codec, fps int) (*Reader, error) {
	if !codec.Valid() {
		return nil, fmt.Errorf("source: unsupported %s", codec)
	}
	var nals nalSource
	if codec == engine.CodecH265 {
		nals = newAnnexBScanner(r)
	} else {
		h264, err := h264reader.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		nals = h264NALs{reader: h264}
	}
	reader := &Reader{codec: codec, nals: nals}
	if fps > 0 {
		reader.duration = time.Second / time.Duration(fps)
	}
	return reader, nil
}

// Next returns the next access unit, start codes included, or io.EOF.
func (r *Reader) Next() (media.Sample, error) {
	if r.done {
		return media.Sample{}, io.EOF
	}
	if r.carry != nil {
		r.appendNAL(r.carry)
		r.carry = nil
	}
	for {
		nal, err := r.nals.next()
		if errors.Is(err, io.EOF) {
			r.done = true
			if len(r.current) == 0 {
				return media.Sample{}, io.EOF
			}
			return r.flush(), nil
		}
		if err != nil {
			return media.Sample{}, fmt.Errorf("source: read nal: %w", err)
		}
		if len(nal) == 0 {
			continue
		}
		if len(r.current) > 0 && r.startsAccessUnit(nal) {
			r.carry = append([]byte(nil), nal...)
			return r.flush(), nil
		}
		r.appendNAL(nal)
	}
}

func (r *Reader) appendNAL(data []byte) {
	r.current = append(r.current, startCode...)
	r.current = append(r.current, data...)
	if r.isVCL(data) {
		r.hasVCL = true
	}
}

func (r *Reader) flush() media.Sample {
	sample := media.Sample{Data: r.current, Duration: r.duration}
	r.current = nil
	r.hasVCL = false
	return sample
}

// startsAccessUnit reports whether nal opens a new access unit given what has
// been collected so far.
func (r *Reader) startsAccessUnit(nal []byte) bool {
	if r.codec == engine.CodecH265 {
		return r.startsH265(nal)
	}
	return r.startsH264(nal)
}

func (r *Reader) startsH264(nal []byte) bool {
	switch nal[0] & 0x1f {
	case 9: // access unit delimiter
		return true
	case 6, 7, 8, 13, 14, 15:
		return r.hasVCL
	case 1, 2, 5:
		// first_mb_in_slice == 0 is coded as a single set bit.
		return r.hasVCL && len(nal) > 1 && nal[1]&0x80 != 0
	default:
		return false
	}
}

func (r *Reader) startsH265(nal []byte) bool {
	typ := (nal[0] >> 1) & 0x3f
	switch {
	case typ == 35: // access unit delimiter
		return true
	case typ >= 32 && typ <= 34, typ == 39, typ >= 41 && typ <= 44:
		return r.hasVCL
	case typ <= 31:
		// first_slice_segment_in_pic_flag follows the two-byte header.
		return r.hasVCL && len(nal) > 2 && nal[2]&0x80 != 0
	default:
		return false
	}
}

func (r *Reader) isVCL(nal []byte) bool {
	if r.codec == engine.CodecH265 {
		return (nal[0]>>1)&0x3f <= 31
	}
	switch nal[0] & 0x1f {
	case 1, 2, 3, 4, 5:
		return true
	default:
		return false
	}
}

// ReadAll collects every access unit from r.
func ReadAll(r *Reader) ([][]byte, error) {
	var units [][]byte
	for {
		sample, err := r.Next()
		if errors.Is(err, io.EOF) {
			return units, nil
		}
		if err != nil {
			return units, err
		}
		units = append(units, sample.Data)
	}
}
