// Package ioreader implements a framed reader over an asynchronous byte
// stream: it can deliver "everything up to and including the next
// occurrence of one of a set of anchor byte patterns", mirroring every
// consumed byte to a caller-supplied writer along the way.
package ioreader

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Mode controls where an anchor is allowed to match within the current
// unconsumed buffer.
type Mode int

const (
	// Anchored requires the match to start at the beginning of the current
	// line (immediately after a newline, or at the start of the stream).
	// Used when the remote process has just emitted a newline and the
	// caller expects a sentinel on the very next line.
	Anchored Mode = iota
	// Anywhere allows the match to start at any byte offset. Used after
	// interrupting mid-line, when a sentinel can appear without a
	// preceding newline.
	Anywhere
)

// Reader accumulates bytes from src and searches them for one of a set of
// anchor patterns, mirroring everything it consumes to an optional writer.
type Reader struct {
	src     io.Reader
	pending []byte
	chunk   []byte
}

// New wraps src for anchor-based reads.
func New(src io.Reader) *Reader {
	return &Reader{
		src:   src,
		chunk: make([]byte, 4096),
	}
}

// ReadUntil reads from src, mirroring every consumed byte to mirror, until
// one of anchors is found per mode. It returns the bytes preceding the
// match; mirror receives those bytes plus the matched anchor itself.
//
// If ctx is canceled before a match is found, ReadUntil returns ctx.Err().
// If src reaches EOF (or errors) before a match, ReadUntil returns the
// underlying error wrapped with context.
func (r *Reader) ReadUntil(ctx context.Context, anchors [][]byte, mode Mode, mirror io.Writer) ([]byte, error) {
	if len(anchors) == 0 {
		return nil, fmt.Errorf("ioreader: no anchors given")
	}
	maxLen := 0
	for _, a := range anchors {
		if len(a) > maxLen {
			maxLen = len(a)
		}
	}

	var out []byte
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if idx, anchorLen := find(r.pending, anchors, mode); idx >= 0 {
			matchEnd := idx + anchorLen
			out = append(out, r.pending[:idx]...)
			if mirror != nil {
				if _, err := mirror.Write(r.pending[:matchEnd]); err != nil {
					return out, fmt.Errorf("ioreader: mirror write: %w", err)
				}
			}
			r.pending = append([]byte(nil), r.pending[matchEnd:]...)
			return out, nil
		}

		if readErr != nil {
			return out, fmt.Errorf("ioreader: stream ended before anchor match: %w", readErr)
		}

		// No match yet. In Anchored mode, a fully-buffered line that
		// didn't match at offset zero never will; drain it eagerly so the
		// next line starts fresh at offset zero.
		if mode == Anchored {
			if nl := bytes.IndexByte(r.pending, '\n'); nl >= 0 {
				out = append(out, r.pending[:nl+1]...)
				if mirror != nil {
					if _, err := mirror.Write(r.pending[:nl+1]); err != nil {
						return out, fmt.Errorf("ioreader: mirror write: %w", err)
					}
				}
				r.pending = append([]byte(nil), r.pending[nl+1:]...)
				continue
			}
		} else if len(r.pending) > maxLen {
			// Anywhere mode: bytes before the last (maxLen-1) can never be
			// part of a still-incomplete match; drain them eagerly.
			drain := len(r.pending) - (maxLen - 1)
			out = append(out, r.pending[:drain]...)
			if mirror != nil {
				if _, err := mirror.Write(r.pending[:drain]); err != nil {
					return out, fmt.Errorf("ioreader: mirror write: %w", err)
				}
			}
			r.pending = append([]byte(nil), r.pending[drain:]...)
		}

		n, err := r.src.Read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			readErr = err
		}
	}
}

// find returns the earliest anchor match in buf under mode, as
// (offset, matchedAnchorLength), or (-1, 0) if no match is present.
func find(buf []byte, anchors [][]byte, mode Mode) (int, int) {
	if mode == Anchored {
		for _, a := range anchors {
			if len(a) == 0 {
				continue
			}
			if len(buf) >= len(a) && bytes.Equal(buf[:len(a)], a) {
				return 0, len(a)
			}
		}
		return -1, 0
	}

	bestIdx := -1
	bestLen := 0
	for _, a := range anchors {
		if len(a) == 0 {
			continue
		}
		if idx := bytes.Index(buf, a); idx >= 0 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				bestLen = len(a)
			}
		}
	}
	return bestIdx, bestLen
}
