// Copyright 2026 The Halyard Authors
// SPDX-License-Identifier: Apache-2.0

package recording

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Frame is one captured inbound frame with its arrival time.
type Frame struct {
	// At is the arrival time in Unix milliseconds.
	At int64 `cbor:"1,keyasint"`
	// Data is the raw frame exactly as it came off the wire.
	Data []byte `cbor:"2,keyasint"`
}

// Time returns the arrival time as a time.Time.
func (f Frame) Time() time.Time {
	return time.UnixMilli(f.At)
}

// Writer appends frames to a zstd-compressed CBOR sequence. The wire
// is JSON because browsers speak it; on disk we keep CBOR, which
// round-trips raw bytes without base64 inflation and concatenates
// cleanly into a decode-until-EOF sequence.
type Writer struct {
	compressor *zstd.Encoder
	encoder    *cbor.Encoder
}

// NewWriter wraps w. Close flushes the compressor; without it the
// tail of the capture is lost.
func NewWriter(w io.Writer) (*Writer, error) {
	compressor, err := zstd.NewWriter(w)
	if err != nil {
		return nil, fmt.Errorf("recording: compressor: %w", err)
	}
	return &Writer{
		compressor: compressor,
		encoder:    cbor.NewEncoder(compressor),
	}, nil
}

// Append records one frame.
func (w *Writer) Append(frame Frame) error {
	if err := w.encoder.Encode(frame); err != nil {
		return fmt.Errorf("recording: append: %w", err)
	}
	return nil
}

// Close flushes buffered frames and finalizes the compressed stream.
// It does not close the underlying writer.
func (w *Writer) Close() error {
	if err := w.compressor.Close(); err != nil {
		return fmt.Errorf("recording: close: %w", err)
	}
	return nil
}

// Reader replays a capture produced by Writer.
type Reader struct {
	decompressor *zstd.Decoder
	decoder      *cbor.Decoder
}

// NewReader wraps r.
func NewReader(r io.Reader) (*Reader, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("recording: decompressor: %w", err)
	}
	return &Reader{
		decompressor: decompressor,
		decoder:      cbor.NewDecoder(decompressor),
	}, nil
}

// Next returns the next captured frame, or io.EOF at the end of the
// capture.
func (r *Reader) Next() (Frame, error) {
	var frame Frame
	err := r.decoder.Decode(&frame)
	if errors.Is(err, io.EOF) {
		return Frame{}, io.EOF
	}
	if err != nil {
		return Frame{}, fmt.Errorf("recording: next: %w", err)
	}
	return frame, nil
}

// Close releases the decompressor.
func (r *Reader) Close() {
	r.decompressor.Close()
}
