package stream

import (
	"errors"
	"io"
)

// defaultChunkSize matches a typical HTTP/1.1 body read.
const defaultChunkSize = 4096

// Decoder reads events lazily from a byte stream. It is single use: once Next
// has returned an error (io.EOF after transport close or a Done event) it
// keeps returning that error.
type Decoder struct {
	r       io.Reader
	parser  Parser
	chunk   []byte
	pending []Event
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return NewDecoderSize(r, defaultChunkSize)
}

// NewDecoderSize returns a Decoder that reads at most size bytes per read.
func NewDecoderSize(r io.Reader, size int) *Decoder {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Decoder{r: r, chunk: make([]byte, size)}
}

// Next returns the next event. It returns io.EOF once the stream has closed
// or a Done event has been returned; any other error is a transport error.
// Bytes left unterminated at close are dropped.
func (d *Decoder) Next() (Event, error) {
	for {
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			if _, ok := ev.(Done); ok {
				d.pending = nil
				d.err = io.EOF
			}
			return ev, nil
		}
		if d.err != nil {
			return nil, d.err
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.pending = d.parser.Feed(d.chunk[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.err = io.EOF
			} else {
				d.err = err
			}
			d.parser.Reset()
		}
	}
}
