package sdr

import "io"

// ReadHandlerStream runs the stream reader with h's framing and decoder.
func ReadHandlerStream(r io.Reader, h Handler, a *Assembler) (Stats, error) {
	var st stats
	err := readStream(r, h.Protocol(), h.Parse, a, &st, discardLogger)
	return st.snapshot(), err
}
