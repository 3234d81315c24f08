package sdr

import (
	"encoding/binary"
	"math"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

// appendRecord encodes a length-prefixed record: low and high frequency as
// little-endian uint64 followed by float32 powers.
func appendRecord(dst []byte, low, high uint64, powers []float32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(16+4*len(powers)))
	dst = binary.LittleEndian.AppendUint64(dst, low)
	dst = binary.LittleEndian.AppendUint64(dst, high)
	for _, p := range powers {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p))
	}
	return dst
}

// constantPowers returns n copies of power.
func constantPowers(n int, power float32) []float32 {
	powers := make([]float32, n)
	for i := range powers {
		powers[i] = power
	}
	return powers
}

// parseRecord decodes the payload written by appendRecord.
func parseRecord(payload []byte) (*Segment, error) {
	if len(payload) < 20 || (len(payload)-16)%4 != 0 {
		return nil, driver.NewParseError("invalid record length %d", len(payload))
	}

	seg := Segment{
		FrequencyLow:  float64(binary.LittleEndian.Uint64(payload[0:8])),
		FrequencyHigh: float64(binary.LittleEndian.Uint64(payload[8:16])),
	}
	if seg.FrequencyHigh <= seg.FrequencyLow {
		return nil, driver.NewParseError("invalid frequency range")
	}

	n := (len(payload) - 16) / 4
	seg.BinWidth = (seg.FrequencyHigh - seg.FrequencyLow) / float64(n)
	seg.Readings = make([]PowerReading, n)
	for i := range seg.Readings {
		power := float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[16+4*i:])))
		seg.Readings[i] = PowerReading{
			Frequency: seg.FrequencyLow + seg.BinWidth/2 + float64(i)*seg.BinWidth,
			Power:     power,
			IsValid:   !math.IsNaN(power),
		}
	}

	return &seg, nil
}
