package hackrf

import (
	"encoding/binary"
	"math"

	"github.com/roman-kulish/spectrum-sweep/internal/sdr"
	"github.com/roman-kulish/spectrum-sweep/internal/sdr/driver"
)

// RecordHeaderSize is the size of the frequency header of a binary record:
// two little-endian uint64 values, low and high frequency in Hz.
const RecordHeaderSize = 16

// ParseRecord decodes the payload of one `hackrf_sweep -B` record:
//
//	[uint64 LE low_freq_hz][uint64 LE high_freq_hz][N x float32 LE power]
//
// Bins are evenly spaced across [low, high) and each reading sits at the
// center of its bin.
func ParseRecord(payload []byte) (*sdr.Segment, error) {
	if len(payload) < RecordHeaderSize {
		return nil, driver.NewParseError("record too short: %d bytes", len(payload))
	}

	data := payload[RecordHeaderSize:]
	if len(data)%4 != 0 {
		return nil, driver.NewParseError("power data length %d is not a multiple of 4", len(data))
	}

	n := len(data) / 4
	if n == 0 {
		return nil, driver.NewParseError("record carries no power values")
	}

	low := binary.LittleEndian.Uint64(payload[0:8])
	high := binary.LittleEndian.Uint64(payload[8:16])
	if high <= low {
		return nil, driver.NewParseError("invalid frequency range: %d-%d", low, high)
	}

	seg := sdr.Segment{
		FrequencyLow:  float64(low),
		FrequencyHigh: float64(high),
		BinWidth:      float64(high-low) / float64(n),
		Readings:      make([]sdr.PowerReading, n),
	}

	first := seg.FrequencyLow + seg.BinWidth/2
	for k := range seg.Readings {
		power := float64(math.Float32frombits(binary.LittleEndian.Uint32(data[k*4:])))
		seg.Readings[k] = sdr.PowerReading{
			Frequency: first + float64(k)*seg.BinWidth,
			Power:     power,
			IsValid:   !math.IsNaN(power) && !math.IsInf(power, 0),
		}
	}

	return &seg, nil
}

// AppendRecord encodes a record in the `hackrf_sweep -B` wire format,
// including its length prefix, and appends it to dst.
func AppendRecord(dst []byte, low, high uint64, powers []float32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(RecordHeaderSize+4*len(powers)))
	dst = binary.LittleEndian.AppendUint64(dst, low)
	dst = binary.LittleEndian.AppendUint64(dst, high)
	for _, p := range powers {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(p))
	}
	return dst
}
