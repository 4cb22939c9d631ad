package media

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotPCM is returned for WAV files that are not 16-bit PCM.
var ErrNotPCM = errors.New("not a 16-bit PCM wav file")

// WAVStats summarises the samples of a PCM WAV file.
type WAVStats struct {
	SampleRate int
	Channels   int
	Samples    int64
	// Peak is the largest absolute sample value.
	Peak int
}

// IsSilent reports whether no sample rises above threshold.
func (s WAVStats) IsSilent(threshold int) bool {
	return s.Samples == 0 || s.Peak <= threshold
}

// AnalyzeWAV reads a 16-bit PCM WAV file and computes its peak level.
func AnalyzeWAV(path string) (WAVStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVStats{}, err
	}
	defer f.Close()

	return analyzeWAV(bufio.NewReader(f))
}

func analyzeWAV(r io.Reader) (WAVStats, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return WAVStats{}, fmt.Errorf("%w: short header", ErrNotPCM)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return WAVStats{}, fmt.Errorf("%w: missing RIFF/WAVE magic", ErrNotPCM)
	}

	var stats WAVStats
	haveFmt := false
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return WAVStats{}, fmt.Errorf("%w: no data chunk", ErrNotPCM)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		switch id {
		case "fmt ":
			if size < 16 {
				return WAVStats{}, fmt.Errorf("%w: fmt chunk too small", ErrNotPCM)
			}
			var fmtChunk [16]byte
			if _, err := io.ReadFull(r, fmtChunk[:]); err != nil {
				return WAVStats{}, fmt.Errorf("%w: truncated fmt chunk", ErrNotPCM)
			}
			audioFormat := binary.LittleEndian.Uint16(fmtChunk[0:2])
			bits := binary.LittleEndian.Uint16(fmtChunk[14:16])
			if audioFormat != 1 || bits != 16 {
				return WAVStats{}, ErrNotPCM
			}
			stats.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			stats.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			haveFmt = true
			if err := skip(r, size-16+size%2); err != nil {
				return WAVStats{}, err
			}

		case "data":
			if !haveFmt {
				return WAVStats{}, fmt.Errorf("%w: data before fmt", ErrNotPCM)
			}
			// ffmpeg writes 0xFFFFFFFF for unseekable output, the limit then runs to EOF
			if err := scanSamples(io.LimitReader(r, size), &stats); err != nil {
				return WAVStats{}, err
			}
			return stats, nil

		default:
			if err := skip(r, size+size%2); err != nil {
				return WAVStats{}, err
			}
		}
	}
}

func scanSamples(r io.Reader, stats *WAVStats) error {
	buf := make([]byte, 32*1024)
	var carry []byte
	for {
		n, err := r.Read(buf)
		chunk := append(carry, buf[:n]...)
		even := len(chunk) &^ 1
		for i := 0; i < even; i += 2 {
			v := int(int16(binary.LittleEndian.Uint16(chunk[i : i+2])))
			if v < 0 {
				v = -v
			}
			if v > stats.Peak {
				stats.Peak = v
			}
			stats.Samples++
		}
		carry = append(carry[:0], chunk[even:]...)

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read samples: %w", err)
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return fmt.Errorf("%w: truncated chunk", ErrNotPCM)
	}
	return nil
}
