package recording

import (
	"bytes"
	"encoding/binary"
)

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

const wavHeaderSize = 44

// encodeWAV concatenates PCM chunks behind a canonical 44-byte header.
func encodeWAV(chunks [][]byte, f Format) []byte {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}

	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + size),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.BytesPerSecond()),
		BlockAlign:    uint16(f.Channels * 2),
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(size),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+size))
	// writes to a bytes.Buffer cannot fail
	_ = binary.Write(buf, binary.LittleEndian, h)
	for _, c := range chunks {
		buf.Write(c)
	}
	return buf.Bytes()
}
