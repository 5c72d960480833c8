package audio

import "encoding/binary"

// wavHeaderLen is the minimum byte count for a RIFF header plus one chunk header.
const wavHeaderLen = 12

// decodeWAV attempts to parse data as a RIFF/WAVE container holding 16-bit
// linear PCM. It returns ok == false when the buffer is not a WAV container at
// all, letting the caller fall back to raw-PCM interpretation. A container
// that is recognisably WAV but carries an unsupported encoding yields an empty
// Frame with ok == true: re-reading compressed bytes as raw PCM would produce
// noise, not signal.
func decodeWAV(data []byte) (Frame, bool) {
	if len(data) < wavHeaderLen {
		return Frame{}, false
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Frame{}, false
	}

	var (
		sampleRate    int
		channels      int
		bitsPerSample int
		pcm           []byte
		haveFmt       bool
	)

	// Walk the chunk list. Chunks are word-aligned; a truncated trailing
	// chunk ends the walk rather than failing the whole decode.
	off := wavHeaderLen
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if size < 0 || body > len(data) {
			break
		}
		end := body + size
		if end > len(data) {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return Frame{}, true
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			// 1 = integer PCM. Anything else (float, ADPCM, μ-law-in-WAV)
			// is out of scope for this pipeline.
			if format != 1 {
				return Frame{}, true
			}
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		off = body + size
		if size%2 == 1 {
			off++ // chunk padding byte
		}
	}

	if !haveFmt || bitsPerSample != 16 || channels < 1 || channels > 2 || sampleRate <= 0 {
		return Frame{}, true
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	return Frame{Data: pcm, SampleRate: sampleRate, Channels: channels}, true
}
