// Package audio normalizes opaque audio buffers into the linear PCM formats
// required by each leg of the call pipeline.
//
// Input buffers may be WAV containers, raw little-endian int16 PCM, or G.711
// μ-law (what Twilio Media Streams deliver). Detection is a normal branch, not
// an exceptional path: a buffer that cannot be interpreted yields an empty
// Frame, never an error. Every Frame leaving Normalize or EncodeForSink is
// 16-bit linear PCM at the requested rate and channel count.
package audio

// Frame is a transient buffer of 16-bit little-endian PCM samples plus the
// metadata needed to interpret it. Frames are values passed between pipeline
// stages; they are never persisted by this package.
type Frame struct {
	// Data holds interleaved little-endian int16 samples.
	Data []byte

	// SampleRate in Hz (e.g., 8000 for telephony μ-law, 16000 for STT,
	// 48000 for the media room sink).
	SampleRate int

	// Channels is the interleaved channel count. 1 or 2.
	Channels int
}

// Empty reports whether the frame carries no samples.
func (f Frame) Empty() bool { return len(f.Data) < 2 }

// Samples returns the number of per-channel sample frames in the buffer.
func (f Frame) Samples() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Data) / 2 / f.Channels
}

// Hint tells Decode how to interpret a buffer that has no self-describing
// container header.
type Hint int

const (
	// HintAuto tries a WAV container first, then falls back to raw int16 PCM.
	HintAuto Hint = iota

	// HintMulaw interprets headerless data as 8 kHz G.711 μ-law.
	HintMulaw

	// HintPCM interprets headerless data as raw int16 PCM at the rate
	// supplied to Decode.
	HintPCM
)

// Kind identifies which interpretation of the input bytes succeeded.
type Kind int

const (
	// KindNoData means no interpretation yielded a usable signal.
	KindNoData Kind = iota

	// KindWAV means a valid RIFF/WAVE container was decoded.
	KindWAV

	// KindRaw means the bytes were taken as headerless int16 PCM.
	KindRaw

	// KindMulaw means the bytes were expanded from G.711 μ-law.
	KindMulaw
)

// Decoded pairs a decode outcome with the resulting PCM frame.
type Decoded struct {
	Kind  Kind
	Frame Frame
}

// telephonyRate is the sample rate of G.711 μ-law streams.
const telephonyRate = 8000

// Decode interprets data according to hint. rawRate is the sample rate assumed
// for headerless PCM input; WAV input carries its own rate and μ-law is always
// 8 kHz. Malformed input yields a Decoded with Kind == KindNoData.
func Decode(data []byte, hint Hint, rawRate int) Decoded {
	if len(data) == 0 {
		return Decoded{Kind: KindNoData}
	}

	if hint == HintMulaw {
		return Decoded{
			Kind: KindMulaw,
			Frame: Frame{
				Data:       DecodeMulaw(data),
				SampleRate: telephonyRate,
				Channels:   1,
			},
		}
	}

	// Container-aware path: absence of a valid header is a format hint,
	// not an error. HintPCM skips the sniff so PCM that happens to start
	// with RIFF bytes is not misread as a container.
	if hint != HintPCM {
		if f, ok := decodeWAV(data); ok {
			if f.Empty() {
				return Decoded{Kind: KindNoData}
			}
			return Decoded{Kind: KindWAV, Frame: f}
		}
	}

	// Raw PCM fallback. Odd-length buffers are truncated by one trailing
	// byte rather than rejected.
	pcm := data
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	if len(pcm) < 2 {
		return Decoded{Kind: KindNoData}
	}
	return Decoded{
		Kind: KindRaw,
		Frame: Frame{
			Data:       pcm,
			SampleRate: rawRate,
			Channels:   1,
		},
	}
}

// Normalize decodes data and converts it to mono 16-bit PCM at targetRate.
// An uninterpretable buffer yields an empty Frame; the caller decides whether
// empty audio is fatal to the turn.
func Normalize(data []byte, hint Hint, rawRate, targetRate int) Frame {
	dec := Decode(data, hint, rawRate)
	if dec.Kind == KindNoData {
		return Frame{SampleRate: targetRate, Channels: 1}
	}
	return convert(dec.Frame, targetRate, 1)
}

// EncodeForSink converts an already-normalized PCM frame to the format the
// outbound sink expects. The source and sink legs may require different rates.
func EncodeForSink(f Frame, targetRate, targetChannels int) Frame {
	if f.Empty() {
		return Frame{SampleRate: targetRate, Channels: targetChannels}
	}
	if targetChannels != 2 {
		targetChannels = 1
	}
	return convert(f, targetRate, targetChannels)
}

// convert resamples first, then adjusts the channel count. Resampling before
// downmix would waste work on the discarded channel, so downmix happens first
// when the source is stereo.
func convert(f Frame, targetRate, targetChannels int) Frame {
	pcm := f.Data
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}
	channels := f.Channels

	if channels == 2 && targetChannels == 1 {
		pcm = StereoToMono(pcm)
		channels = 1
	}
	if f.SampleRate != targetRate && f.SampleRate > 0 && targetRate > 0 {
		pcm = ResampleMono16(pcm, f.SampleRate, targetRate)
	}
	if channels == 1 && targetChannels == 2 {
		pcm = MonoToStereo(pcm)
		channels = 2
	}

	return Frame{Data: pcm, SampleRate: targetRate, Channels: channels}
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// Uses int32 arithmetic to prevent overflow and clamps to int16 range.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2

		if avg > 32767 {
			avg = 32767
		} else if avg < -32768 {
			avg = -32768
		}

		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		lo, hi := pcm[i], pcm[i+1]
		j := i * 2
		out[j] = lo
		out[j+1] = hi
		out[j+2] = lo
		out[j+3] = hi
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation, preserving duration. If srcRate == dstRate, the input
// is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 {
		return pcm
	}
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcSamples := len(pcm) / 2
	dstSamples := int(int64(srcSamples) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]byte, dstSamples*2)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		s0 := int16(pcm[srcIdx*2]) | int16(pcm[srcIdx*2+1])<<8
		var s1 int16
		if srcIdx+1 < srcSamples {
			s1 = int16(pcm[(srcIdx+1)*2]) | int16(pcm[(srcIdx+1)*2+1])<<8
		} else {
			s1 = s0
		}

		interpolated := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(interpolated)
		out[i*2+1] = byte(interpolated >> 8)
	}
	return out
}

// DecodeMulaw expands G.711 μ-law bytes to little-endian int16 PCM.
func DecodeMulaw(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, u := range data {
		s := mulawSample(u)
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// mulawSample expands a single μ-law byte per ITU-T G.711.
func mulawSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0F
	magnitude := ((int32(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return int16(-magnitude)
	}
	return int16(magnitude)
}
