package audio_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/voxbridge/voxbridge/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian bytes.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

// buildWAV assembles a minimal RIFF/WAVE container around the given PCM data.
func buildWAV(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	byteRate := sampleRate * channels * bitsPerSample / 8
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitsPerSample/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func TestDecode_WAVContainer(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300, 400})
	wav := buildWAV(pcm, 16000, 1, 16)

	dec := audio.Decode(wav, audio.HintAuto, 16000)
	if dec.Kind != audio.KindWAV {
		t.Fatalf("kind = %v, want KindWAV", dec.Kind)
	}
	if dec.Frame.SampleRate != 16000 || dec.Frame.Channels != 1 {
		t.Errorf("format = %dHz/%dch, want 16000Hz/1ch", dec.Frame.SampleRate, dec.Frame.Channels)
	}
	if !bytes.Equal(dec.Frame.Data, pcm) {
		t.Errorf("data mismatch: got %d bytes, want %d", len(dec.Frame.Data), len(pcm))
	}
}

func TestDecode_RawFallback(t *testing.T) {
	pcm := samplesToBytes([]int16{-5, 5, -5, 5})
	dec := audio.Decode(pcm, audio.HintAuto, 8000)
	if dec.Kind != audio.KindRaw {
		t.Fatalf("kind = %v, want KindRaw", dec.Kind)
	}
	if dec.Frame.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", dec.Frame.SampleRate)
	}
}

func TestDecode_OddLengthTruncated(t *testing.T) {
	raw := append(samplesToBytes([]int16{100, 200}), 0x7f)
	dec := audio.Decode(raw, audio.HintAuto, 16000)
	if dec.Kind != audio.KindRaw {
		t.Fatalf("kind = %v, want KindRaw", dec.Kind)
	}
	if len(dec.Frame.Data) != 4 {
		t.Errorf("data length = %d, want 4 (odd trailing byte dropped)", len(dec.Frame.Data))
	}
}

func TestDecode_EmptyAndGarbage(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x01}},
		{"wav header only", []byte("RIFF\x00\x00\x00\x00WAVE")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := audio.Decode(tc.data, audio.HintAuto, 16000)
			if dec.Kind != audio.KindNoData {
				t.Errorf("kind = %v, want KindNoData", dec.Kind)
			}
		})
	}
}

func TestDecode_PCMHintSkipsContainerSniff(t *testing.T) {
	pcm := samplesToBytes([]int16{10, 20, 30, 40})
	wav := buildWAV(pcm, 44100, 1, 16)

	// With HintPCM, even bytes that start with a valid RIFF header are
	// taken verbatim as raw samples at the supplied rate.
	dec := audio.Decode(wav, audio.HintPCM, 16000)
	if dec.Kind != audio.KindRaw {
		t.Fatalf("kind = %v, want KindRaw", dec.Kind)
	}
	if dec.Frame.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000 (container header must be ignored)", dec.Frame.SampleRate)
	}
	if len(dec.Frame.Data) != len(wav) {
		t.Errorf("data length = %d, want %d (whole buffer taken raw)", len(dec.Frame.Data), len(wav))
	}
}

func TestDecode_NonPCMWAVYieldsNoData(t *testing.T) {
	pcm := samplesToBytes([]int16{1, 2, 3})
	wav := buildWAV(pcm, 16000, 1, 16)
	// Flip the audio format field to 3 (IEEE float).
	binary.LittleEndian.PutUint16(wav[20:], 3)

	dec := audio.Decode(wav, audio.HintAuto, 16000)
	if dec.Kind != audio.KindNoData {
		t.Fatalf("kind = %v, want KindNoData for non-PCM WAV", dec.Kind)
	}
}

func TestDecode_Mulaw(t *testing.T) {
	// 0xFF is μ-law for ~0; 0x7F for ~0 with negative sign.
	dec := audio.Decode([]byte{0xff, 0x7f}, audio.HintMulaw, 0)
	if dec.Kind != audio.KindMulaw {
		t.Fatalf("kind = %v, want KindMulaw", dec.Kind)
	}
	if dec.Frame.SampleRate != 8000 {
		t.Errorf("sample rate = %d, want 8000", dec.Frame.SampleRate)
	}
	got := bytesToSamples(dec.Frame.Data)
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0] != 0 || got[1] != 0 {
		t.Errorf("silence decode = %v, want [0 0]", got)
	}
}

func TestDecodeMulaw_Extremes(t *testing.T) {
	got := bytesToSamples(audio.DecodeMulaw([]byte{0x00, 0x80}))
	if got[0] != -32124 {
		t.Errorf("0x00 = %d, want -32124", got[0])
	}
	if got[1] != 32124 {
		t.Errorf("0x80 = %d, want 32124", got[1])
	}
}

func TestNormalize_StereoWAVDownmix(t *testing.T) {
	// Stereo pairs: (100,200) and (-100,-200) → mono 150, -150.
	pcm := samplesToBytes([]int16{100, 200, -100, -200})
	wav := buildWAV(pcm, 16000, 2, 16)

	f := audio.Normalize(wav, audio.HintAuto, 16000, 16000)
	got := bytesToSamples(f.Data)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
	if f.Channels != 1 {
		t.Errorf("channels = %d, want 1", f.Channels)
	}
}

func TestNormalize_NeverPanicsOnMalformedInput(t *testing.T) {
	inputs := [][]byte{
		nil,
		{0},
		[]byte("RIFF"),
		[]byte("RIFFxxxxWAVEfmt "),
		bytes.Repeat([]byte{0xde, 0xad}, 3),
	}
	for _, in := range inputs {
		f := audio.Normalize(in, audio.HintAuto, 16000, 16000)
		if f.Channels != 1 {
			t.Errorf("channels = %d, want 1", f.Channels)
		}
	}
}

func TestStereoToMono_Clamping(t *testing.T) {
	stereo := samplesToBytes([]int16{32767, 32767})
	got := bytesToSamples(audio.StereoToMono(stereo))
	if len(got) != 1 || got[0] != 32767 {
		t.Fatalf("got %v, want [32767]", got)
	}
}

func TestResampleMono16_PreservesDuration(t *testing.T) {
	cases := []struct {
		name             string
		srcRate, dstRate int
		srcSamples       int
	}{
		{"8k to 48k", 8000, 48000, 160},
		{"16k to 48k", 16000, 48000, 320},
		{"48k to 16k", 48000, 16000, 960},
		{"same rate", 16000, 16000, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := make([]int16, tc.srcSamples)
			for i := range src {
				src[i] = int16(i % 1000)
			}
			out := audio.ResampleMono16(samplesToBytes(src), tc.srcRate, tc.dstRate)
			got := len(out) / 2
			want := tc.srcSamples * tc.dstRate / tc.srcRate
			if got != want {
				t.Errorf("output samples = %d, want %d", got, want)
			}
		})
	}
}

func TestEncodeForSink_RoundTripSampleCount(t *testing.T) {
	// normalize at 16k then encode for the 48k sink: sample count must
	// scale by exactly 3 (within resampling truncation tolerance of 1).
	pcm := samplesToBytes(make([]int16, 320))
	f := audio.Normalize(pcm, audio.HintAuto, 16000, 16000)
	sink := audio.EncodeForSink(f, 48000, 1)

	got := sink.Samples()
	want := f.Samples() * 3
	if got < want-1 || got > want+1 {
		t.Errorf("sink samples = %d, want ~%d", got, want)
	}
	if sink.SampleRate != 48000 || sink.Channels != 1 {
		t.Errorf("sink format = %dHz/%dch, want 48000Hz/1ch", sink.SampleRate, sink.Channels)
	}
}

func TestEncodeForSink_MatchingRatePreservesSamples(t *testing.T) {
	pcm := samplesToBytes(make([]int16, 160))
	f := audio.Normalize(pcm, audio.HintAuto, 48000, 48000)
	sink := audio.EncodeForSink(f, 48000, 1)
	if sink.Samples() != f.Samples() {
		t.Errorf("sample count changed: got %d, want %d", sink.Samples(), f.Samples())
	}
}
