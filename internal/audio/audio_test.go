package audio

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"reelsmith/internal/services"
)

type stubNative struct {
	buf Buffer
	err error
}

func (s stubNative) DecodeAudio(context.Context, []byte) (Buffer, error) { return s.buf, s.err }

func TestDecodePCM16Duration(t *testing.T) {
	payload := make([]byte, 2*PCMSampleRate*3)
	buf, err := DecodePCM16(payload)
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	if buf.SampleRate != PCMSampleRate || len(buf.Samples) != PCMSampleRate*3 {
		t.Fatalf("unexpected buffer rate=%d n=%d", buf.SampleRate, len(buf.Samples))
	}
	if buf.Duration() != 3*time.Second || buf.Seconds() != 3 {
		t.Fatalf("duration = %v", buf.Duration())
	}
}

func TestDecodePCM16Scaling(t *testing.T) {
	buf, err := DecodePCM16([]byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x40})
	if err != nil {
		t.Fatalf("DecodePCM16: %v", err)
	}
	want := []float32{-1, 32767.0 / 32768, 0.5}
	for i := range want {
		if buf.Samples[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, buf.Samples[i], want[i])
		}
	}
}

func TestDecoderFallsBackToPCM(t *testing.T) {
	d := Decoder{Native: stubNative{err: errors.New("invalid data")}}
	buf, err := d.Decode(context.Background(), EncodePCM16([]float32{0, 0.5, -0.5, 0}))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.SampleRate != PCMSampleRate || len(buf.Samples) != 4 || buf.Samples[1] != 0.5 {
		t.Fatalf("unexpected fallback buffer %+v", buf)
	}
}

func TestDecoderPrefersNative(t *testing.T) {
	native := Buffer{SampleRate: 48000, Samples: []float32{0.1}}
	d := Decoder{Native: stubNative{buf: native}}
	buf, err := d.Decode(context.Background(), []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.SampleRate != 48000 {
		t.Fatalf("expected native buffer, got %+v", buf)
	}
}

func TestDecoderFailsWhenBothFail(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", nil},
		{"odd length", []byte{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decoder{Native: stubNative{err: errors.New("bad")}}
			_, err := d.Decode(context.Background(), tt.payload)
			if !errors.Is(err, services.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestWhooshEnvelope(t *testing.T) {
	const rate = 48000
	buf := Whoosh(rate, rand.New(rand.NewPCG(1, 2)))
	if len(buf.Samples) != int(WhooshSeconds*rate) {
		t.Fatalf("length = %d", len(buf.Samples))
	}
	for i, s := range buf.Samples {
		bound := math.Exp(-6*float64(i)/rate) + 1e-6
		if math.Abs(float64(s)) > bound {
			t.Fatalf("sample %d = %v exceeds envelope %v", i, s, bound)
		}
	}
}

func TestResampleLinear(t *testing.T) {
	src := Buffer{SampleRate: 24000, Samples: []float32{0, 1, 0, -1}}
	out := Resample(src, 48000)
	if out.SampleRate != 48000 || len(out.Samples) != 8 {
		t.Fatalf("unexpected resample %+v", out)
	}
	if out.Samples[1] != 0.5 || out.Samples[2] != 1 {
		t.Fatalf("interpolation wrong: %v", out.Samples)
	}
	if math.Abs(out.Seconds()-src.Seconds()) > 1e-9 {
		t.Fatalf("duration changed: %v vs %v", out.Seconds(), src.Seconds())
	}
}
