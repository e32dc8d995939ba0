package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

// NativeDecoder decodes container formats (wav, mp3, ...) to mono float PCM.
type NativeDecoder interface {
	DecodeAudio(ctx context.Context, payload []byte) (Buffer, error)
}

// Decoder tries the native decoder first and falls back to raw PCM.
type Decoder struct {
	Native NativeDecoder
	Logger *slog.Logger
}

// Decode turns a narration payload into a Buffer. When the native decoder
// rejects the payload it is read as signed 16-bit little-endian mono at
// 24 kHz. Failure of both is an ErrDecode.
func (d Decoder) Decode(ctx context.Context, payload []byte) (Buffer, error) {
	if len(payload) == 0 {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "decode narration", "empty payload", nil)
	}
	logger := logging.NewComponentLogger(d.Logger, "audio")

	var nativeErr error
	if d.Native != nil {
		buf, err := d.Native.DecodeAudio(ctx, payload)
		if err == nil && len(buf.Samples) > 0 {
			return buf, nil
		}
		if err == nil {
			err = errors.New("no samples")
		}
		if ctx.Err() != nil {
			return Buffer{}, ctx.Err()
		}
		nativeErr = err
		logger.Debug("native decode failed; trying raw pcm",
			logging.String(logging.FieldEventType, "decode_fallback"),
			logging.Error(err),
		)
	}

	buf, err := DecodePCM16(payload)
	if err != nil {
		return Buffer{}, services.Wrap(services.ErrDecode, "audio", "decode narration", "payload is neither a container nor raw pcm", errors.Join(nativeErr, err))
	}
	return buf, nil
}

// DecodePCM16 reads signed 16-bit little-endian mono at 24 kHz, scaling each
// sample by 1/32768.
func DecodePCM16(payload []byte) (Buffer, error) {
	if len(payload) == 0 {
		return Buffer{}, errors.New("pcm: empty payload")
	}
	if len(payload)%2 != 0 {
		return Buffer{}, fmt.Errorf("pcm: odd byte count %d", len(payload))
	}
	samples := make([]float32, len(payload)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(payload[i*2:]))
		samples[i] = float32(v) / 32768
	}
	return Buffer{SampleRate: PCMSampleRate, Samples: samples}, nil
}

// EncodePCM16 is the inverse of DecodePCM16, clamping to [-1, 1].
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		s = max(-1, min(1, s))
		v := int16(max(-32768, min(32767, int32(s*32768))))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
