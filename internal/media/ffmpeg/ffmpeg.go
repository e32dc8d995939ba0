package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"reelsmith/internal/audio"
)

// Runner invokes ffmpeg for decode and extraction jobs.
type Runner struct {
	Binary     string
	SampleRate int
}

// NewRunner returns a runner producing audio at sampleRate.
func NewRunner(binary string, sampleRate int) Runner {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return Runner{Binary: binary, SampleRate: sampleRate}
}

func (r Runner) baseArgs() []string {
	return []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
}

// DecodeAudio decodes an in-memory container (wav, mp3, ogg, ...) to mono
// float PCM at the runner's rate. It satisfies audio.NativeDecoder.
func (r Runner) DecodeAudio(ctx context.Context, payload []byte) (audio.Buffer, error) {
	if len(payload) == 0 {
		return audio.Buffer{}, errors.New("ffmpeg decode: empty payload")
	}
	args := append(r.baseArgs()[1:], "-i", "pipe:0")
	args = append(args, r.pcmOutputArgs()...)
	cmd := exec.CommandContext(ctx, r.Binary, args...) //nolint:gosec
	cmd.Stdin = bytes.NewReader(payload)
	return r.runPCM(cmd, "ffmpeg decode")
}

// ExtractAudio decodes the first audio stream of source to mono float PCM.
func (r Runner) ExtractAudio(ctx context.Context, source string) (audio.Buffer, error) {
	if strings.TrimSpace(source) == "" {
		return audio.Buffer{}, errors.New("ffmpeg extract audio: empty source")
	}
	args := append(r.baseArgs(), "-i", source, "-map", "0:a:0")
	args = append(args, r.pcmOutputArgs()...)
	cmd := exec.CommandContext(ctx, r.Binary, args...) //nolint:gosec
	return r.runPCM(cmd, "ffmpeg extract audio")
}

// ExtractTranscriptionAudio writes the first audio stream of source to dest
// as mono 16 kHz WAV, the format transcription endpoints accept everywhere.
func (r Runner) ExtractTranscriptionAudio(ctx context.Context, source, dest string) error {
	args := append(r.baseArgs(),
		"-y",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
	cmd := exec.CommandContext(ctx, r.Binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract transcription audio: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (r Runner) pcmOutputArgs() []string {
	rate := r.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	return []string{"-vn", "-sn", "-dn", "-ac", "1", "-ar", strconv.Itoa(rate), "-f", "f32le", "pipe:1"}
}

func (r Runner) runPCM(cmd *exec.Cmd, op string) (audio.Buffer, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return audio.Buffer{}, fmt.Errorf("%s: %w: %s", op, err, strings.TrimSpace(stderr.String()))
	}
	samples, err := DecodeF32LE(stdout.Bytes())
	if err != nil {
		return audio.Buffer{}, fmt.Errorf("%s: %w", op, err)
	}
	if len(samples) == 0 {
		return audio.Buffer{}, fmt.Errorf("%s: no samples decoded", op)
	}
	rate := r.SampleRate
	if rate <= 0 {
		rate = 48000
	}
	return audio.Buffer{SampleRate: rate, Samples: samples}, nil
}

// DecodeF32LE converts little-endian float32 bytes to samples.
func DecodeF32LE(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("f32le: %d bytes is not a whole number of samples", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// EncodeF32LE appends samples to dst as little-endian float32 bytes.
func EncodeF32LE(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
