package app

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleBuffer is a ring of 16-bit little endian stereo frames. The
// emulator pushes samples into it and the audio player reads them from its
// own goroutine.
type SampleBuffer struct {
	mu    sync.Mutex
	data  []byte
	start int
	size  int

	dropped int
}

const bytesPerFrame = 4

// NewSampleBuffer holds up to frames stereo frames.
func NewSampleBuffer(frames int) *SampleBuffer {
	if frames < 1 {
		frames = 1
	}
	return &SampleBuffer{data: make([]byte, frames*bytesPerFrame)}
}

// Push appends one stereo frame, dropping the oldest when full.
func (b *SampleBuffer) Push(left, right float32) {
	var frame [bytesPerFrame]byte
	binary.LittleEndian.PutUint16(frame[0:], uint16(int16(toPCM16(left))))
	binary.LittleEndian.PutUint16(frame[2:], uint16(int16(toPCM16(right))))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == len(b.data) {
		b.start = (b.start + bytesPerFrame) % len(b.data)
		b.size -= bytesPerFrame
		b.dropped++
	}
	end := (b.start + b.size) % len(b.data)
	copy(b.data[end:], frame[:])
	b.size += bytesPerFrame
}

// Read implements io.Reader. It never blocks: once the buffered frames
// run out the rest of p is filled with silence.
func (b *SampleBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := min(b.size, len(p)&^(bytesPerFrame-1))
	for copied := 0; copied < n; {
		chunk := copy(p[copied:n], b.data[b.start:min(len(b.data), b.start+n-copied)])
		copied += chunk
		b.start = (b.start + chunk) % len(b.data)
	}
	b.size -= n
	clear(p[n:])
	return len(p), nil
}

// Buffered is the number of frames waiting to be read.
func (b *SampleBuffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size / bytesPerFrame
}

// Dropped counts frames discarded because the reader fell behind.
func (b *SampleBuffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// AudioOutput plays console samples through Ebitengine.
type AudioOutput struct {
	buffer *SampleBuffer
	player *audio.Player
}

// NewAudioOutput starts a player at sampleRate. Ebitengine allows one
// audio context per process, so every output must use the same rate.
func NewAudioOutput(sampleRate int, latency time.Duration, volume float64) (*AudioOutput, error) {
	ctx := audio.CurrentContext()
	if ctx == nil {
		ctx = audio.NewContext(sampleRate)
	} else if ctx.SampleRate() != sampleRate {
		return nil, fmt.Errorf("audio context already running at %d Hz", ctx.SampleRate())
	}

	// A quarter second of headroom before frames are dropped.
	buffer := NewSampleBuffer(sampleRate / 4)
	player, err := ctx.NewPlayer(buffer)
	if err != nil {
		return nil, fmt.Errorf("create audio player: %w", err)
	}
	player.SetBufferSize(latency)
	player.SetVolume(volume)
	player.Play()

	glog.V(1).Infof("[AUDIO] playing at %d Hz, latency %v", sampleRate, latency)
	return &AudioOutput{buffer: buffer, player: player}, nil
}

// Push queues one stereo sample for playback.
func (o *AudioOutput) Push(left, right float32) {
	o.buffer.Push(left, right)
}

// Close stops playback.
func (o *AudioOutput) Close() error {
	if dropped := o.buffer.Dropped(); dropped > 0 {
		glog.V(1).Infof("[AUDIO] %d sample frames dropped", dropped)
	}
	return o.player.Close()
}

// toPCM16 scales a sample in [-1, 1] to a signed 16-bit value.
func toPCM16(v float32) int {
	v = min(max(v, -1), 1)
	return int(v * 32767)
}
