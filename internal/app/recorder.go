package app

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/golang/glog"
)

// recorderChunk is how many interleaved values are buffered between writes.
const recorderChunk = 8192

// WAVRecorder writes the console's sample stream to a 16-bit stereo WAV
// file.
type WAVRecorder struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	buf    *goaudio.IntBuffer
	frames int
	err    error
	closed bool
}

// NewWAVRecorder creates path and starts recording at sampleRate.
func NewWAVRecorder(path string, sampleRate int) (*WAVRecorder, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	return &WAVRecorder{
		path: path,
		file: f,
		enc:  wav.NewEncoder(f, sampleRate, 16, 2, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
			SourceBitDepth: 16,
			Data:           make([]int, 0, recorderChunk),
		},
	}, nil
}

// Push records one stereo sample. Write errors are kept and reported by
// Close.
func (r *WAVRecorder) Push(left, right float32) {
	if r.closed || r.err != nil {
		return
	}
	r.buf.Data = append(r.buf.Data, toPCM16(left), toPCM16(right))
	r.frames++
	if len(r.buf.Data) >= recorderChunk {
		r.flush()
	}
}

// Frames is the number of stereo samples recorded.
func (r *WAVRecorder) Frames() int {
	return r.frames
}

func (r *WAVRecorder) flush() {
	if len(r.buf.Data) == 0 {
		return
	}
	if err := r.enc.Write(r.buf); err != nil {
		r.err = fmt.Errorf("write recording: %w", err)
	}
	r.buf.Data = r.buf.Data[:0]
}

// Close finishes the WAV header and closes the file.
func (r *WAVRecorder) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.flush()
	err := r.err
	if cerr := r.enc.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("finish recording: %w", cerr))
	}
	if cerr := r.file.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	if err == nil {
		glog.Infof("[RECORDER] wrote %d samples to %s", r.frames, r.path)
	}
	return err
}
