package app

import (
	"fmt"
	"time"

	"github.com/golang/glog"
)

// maxCatchUpFrames caps how many frames one Update may run after a stall.
const maxCatchUpFrames = 4

// FrameRunner is the console as the emulation loop sees it.
type FrameRunner interface {
	Frame() error
	FrameInterval() time.Duration
	FPS() (float64, bool)
}

// Emulator paces console frames against the wall clock. It is called
// from the host loop at whatever rate that runs and runs as many frames
// as the console's frame interval says are due.
type Emulator struct {
	console FrameRunner
	now     func() time.Time

	lastUpdateTime  time.Time
	accumulatedTime time.Duration

	onFrame func()

	frameCount       uint64
	droppedFrames    uint64
	emulationTime    time.Duration
	averageFrameTime time.Duration
	currentFPS       float64
	lastFPSCheck     time.Time

	isRunning     bool
	lastResetTime time.Time
}

// EmulatorStats is a summary of emulation performance.
type EmulatorStats struct {
	FrameCount       uint64        `json:"frame_count"`
	DroppedFrames    uint64        `json:"dropped_frames"`
	AverageFrameTime time.Duration `json:"average_frame_time"`
	TargetFrameTime  time.Duration `json:"target_frame_time"`
	EmulationSpeed   float64       `json:"emulation_speed"`
	FPS              float64       `json:"fps"`
}

// NewEmulator creates an emulator for c. onFrame, if set, runs after
// every completed frame.
func NewEmulator(c FrameRunner, onFrame func()) *Emulator {
	e := &Emulator{console: c, now: time.Now, onFrame: onFrame}
	e.Reset()
	return e
}

// Reset clears timing and counters.
func (e *Emulator) Reset() {
	now := e.now()
	e.lastUpdateTime = now
	e.accumulatedTime = 0
	e.frameCount = 0
	e.droppedFrames = 0
	e.emulationTime = 0
	e.averageFrameTime = 0
	e.currentFPS = 0
	e.lastFPSCheck = now
	e.lastResetTime = now
}

// Start starts the emulator
func (e *Emulator) Start() {
	e.isRunning = true
	e.lastUpdateTime = e.now()
	e.accumulatedTime = 0
}

// Stop stops the emulator
func (e *Emulator) Stop() {
	e.isRunning = false
}

// IsRunning returns whether the emulator is running
func (e *Emulator) IsRunning() bool {
	return e.isRunning
}

// Update runs the frames that have fallen due since the previous call.
// After a long stall at most maxCatchUpFrames run and the rest are
// counted as dropped.
func (e *Emulator) Update() error {
	if !e.isRunning {
		return nil
	}

	now := e.now()
	e.accumulatedTime += now.Sub(e.lastUpdateTime)
	e.lastUpdateTime = now

	interval := e.console.FrameInterval()
	if limit := maxCatchUpFrames * interval; e.accumulatedTime > limit {
		dropped := (e.accumulatedTime - limit) / interval
		e.droppedFrames += uint64(dropped)
		e.accumulatedTime -= dropped * interval
		glog.V(2).Infof("[EMULATOR] behind by %d frames", dropped)
	}

	for e.accumulatedTime >= interval {
		if err := e.StepFrame(); err != nil {
			return err
		}
		e.accumulatedTime -= interval
	}

	e.sampleFPS(now)
	return nil
}

// StepFrame runs exactly one frame regardless of pacing.
func (e *Emulator) StepFrame() error {
	start := e.now()
	if err := e.console.Frame(); err != nil {
		return fmt.Errorf("frame %d: %w", e.frameCount+1, err)
	}
	e.emulationTime = e.now().Sub(start)
	e.frameCount++

	if e.averageFrameTime == 0 {
		e.averageFrameTime = e.emulationTime
	} else {
		e.averageFrameTime = time.Duration(float64(e.averageFrameTime)*0.95 + float64(e.emulationTime)*0.05)
	}

	if e.onFrame != nil {
		e.onFrame()
	}
	return nil
}

// RunFrames runs n frames back to back without pacing.
func (e *Emulator) RunFrames(n int) error {
	for i := 0; i < n; i++ {
		if err := e.StepFrame(); err != nil {
			return err
		}
	}
	e.sampleFPS(e.now())
	return nil
}

// sampleFPS reads the console's FPS window about once a second.
func (e *Emulator) sampleFPS(now time.Time) {
	if now.Sub(e.lastFPSCheck) < time.Second {
		return
	}
	e.lastFPSCheck = now
	if fps, ok := e.console.FPS(); ok {
		e.currentFPS = fps
		glog.V(1).Infof("[EMULATOR] %.1f fps, %v per frame", fps, e.averageFrameTime)
	}
}

// GetFrameCount returns the current frame count
func (e *Emulator) GetFrameCount() uint64 {
	return e.frameCount
}

// GetFPS returns the last sampled frame rate.
func (e *Emulator) GetFPS() float64 {
	return e.currentFPS
}

// GetUptime returns the emulator uptime since last reset
func (e *Emulator) GetUptime() time.Duration {
	return e.now().Sub(e.lastResetTime)
}

// GetPerformanceStats returns a summary of emulation performance.
func (e *Emulator) GetPerformanceStats() EmulatorStats {
	target := e.console.FrameInterval()
	var speed float64
	if e.averageFrameTime > 0 {
		speed = float64(target) / float64(e.averageFrameTime) * 100
	}
	return EmulatorStats{
		FrameCount:       e.frameCount,
		DroppedFrames:    e.droppedFrames,
		AverageFrameTime: e.averageFrameTime,
		TargetFrameTime:  target,
		EmulationSpeed:   speed,
		FPS:              e.currentFPS,
	}
}
