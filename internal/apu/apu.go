// Package apu implements the Audio Processing Unit for the NES.
//
// The APU is clocked in batches of CPU cycles by the console scheduler.
// Its frame sequencer runs at twice the CPU rate against a frame time
// scaled to the configured frame rate, and one output sample is produced
// each time the sample timer passes sampleTimerMax. A sample is the
// average of the mixed channel output since the previous one.
package apu

import (
	"math"

	"github.com/golang/glog"
)

const (
	// CPUFrequency is the NTSC CPU clock in Hz.
	CPUFrequency = 1789772.5

	// DMCFetchStall is the CPU halt caused by one DMC sample fetch.
	DMCFetchStall = 4

	DefaultSampleRate = 44100
	DefaultFrameRate  = 60.0
)

// Memory is what the DMC channel reads its samples from.
type Memory interface {
	Read(address uint16) uint8
}

// APU represents the NES Audio Processing Unit
type APU struct {
	pulse1   PulseChannel
	pulse2   PulseChannel
	triangle TriangleChannel
	noise    NoiseChannel
	dmc      DMCChannel

	// Frame sequencer
	frameMode      bool  // false = 4-step, true = 5-step
	frameIRQEnable bool  // Frame counter IRQ enable
	frameStep      uint8 // Current step in the sequence
	frameIRQFlag   bool  // Frame counter IRQ flag

	channelEnable [5]bool // pulse1, pulse2, triangle, noise, dmc

	// Rate model
	sampleRate         int
	frameRate          float64
	frameTime          int
	masterFrameCounter int
	sampleTimerMax     int
	sampleTimer        int
	evenCycle          bool

	// Output accumulated since the last sample
	accSum   float64
	accCount int

	// DC blocking filter
	prevIn  float64
	prevOut float64

	memory   Memory
	onSample func(left, right float32)
	onIRQ    func()
	onStall  func(cycles int)
}

// PulseChannel represents a pulse wave channel
type PulseChannel struct {
	dutyCycle       uint8 // 0-3 (12.5%, 25%, 50%, 75%)
	envelopeLoop    bool  // Length counter halt / envelope loop
	envelopeDisable bool  // Constant volume flag
	volume          uint8 // Volume/envelope period (0-15)

	sweepEnable  bool
	sweepPeriod  uint8
	sweepNegate  bool
	sweepShift   uint8
	sweepReload  bool
	sweepCounter uint8

	timer        uint16 // 11-bit period
	timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	sequencerPos uint8
}

// TriangleChannel represents the triangle wave channel
type TriangleChannel struct {
	lengthCounterHalt bool  // Length counter halt / linear counter control
	linearCounterLoad uint8 // Linear counter reload value (0-127)

	timer        uint16
	timerCounter uint16

	lengthCounter uint8

	linearCounter       uint8
	linearCounterReload bool

	sequencerPos uint8
}

// NoiseChannel represents the noise channel
type NoiseChannel struct {
	envelopeLoop    bool
	envelopeDisable bool
	volume          uint8

	mode         bool // false = 32k steps, true = 93 steps
	periodIndex  uint8
	timerCounter uint16

	lengthCounter uint8
	lengthHalt    bool

	envelopeStart   bool
	envelopeCounter uint8
	envelopeDivider uint8

	shiftRegister uint16 // 15-bit LFSR
}

// DMCChannel represents the Delta Modulation Channel
type DMCChannel struct {
	irqEnable bool
	loop      bool
	rateIndex uint8

	outputLevel uint8 // 7-bit DAC value

	sampleAddress uint16
	sampleLength  uint16

	timerCounter      uint16
	shiftRegister     uint8
	bitsRemaining     uint8
	silence           bool
	sampleBuffer      uint8
	sampleBufferEmpty bool
	bytesRemaining    uint16
	currentAddress    uint16

	irqFlag bool
}

// New creates an APU at the default sample and frame rates.
func New() *APU {
	apu := &APU{}
	apu.SetSampleRate(DefaultSampleRate, DefaultFrameRate, true)
	apu.Reset()
	return apu
}

// Reset resets the channels and sequencer. The sample and frame rates and
// the handlers are kept.
func (apu *APU) Reset() {
	apu.pulse1 = PulseChannel{}
	apu.pulse2 = PulseChannel{}
	apu.triangle = TriangleChannel{}
	apu.noise = NoiseChannel{shiftRegister: 1}
	apu.dmc = DMCChannel{sampleBufferEmpty: true, silence: true, bitsRemaining: 8}

	apu.frameMode = false
	apu.frameIRQEnable = true
	apu.frameStep = 0
	apu.frameIRQFlag = false
	apu.channelEnable = [5]bool{}

	apu.masterFrameCounter = 0
	apu.evenCycle = false
	apu.restartSampling()
}

// SetSampleRate sets the output sample rate and the frame rate the
// emulation is paced at. restart discards the partially accumulated
// sample.
func (apu *APU) SetSampleRate(rate int, frameRate float64, restart bool) {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if frameRate <= 0 || math.IsInf(frameRate, 0) || math.IsNaN(frameRate) {
		frameRate = DefaultFrameRate
	}
	apu.sampleRate = rate
	apu.frameRate = frameRate
	apu.sampleTimerMax = int(math.Floor(1024 * CPUFrequency * frameRate / (float64(rate) * 60)))
	apu.frameTime = int(math.Floor(14915 * frameRate / 60))
	if restart {
		apu.restartSampling()
	}
}

// SampleRate returns the output sample rate.
func (apu *APU) SampleRate() int {
	return apu.sampleRate
}

// SetSampleHandler sets the receiver of output samples.
func (apu *APU) SetSampleHandler(handler func(left, right float32)) {
	apu.onSample = handler
}

// SetIRQHandler sets what is called while the frame or DMC IRQ is active.
func (apu *APU) SetIRQHandler(handler func()) {
	apu.onIRQ = handler
}

// SetStallHandler sets the receiver of CPU stall cycles caused by DMC
// sample fetches.
func (apu *APU) SetStallHandler(handler func(cycles int)) {
	apu.onStall = handler
}

// SetMemory connects the DMC channel to the CPU address space.
func (apu *APU) SetMemory(mem Memory) {
	apu.memory = mem
}

// ClockFrameCounter advances the APU by cpuCycles CPU cycles.
func (apu *APU) ClockFrameCounter(cpuCycles int) {
	if cpuCycles <= 0 {
		return
	}

	for i := 0; i < cpuCycles; i++ {
		apu.stepChannelTimers()

		// The frame sequencer runs at double CPU speed.
		apu.masterFrameCounter += 2
		if apu.masterFrameCounter >= apu.frameTime {
			apu.masterFrameCounter -= apu.frameTime
			apu.frameCounterTick()
		}

		apu.accSum += apu.output()
		apu.accCount++

		apu.sampleTimer += 1 << 10
		if apu.sampleTimer >= apu.sampleTimerMax {
			apu.sampleTimer -= apu.sampleTimerMax
			apu.emitSample()
		}
	}

	if (apu.frameIRQFlag || apu.dmc.irqFlag) && apu.onIRQ != nil {
		apu.onIRQ()
	}
}

func (apu *APU) restartSampling() {
	apu.sampleTimer = 0
	apu.accSum = 0
	apu.accCount = 0
	apu.prevIn = 0
	apu.prevOut = 0
}

// frameCounterTick runs one step of the 4- or 5-step sequence.
func (apu *APU) frameCounterTick() {
	steps := uint8(4)
	if apu.frameMode {
		steps = 5
	}

	step := apu.frameStep
	apu.frameStep = (apu.frameStep + 1) % steps

	// The fifth step of 5-step mode is silent.
	if step == 4 {
		return
	}
	apu.clockEnvelopeAndLinear()
	if step == 1 || step == 3 {
		apu.clockLengthAndSweep()
	}
	if step == 3 && !apu.frameMode && apu.frameIRQEnable {
		apu.frameIRQFlag = true
	}
}

func (apu *APU) emitSample() {
	if apu.accCount == 0 {
		return
	}
	avg := apu.accSum / float64(apu.accCount)
	apu.accSum = 0
	apu.accCount = 0

	out := avg - apu.prevIn + 0.996*apu.prevOut
	apu.prevIn = avg
	apu.prevOut = out

	if apu.onSample != nil {
		s := float32(math.Max(-1, math.Min(1, out*2)))
		apu.onSample(s, s)
	}
}

// clockEnvelopeAndLinear clocks envelope and linear counter units
func (apu *APU) clockEnvelopeAndLinear() {
	clockEnvelope(&apu.pulse1.envelopeStart, &apu.pulse1.envelopeCounter, &apu.pulse1.envelopeDivider, apu.pulse1.volume, apu.pulse1.envelopeLoop)
	clockEnvelope(&apu.pulse2.envelopeStart, &apu.pulse2.envelopeCounter, &apu.pulse2.envelopeDivider, apu.pulse2.volume, apu.pulse2.envelopeLoop)
	clockEnvelope(&apu.noise.envelopeStart, &apu.noise.envelopeCounter, &apu.noise.envelopeDivider, apu.noise.volume, apu.noise.envelopeLoop)
	apu.clockTriangleLinear(&apu.triangle)
}

// clockLengthAndSweep clocks length counters and sweep units
func (apu *APU) clockLengthAndSweep() {
	apu.clockPulseLength(&apu.pulse1)
	apu.clockPulseSweep(&apu.pulse1, true)
	apu.clockPulseLength(&apu.pulse2)
	apu.clockPulseSweep(&apu.pulse2, false)
	apu.clockTriangleLength(&apu.triangle)
	apu.clockNoiseLength(&apu.noise)
}

// stepChannelTimers steps every channel timer by one CPU cycle. Pulse and
// noise timers tick on every other cycle.
func (apu *APU) stepChannelTimers() {
	apu.evenCycle = !apu.evenCycle
	if apu.evenCycle {
		apu.stepPulseTimer(&apu.pulse1)
		apu.stepPulseTimer(&apu.pulse2)
		apu.stepNoiseTimer(&apu.noise)
	}
	apu.stepTriangleTimer(&apu.triangle)
	apu.stepDMCTimer(&apu.dmc)
}

func (apu *APU) output() float64 {
	return mix(
		apu.getPulseOutput(&apu.pulse1),
		apu.getPulseOutput(&apu.pulse2),
		apu.getTriangleOutput(&apu.triangle),
		apu.getNoiseOutput(&apu.noise),
		apu.dmc.outputLevel,
	)
}

// WriteRegister writes to an APU register
func (apu *APU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x4000:
		apu.writePulseControl(&apu.pulse1, value)
	case 0x4001:
		apu.writePulseSweep(&apu.pulse1, value)
	case 0x4002:
		apu.pulse1.timer = (apu.pulse1.timer & 0xFF00) | uint16(value)
	case 0x4003:
		apu.writePulseTimerHigh(&apu.pulse1, value, apu.channelEnable[0])

	case 0x4004:
		apu.writePulseControl(&apu.pulse2, value)
	case 0x4005:
		apu.writePulseSweep(&apu.pulse2, value)
	case 0x4006:
		apu.pulse2.timer = (apu.pulse2.timer & 0xFF00) | uint16(value)
	case 0x4007:
		apu.writePulseTimerHigh(&apu.pulse2, value, apu.channelEnable[1])

	case 0x4008:
		apu.triangle.lengthCounterHalt = value&0x80 != 0
		apu.triangle.linearCounterLoad = value & 0x7F
	case 0x400A:
		apu.triangle.timer = (apu.triangle.timer & 0xFF00) | uint16(value)
	case 0x400B:
		apu.triangle.timer = (apu.triangle.timer & 0x00FF) | (uint16(value&0x07) << 8)
		if apu.channelEnable[2] {
			apu.triangle.lengthCounter = lengthTable[value>>3]
		}
		apu.triangle.linearCounterReload = true

	case 0x400C:
		apu.noise.envelopeLoop = value&0x20 != 0
		apu.noise.lengthHalt = apu.noise.envelopeLoop
		apu.noise.envelopeDisable = value&0x10 != 0
		apu.noise.volume = value & 0x0F
	case 0x400E:
		apu.noise.mode = value&0x80 != 0
		apu.noise.periodIndex = value & 0x0F
	case 0x400F:
		if apu.channelEnable[3] {
			apu.noise.lengthCounter = lengthTable[value>>3]
		}
		apu.noise.envelopeStart = true

	case 0x4010:
		apu.dmc.irqEnable = value&0x80 != 0
		apu.dmc.loop = value&0x40 != 0
		apu.dmc.rateIndex = value & 0x0F
		if !apu.dmc.irqEnable {
			apu.dmc.irqFlag = false
		}
	case 0x4011:
		apu.dmc.outputLevel = value & 0x7F
	case 0x4012:
		apu.dmc.sampleAddress = 0xC000 | uint16(value)<<6
	case 0x4013:
		apu.dmc.sampleLength = uint16(value)<<4 | 1

	case 0x4015:
		apu.writeChannelEnable(value)
	case 0x4017:
		apu.writeFrameCounter(value)

	default:
		glog.V(2).Infof("apu: write to unhandled register $%04X", address)
	}
}

// ReadStatus reads the APU status register ($4015). Reading clears the
// frame IRQ flag.
func (apu *APU) ReadStatus() uint8 {
	var status uint8
	if apu.pulse1.lengthCounter > 0 {
		status |= 0x01
	}
	if apu.pulse2.lengthCounter > 0 {
		status |= 0x02
	}
	if apu.triangle.lengthCounter > 0 {
		status |= 0x04
	}
	if apu.noise.lengthCounter > 0 {
		status |= 0x08
	}
	if apu.dmc.bytesRemaining > 0 {
		status |= 0x10
	}
	if apu.frameIRQFlag {
		status |= 0x40
	}
	if apu.dmc.irqFlag {
		status |= 0x80
	}
	apu.frameIRQFlag = false
	return status
}

// FrameIRQ reports the frame sequencer IRQ flag.
func (apu *APU) FrameIRQ() bool {
	return apu.frameIRQFlag
}

// DMCIRQ reports the DMC IRQ flag.
func (apu *APU) DMCIRQ() bool {
	return apu.dmc.irqFlag
}

// ChannelEnabled reports whether channel (0-4) is enabled in $4015.
func (apu *APU) ChannelEnabled(channel int) bool {
	if channel < 0 || channel >= len(apu.channelEnable) {
		return false
	}
	return apu.channelEnable[channel]
}

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6,
	160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 8, 48, 6, 96, 4,
	192, 2, 72, 16, 28, 32, 52, 2,
}

var dutyTable = [4][8]uint8{
	{0, 1, 0, 0, 0, 0, 0, 0}, // 12.5%
	{0, 1, 1, 0, 0, 0, 0, 0}, // 25%
	{0, 1, 1, 1, 1, 0, 0, 0}, // 50%
	{1, 0, 0, 1, 1, 1, 1, 1}, // 75%
}

var triangleTable = [32]uint8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

// Noise period table (NTSC), in APU cycles
var noisePeriodTable = [16]uint16{
	2, 4, 8, 16, 32, 48, 64, 80,
	101, 127, 190, 254, 381, 508, 1017, 2034,
}

// DMC rate table (NTSC), in CPU cycles
var dmcRateTable = [16]uint16{
	428, 380, 340, 320, 286, 254, 226, 214,
	190, 160, 142, 128, 106, 84, 72, 54,
}

func (apu *APU) writePulseControl(pulse *PulseChannel, value uint8) {
	pulse.dutyCycle = (value >> 6) & 0x03
	pulse.envelopeLoop = value&0x20 != 0
	pulse.lengthHalt = pulse.envelopeLoop
	pulse.envelopeDisable = value&0x10 != 0
	pulse.volume = value & 0x0F
}

func (apu *APU) writePulseSweep(pulse *PulseChannel, value uint8) {
	pulse.sweepEnable = value&0x80 != 0
	pulse.sweepPeriod = (value >> 4) & 0x07
	pulse.sweepNegate = value&0x08 != 0
	pulse.sweepShift = value & 0x07
	pulse.sweepReload = true
}

func (apu *APU) writePulseTimerHigh(pulse *PulseChannel, value uint8, enabled bool) {
	pulse.timer = (pulse.timer & 0x00FF) | (uint16(value&0x07) << 8)
	if enabled {
		pulse.lengthCounter = lengthTable[value>>3]
	}
	pulse.envelopeStart = true
	pulse.sequencerPos = 0
}

func (apu *APU) stepPulseTimer(pulse *PulseChannel) {
	if pulse.timerCounter == 0 {
		pulse.timerCounter = pulse.timer
		pulse.sequencerPos = (pulse.sequencerPos + 1) & 0x07
	} else {
		pulse.timerCounter--
	}
}

func clockEnvelope(start *bool, counter, divider *uint8, period uint8, loop bool) {
	switch {
	case *start:
		*start = false
		*counter = 15
		*divider = period
	case *divider == 0:
		*divider = period
		if *counter > 0 {
			*counter--
		} else if loop {
			*counter = 15
		}
	default:
		*divider--
	}
}

func (apu *APU) clockPulseLength(pulse *PulseChannel) {
	if !pulse.lengthHalt && pulse.lengthCounter > 0 {
		pulse.lengthCounter--
	}
}

// sweepTarget is the period the sweep unit would move to. Pulse 1 negates
// with one's complement, pulse 2 with two's complement.
func sweepTarget(pulse *PulseChannel, isPulse1 bool) int {
	change := int(pulse.timer >> pulse.sweepShift)
	if !pulse.sweepNegate {
		return int(pulse.timer) + change
	}
	if isPulse1 {
		return int(pulse.timer) - change - 1
	}
	return int(pulse.timer) - change
}

func (apu *APU) clockPulseSweep(pulse *PulseChannel, isPulse1 bool) {
	if pulse.sweepCounter == 0 && pulse.sweepEnable && pulse.sweepShift > 0 && pulse.timer >= 8 {
		target := sweepTarget(pulse, isPulse1)
		if target >= 0 && target <= 0x7FF {
			pulse.timer = uint16(target)
		}
	}

	if pulse.sweepCounter == 0 || pulse.sweepReload {
		pulse.sweepCounter = pulse.sweepPeriod
		pulse.sweepReload = false
	} else {
		pulse.sweepCounter--
	}
}

func (apu *APU) getPulseOutput(pulse *PulseChannel) uint8 {
	if pulse.lengthCounter == 0 || pulse.timer < 8 || sweepTarget(pulse, false) > 0x7FF {
		return 0
	}
	if dutyTable[pulse.dutyCycle][pulse.sequencerPos] == 0 {
		return 0
	}
	if pulse.envelopeDisable {
		return pulse.volume
	}
	return pulse.envelopeCounter
}

func (apu *APU) stepTriangleTimer(triangle *TriangleChannel) {
	if triangle.timerCounter == 0 {
		triangle.timerCounter = triangle.timer
		if triangle.lengthCounter > 0 && triangle.linearCounter > 0 {
			triangle.sequencerPos = (triangle.sequencerPos + 1) & 0x1F
		}
	} else {
		triangle.timerCounter--
	}
}

func (apu *APU) clockTriangleLinear(triangle *TriangleChannel) {
	if triangle.linearCounterReload {
		triangle.linearCounter = triangle.linearCounterLoad
	} else if triangle.linearCounter > 0 {
		triangle.linearCounter--
	}
	if !triangle.lengthCounterHalt {
		triangle.linearCounterReload = false
	}
}

func (apu *APU) clockTriangleLength(triangle *TriangleChannel) {
	if !triangle.lengthCounterHalt && triangle.lengthCounter > 0 {
		triangle.lengthCounter--
	}
}

func (apu *APU) getTriangleOutput(triangle *TriangleChannel) uint8 {
	// Ultrasonic periods are silenced rather than aliased.
	if triangle.timer < 2 {
		return 7
	}
	return triangleTable[triangle.sequencerPos]
}

func (apu *APU) stepNoiseTimer(noise *NoiseChannel) {
	if noise.timerCounter > 0 {
		noise.timerCounter--
		return
	}
	noise.timerCounter = noisePeriodTable[noise.periodIndex]

	tap := uint16(1)
	if noise.mode {
		tap = 6
	}
	feedback := (noise.shiftRegister ^ (noise.shiftRegister >> tap)) & 0x01
	noise.shiftRegister = (noise.shiftRegister >> 1) | (feedback << 14)
}

func (apu *APU) clockNoiseLength(noise *NoiseChannel) {
	if !noise.lengthHalt && noise.lengthCounter > 0 {
		noise.lengthCounter--
	}
}

func (apu *APU) getNoiseOutput(noise *NoiseChannel) uint8 {
	if noise.lengthCounter == 0 || noise.shiftRegister&0x01 != 0 {
		return 0
	}
	if noise.envelopeDisable {
		return noise.volume
	}
	return noise.envelopeCounter
}

func (apu *APU) stepDMCTimer(dmc *DMCChannel) {
	if dmc.sampleBufferEmpty && dmc.bytesRemaining > 0 {
		apu.fetchDMCSample()
	}

	if dmc.timerCounter > 0 {
		dmc.timerCounter--
		return
	}
	dmc.timerCounter = dmcRateTable[dmc.rateIndex] - 1

	if !dmc.silence {
		if dmc.shiftRegister&0x01 != 0 {
			if dmc.outputLevel <= 125 {
				dmc.outputLevel += 2
			}
		} else if dmc.outputLevel >= 2 {
			dmc.outputLevel -= 2
		}
	}
	dmc.shiftRegister >>= 1

	dmc.bitsRemaining--
	if dmc.bitsRemaining == 0 {
		dmc.bitsRemaining = 8
		if dmc.sampleBufferEmpty {
			dmc.silence = true
		} else {
			dmc.silence = false
			dmc.shiftRegister = dmc.sampleBuffer
			dmc.sampleBufferEmpty = true
		}
	}
}

// fetchDMCSample loads the next sample byte, halting the CPU for the
// duration of the read.
func (apu *APU) fetchDMCSample() {
	dmc := &apu.dmc
	if apu.memory != nil {
		dmc.sampleBuffer = apu.memory.Read(dmc.currentAddress)
	}
	dmc.sampleBufferEmpty = false
	if apu.onStall != nil {
		apu.onStall(DMCFetchStall)
	}

	if dmc.currentAddress == 0xFFFF {
		dmc.currentAddress = 0x8000
	} else {
		dmc.currentAddress++
	}
	dmc.bytesRemaining--

	if dmc.bytesRemaining == 0 {
		if dmc.loop {
			dmc.currentAddress = dmc.sampleAddress
			dmc.bytesRemaining = dmc.sampleLength
		} else if dmc.irqEnable {
			dmc.irqFlag = true
		}
	}
}

// writeChannelEnable writes to channel enable register ($4015)
func (apu *APU) writeChannelEnable(value uint8) {
	for i := range apu.channelEnable {
		apu.channelEnable[i] = value&(1<<i) != 0
	}

	if !apu.channelEnable[0] {
		apu.pulse1.lengthCounter = 0
	}
	if !apu.channelEnable[1] {
		apu.pulse2.lengthCounter = 0
	}
	if !apu.channelEnable[2] {
		apu.triangle.lengthCounter = 0
	}
	if !apu.channelEnable[3] {
		apu.noise.lengthCounter = 0
	}
	if !apu.channelEnable[4] {
		apu.dmc.bytesRemaining = 0
	} else if apu.dmc.bytesRemaining == 0 {
		apu.dmc.currentAddress = apu.dmc.sampleAddress
		apu.dmc.bytesRemaining = apu.dmc.sampleLength
	}

	apu.dmc.irqFlag = false
}

// writeFrameCounter writes to frame counter register ($4017)
func (apu *APU) writeFrameCounter(value uint8) {
	apu.frameMode = value&0x80 != 0
	apu.frameIRQEnable = value&0x40 == 0
	if !apu.frameIRQEnable {
		apu.frameIRQFlag = false
	}

	apu.masterFrameCounter = 0
	apu.frameStep = 0

	// 5-step mode clocks every unit immediately
	if apu.frameMode {
		apu.clockEnvelopeAndLinear()
		apu.clockLengthAndSweep()
	}
}

// mix applies the NES mixer approximation; the result is in [0, 1).
func mix(pulse1, pulse2, triangle, noise, dmc uint8) float64 {
	var pulseOut float64
	if sum := float64(pulse1) + float64(pulse2); sum != 0 {
		pulseOut = 95.88 / (8128.0/sum + 100.0)
	}

	var tndOut float64
	tnd := float64(triangle)/8227.0 + float64(noise)/12241.0 + float64(dmc)/22638.0
	if tnd != 0 {
		tndOut = 159.79 / (1.0/tnd + 100.0)
	}
	return pulseOut + tndOut
}
