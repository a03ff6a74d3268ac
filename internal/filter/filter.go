// Package filter provides the low-pass filter primitives used by the
// rescue control loops: single-pole PT1 and cascaded-pole PT2/PT3
// filters with gain derived from a cutoff frequency and sample interval.
package filter

import "math"

// Cutoff correction factors so that a cascade of N identical poles has
// the requested -3dB cutoff. 1/sqrt(2^(1/N) - 1) for N poles.
const (
	order2CutoffCorrection = 1.553773974
	order3CutoffCorrection = 1.961459177
)

// PT1 is a single-pole low-pass filter.
type PT1 struct {
	state float64
	k     float64
}

// NewPT1 creates a PT1 filter with the given cutoff and sample interval.
func NewPT1(cutoffHz, sampleIntervalS float64) *PT1 {
	f := &PT1{}
	f.SetCutoff(cutoffHz, sampleIntervalS)
	return f
}

// SetCutoff recomputes the filter gain, keeping the current state.
// Used when the cutoff is modulated at runtime or the sample interval varies.
func (f *PT1) SetCutoff(cutoffHz, sampleIntervalS float64) {
	f.k = pt1Gain(cutoffHz, sampleIntervalS)
}

// Apply feeds one sample through the filter and returns the new output.
func (f *PT1) Apply(input float64) float64 {
	f.state += f.k * (input - f.state)
	return f.state
}

// Reset clears the filter state.
func (f *PT1) Reset() {
	f.state = 0
}

// PT2 is a two-pole low-pass filter (two cascaded PT1 stages with a
// cutoff correction so the cascade has the requested cutoff).
type PT2 struct {
	state  float64
	state1 float64
	k      float64
}

// NewPT2 creates a PT2 filter with the given cutoff and sample interval.
func NewPT2(cutoffHz, sampleIntervalS float64) *PT2 {
	f := &PT2{}
	f.SetCutoff(cutoffHz, sampleIntervalS)
	return f
}

// SetCutoff recomputes the filter gain, keeping the current state.
func (f *PT2) SetCutoff(cutoffHz, sampleIntervalS float64) {
	f.k = pt1Gain(cutoffHz*order2CutoffCorrection, sampleIntervalS)
}

// Apply feeds one sample through the filter and returns the new output.
func (f *PT2) Apply(input float64) float64 {
	f.state1 += f.k * (input - f.state1)
	f.state += f.k * (f.state1 - f.state)
	return f.state
}

// Reset clears the filter state.
func (f *PT2) Reset() {
	f.state = 0
	f.state1 = 0
}

// PT3 is a three-pole low-pass filter.
type PT3 struct {
	state  float64
	state1 float64
	state2 float64
	k      float64
}

// NewPT3 creates a PT3 filter with the given cutoff and sample interval.
func NewPT3(cutoffHz, sampleIntervalS float64) *PT3 {
	f := &PT3{}
	f.SetCutoff(cutoffHz, sampleIntervalS)
	return f
}

// SetCutoff recomputes the filter gain, keeping the current state.
func (f *PT3) SetCutoff(cutoffHz, sampleIntervalS float64) {
	f.k = pt1Gain(cutoffHz*order3CutoffCorrection, sampleIntervalS)
}

// Apply feeds one sample through the filter and returns the new output.
func (f *PT3) Apply(input float64) float64 {
	f.state1 += f.k * (input - f.state1)
	f.state2 += f.k * (f.state1 - f.state2)
	f.state += f.k * (f.state2 - f.state)
	return f.state
}

// Reset clears the filter state.
func (f *PT3) Reset() {
	f.state = 0
	f.state1 = 0
	f.state2 = 0
}

// pt1Gain computes the smoothing constant k = dt / (RC + dt) for a
// single pole at cutoffHz sampled every sampleIntervalS seconds.
func pt1Gain(cutoffHz, sampleIntervalS float64) float64 {
	rc := 1.0 / (2.0 * math.Pi * cutoffHz)
	return sampleIntervalS / (rc + sampleIntervalS)
}
