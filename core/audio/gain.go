package audio

import (
	"math"
	"sync/atomic"
)

// Gain is a shared gain node. The owning pipeline pushes samples through
// Process; external consumers (level meters, visualisers) may only read Gain
// and Level.
type Gain struct {
	gain  atomic.Uint64
	level atomic.Uint64
}

func NewGain(gain float64) *Gain {
	g := &Gain{}
	g.SetGain(gain)
	return g
}

func (g *Gain) SetGain(gain float64) {
	if gain < 0 || math.IsNaN(gain) {
		gain = 0
	}
	g.gain.Store(math.Float64bits(gain))
}

func (g *Gain) Gain() float64 { return math.Float64frombits(g.gain.Load()) }

// Level returns the RMS level of the last block that went through the node.
func (g *Gain) Level() float64 { return math.Float64frombits(g.level.Load()) }

// Process applies the gain in place and records the resulting level.
func (g *Gain) Process(samples []float32) {
	if g == nil {
		return
	}

	gain := float32(g.Gain())
	if gain != 1 {
		for i := range samples {
			samples[i] *= gain
		}
	}
	g.level.Store(math.Float64bits(RMS(samples)))
}

// RMS computes the root-mean-square energy of float samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
