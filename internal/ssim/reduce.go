package ssim

import "gonum.org/v1/gonum/stat"

// Reduce averages m over every spatial axis. The result has one entry per
// channel, or a single entry when m has no channel axis.
func Reduce(m *Array) []float64 {
	k := m.NumChannels()
	if k == 1 {
		return []float64{stat.Mean(m.Data, nil)}
	}
	out := make([]float64, k)
	for c := range out {
		out[c] = stat.Mean(m.Channel(c), nil)
	}
	return out
}
