package audio

import "sync"

// Analyser is a time-domain tap on a live stream. It retains the most recent
// samples so a sampler can read a full window at any moment.
type Analyser struct {
	mu   sync.Mutex
	ring []int16
	pos  int
}

// NewAnalyser keeps the last size samples.
func NewAnalyser(size int) *Analyser {
	return &Analyser{ring: make([]int16, size)}
}

// Size is the window length in samples.
func (a *Analyser) Size() int { return len(a.ring) }

// Write appends samples, overwriting the oldest.
func (a *Analyser) Write(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	if len(samples) >= n {
		copy(a.ring, samples[len(samples)-n:])
		a.pos = 0
		return
	}
	for _, s := range samples {
		a.ring[a.pos] = s
		a.pos = (a.pos + 1) % n
	}
}

// ByteTimeDomainData fills dst with the most recent len(dst) samples as
// unsigned bytes centred on 128, oldest first. Positions not yet captured read
// as silence.
func (a *Analyser) ByteTimeDomainData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	skip := 0
	if len(dst) > n {
		skip = len(dst) - n
		for i := 0; i < skip; i++ {
			dst[i] = 128
		}
	}
	start := (a.pos - (len(dst) - skip) + n) % n
	for i := skip; i < len(dst); i++ {
		dst[i] = toByte(a.ring[(start+i-skip)%n])
	}
}

// toByte maps a signed 16-bit sample onto [0,255].
func toByte(s int16) byte {
	return byte(int(s)>>8 + 128)
}
