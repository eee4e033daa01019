// Package sampler draws reproducible parameter suggestions. Each value is a
// pure function of (study seed, trial number, parameter name), so a resumed
// study or a parallel one replays exactly the same suggestions.
package sampler

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"math"
)

var ErrBadRange = errors.New("low must not exceed high")

// byteStream yields HMAC-SHA256 output 32 bytes at a time.
type byteStream struct {
	key    []byte
	label  string
	round  uint64
	pos    int
	buffer [32]byte
}

func newByteStream(seed uint64, trial int, name string) *byteStream {
	s := &byteStream{
		key:   []byte(fmt.Sprintf("%d", seed)),
		label: fmt.Sprintf("%d:%s", trial, name),
	}
	s.fill()
	return s
}

func (s *byteStream) fill() {
	h := hmac.New(sha256.New, s.key)
	fmt.Fprintf(h, "%s:%d", s.label, s.round)
	copy(s.buffer[:], h.Sum(nil))
}

func (s *byteStream) next() byte {
	if s.pos >= len(s.buffer) {
		s.round++
		s.pos = 0
		s.fill()
	}
	b := s.buffer[s.pos]
	s.pos++
	return b
}

// float reads 4 bytes as a base-256 fraction in [0, 1).
func (s *byteStream) float() float64 {
	result := 0.0
	for i := 0; i < 4; i++ {
		result += float64(s.next()) / math.Pow(256, float64(i+1))
	}
	return result
}

// Sampler hands out independent uniform integers for one study.
type Sampler struct {
	seed uint64
}

// New returns a sampler keyed on the study seed.
func New(seed uint64) *Sampler { return &Sampler{seed: seed} }

// Seed is the study seed the sampler was built with.
func (s *Sampler) Seed() uint64 { return s.seed }

// Float returns the uniform draw in [0, 1) for name in trial.
func (s *Sampler) Float(trial int, name string) float64 {
	return newByteStream(s.seed, trial, name).float()
}

// Int returns a uniform integer in [low, high] for name in trial.
func (s *Sampler) Int(trial int, name string, low, high int) (int, error) {
	if low > high {
		return 0, fmt.Errorf("%w: %s [%d, %d]", ErrBadRange, name, low, high)
	}
	span := float64(high-low) + 1
	v := low + int(math.Floor(s.Float(trial, name)*span))
	if v > high {
		v = high
	}
	return v, nil
}

// Trial binds the sampler to one trial number so it satisfies the
// SuggestInt shape callers expect.
func (s *Sampler) Trial(number int) *TrialSampler {
	return &TrialSampler{s: s, number: number, drawn: map[string]int{}}
}

// TrialSampler suggests values for a single trial and remembers them.
type TrialSampler struct {
	s      *Sampler
	number int
	drawn  map[string]int
}

// SuggestInt draws name once; asking again returns the same value.
func (t *TrialSampler) SuggestInt(name string, low, high int) (int, error) {
	if v, ok := t.drawn[name]; ok {
		return v, nil
	}
	v, err := t.s.Int(t.number, name, low, high)
	if err != nil {
		return 0, err
	}
	t.drawn[name] = v
	return v, nil
}

// Params returns every value drawn so far.
func (t *TrialSampler) Params() map[string]int {
	out := make(map[string]int, len(t.drawn))
	for k, v := range t.drawn {
		out[k] = v
	}
	return out
}
