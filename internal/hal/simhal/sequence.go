package simhal

import (
	"errors"

	"github.com/san-kum/flowmbed/internal/dynsys"
)

var ErrSequenceExhausted = errors.New("simhal: sequence exhausted")

// SequenceDigital is a digital input that replays a fixed sequence, one
// level per Read, and fails once the sequence is used up.
type SequenceDigital struct {
	values []dynsys.Bool
	pos    int
}

func NewSequenceDigital(values ...dynsys.Bool) *SequenceDigital {
	return &SequenceDigital{values: values}
}

func (s *SequenceDigital) Read() (dynsys.Bool, error) {
	if s.pos >= len(s.values) {
		return false, ErrSequenceExhausted
	}
	v := s.values[s.pos]
	s.pos++
	return v, nil
}

// Reads returns how many levels have been consumed.
func (s *SequenceDigital) Reads() int { return s.pos }

// SequenceAnalog is the analog counterpart of SequenceDigital.
type SequenceAnalog struct {
	values []dynsys.Float
	pos    int
	loop   bool
}

func NewSequenceAnalog(values ...dynsys.Float) *SequenceAnalog {
	return &SequenceAnalog{values: values}
}

// Looping returns s set to restart from the beginning instead of failing.
func (s *SequenceAnalog) Looping() *SequenceAnalog {
	s.loop = true
	return s
}

func (s *SequenceAnalog) Read() (dynsys.Float, error) {
	if s.pos >= len(s.values) {
		if !s.loop || len(s.values) == 0 {
			return 0, ErrSequenceExhausted
		}
		s.pos = 0
	}
	v := s.values[s.pos]
	s.pos++
	return v, nil
}
