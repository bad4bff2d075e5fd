// Package duration describes symbolic note lengths.
//
// A Descriptor combines three independent axes: a base length (64th note up
// to a quadruple whole note), an optional dot, and an optional division
// (the base length split into 3, 5 or 7 equal parts). Its value is always
// expressed as a fraction of a whole note.
package duration

import (
	"fmt"
	"strings"

	"github.com/james-see/midi2score/pkg/fraction"
)

// Length is the base note length.
type Length uint8

const (
	Sixtyfourth Length = iota
	ThirtySecond
	Sixteenth
	Eighth
	Quarter
	Half
	Whole
	Double
	Quad
)

// Lengths lists every base length, shortest first.
var Lengths = []Length{Sixtyfourth, ThirtySecond, Sixteenth, Eighth, Quarter, Half, Whole, Double, Quad}

var lengthNames = [...]string{"64th", "32nd", "16th", "8th", "quarter", "half", "whole", "double", "quad"}

func (l Length) String() string {
	if int(l) < len(lengthNames) {
		return lengthNames[l]
	}
	return fmt.Sprintf("Length(%d)", l)
}

// Fraction returns the length in whole notes: 1/64 for Sixtyfourth up to 4 for Quad.
func (l Length) Fraction() fraction.Fraction {
	if l >= Whole {
		return fraction.FromInt(int64(1) << uint(l-Whole))
	}
	return fraction.FromRatio(1, int64(1)<<uint(Whole-l))
}

// Division splits the base length into equal parts.
type Division uint8

const (
	DivNone Division = iota
	Div3
	Div5
	Div7
)

// Divisions lists every division, plainest first.
var Divisions = []Division{DivNone, Div3, Div5, Div7}

// Divisor returns the number of parts: 1, 3, 5 or 7.
func (d Division) Divisor() int64 {
	switch d {
	case Div3:
		return 3
	case Div5:
		return 5
	case Div7:
		return 7
	}
	return 1
}

func (d Division) String() string {
	if d == DivNone {
		return "none"
	}
	return fmt.Sprintf("div%d", d.Divisor())
}

// Descriptor is a symbolic duration.
type Descriptor struct {
	Length   Length   `json:"length"`
	Dotted   bool     `json:"dotted,omitempty"`
	Division Division `json:"division,omitempty"`
}

// BaseUnit is the smallest representable duration, a 64th note divided by 3.
var BaseUnit = Descriptor{Length: Sixtyfourth, Division: Div3}

// BaseUnitFraction is BaseUnit in whole notes (1/192).
var BaseUnitFraction = fraction.FromRatio(1, 192)

// Fraction returns the duration in whole notes.
func (d Descriptor) Fraction() fraction.Fraction {
	f := d.Length.Fraction()
	if d.Dotted {
		f = f.Mul(fraction.FromRatio(3, 2))
	}
	if d.Division != DivNone {
		f = f.Mul(fraction.FromRatio(1, d.Division.Divisor()))
	}
	return f
}

// IsAdmissible reports whether the duration is an integer multiple of the base unit.
func (d Descriptor) IsAdmissible() bool {
	return d.Fraction().IsMultipleOf(BaseUnitFraction)
}

// IsPlain reports whether the descriptor has neither dot nor division.
func (d Descriptor) IsPlain() bool {
	return !d.Dotted && d.Division == DivNone
}

// All returns every descriptor combination, ordered by division, then dot,
// then length, plainest first.
func All() []Descriptor {
	res := make([]Descriptor, 0, len(Divisions)*2*len(Lengths))
	for _, div := range Divisions {
		for _, dotted := range []bool{false, true} {
			for _, l := range Lengths {
				res = append(res, Descriptor{Length: l, Dotted: dotted, Division: div})
			}
		}
	}
	return res
}

func (d Descriptor) String() string {
	var s strings.Builder
	if d.Dotted {
		s.WriteString("dotted ")
	}
	s.WriteString(d.Length.String())
	if d.Division != DivNone {
		s.WriteString("/")
		fmt.Fprintf(&s, "%d", d.Division.Divisor())
	}
	return s.String()
}
