// Package fraction provides exact rational arithmetic for musical time.
//
// A Fraction is stored as a mixed number: Integer + Num/Den with
// 0 <= Num < Den. The integer part may be negative, in which case the value
// is still Integer + Num/Den (floor representation).
package fraction

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Fraction is an exact rational number in mixed form.
type Fraction struct {
	Integer int64
	Num     uint32
	Den     uint32
}

// Zero is the additive identity.
var Zero = Fraction{Den: 1}

// One is the multiplicative identity.
var One = Fraction{Integer: 1, Den: 1}

// New builds a normalized fraction from a mixed number.
// It panics if den is zero.
func New(integer int64, num, den uint32) Fraction {
	if den == 0 {
		panic("fraction: zero denominator")
	}
	return FromRatio(integer*int64(den)+int64(num), int64(den))
}

// FromRatio builds the normalized fraction n/d. It panics if d is not positive
// or if the reduced denominator does not fit in 32 bits.
func FromRatio(n, d int64) Fraction {
	if d <= 0 {
		panic(fmt.Sprintf("fraction: invalid denominator %d", d))
	}
	g := gcd(abs(n), d)
	if g > 1 {
		n /= g
		d /= g
	}
	if d > math.MaxUint32 {
		panic(fmt.Sprintf("fraction: denominator %d overflows", d))
	}
	integer := n / d
	rem := n % d
	if rem < 0 {
		integer--
		rem += d
	}
	return Fraction{Integer: integer, Num: uint32(rem), Den: uint32(d)}
}

// FromInt returns the fraction n/1.
func FromInt(n int64) Fraction {
	return Fraction{Integer: n, Den: 1}
}

// FromFloat returns the fraction with denominator den closest to v.
// This is the only lossy conversion in the package.
func FromFloat(v float64, den uint32) Fraction {
	if den == 0 {
		panic("fraction: zero denominator")
	}
	n := math.Round(v * float64(den))
	return FromRatio(int64(n), int64(den))
}

func (f Fraction) den() uint32 {
	if f.Den == 0 {
		return 1
	}
	return f.Den
}

// numer returns the improper numerator over f.den().
func (f Fraction) numer() int64 {
	return f.Integer*int64(f.den()) + int64(f.Num)
}

// Ratio returns the value as an improper fraction n/d.
func (f Fraction) Ratio() (n, d int64) {
	return f.numer(), int64(f.den())
}

// Add returns f + g.
func (f Fraction) Add(g Fraction) Fraction {
	fd, gd := int64(f.den()), int64(g.den())
	l := fd / gcd(fd, gd) * gd
	return FromRatio(f.numer()*(l/fd)+g.numer()*(l/gd), l)
}

// Sub returns f - g.
func (f Fraction) Sub(g Fraction) Fraction {
	return f.Add(g.Neg())
}

// Neg returns -f.
func (f Fraction) Neg() Fraction {
	return FromRatio(-f.numer(), int64(f.den()))
}

// Mul returns f * g.
func (f Fraction) Mul(g Fraction) Fraction {
	fn, fd := f.Ratio()
	gn, gd := g.Ratio()
	// cross-reduce before multiplying to keep intermediates small
	if c := gcd(abs(fn), gd); c > 1 {
		fn /= c
		gd /= c
	}
	if c := gcd(abs(gn), fd); c > 1 {
		gn /= c
		fd /= c
	}
	return FromRatio(fn*gn, fd*gd)
}

// MulInt returns f * n.
func (f Fraction) MulInt(n int64) Fraction {
	return f.Mul(FromInt(n))
}

// Reciprocal returns 1/f. It panics when f is zero.
func (f Fraction) Reciprocal() Fraction {
	n, d := f.Ratio()
	if n == 0 {
		panic("fraction: reciprocal of zero")
	}
	if n < 0 {
		return FromRatio(-d, -n)
	}
	return FromRatio(d, n)
}

// Cmp compares f and g and returns -1, 0 or +1.
func (f Fraction) Cmp(g Fraction) int {
	if f.Integer != g.Integer {
		if f.Integer < g.Integer {
			return -1
		}
		return 1
	}
	a := uint64(f.Num) * uint64(g.den())
	b := uint64(g.Num) * uint64(f.den())
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports whether f == g.
func (f Fraction) Equal(g Fraction) bool { return f.Cmp(g) == 0 }

// Greater reports whether f > g.
func (f Fraction) Greater(g Fraction) bool { return f.Cmp(g) > 0 }

// GreaterEqual reports whether f >= g.
func (f Fraction) GreaterEqual(g Fraction) bool { return f.Cmp(g) >= 0 }

// Less reports whether f < g.
func (f Fraction) Less(g Fraction) bool { return f.Cmp(g) < 0 }

// IsZero reports whether f == 0.
func (f Fraction) IsZero() bool { return f.Integer == 0 && f.Num == 0 }

// Sign returns -1, 0 or +1.
func (f Fraction) Sign() int { return f.Cmp(Zero) }

// Float64 converts f to the nearest double.
func (f Fraction) Float64() float64 {
	return float64(f.Integer) + float64(f.Num)/float64(f.den())
}

// IsMultipleOf reports whether f is an integer multiple of unit.
func (f Fraction) IsMultipleOf(unit Fraction) bool {
	if unit.IsZero() {
		return f.IsZero()
	}
	q := f.Mul(unit.Reciprocal())
	return q.Num == 0
}

// String renders f as "I", "N/D" or "I+N/D".
func (f Fraction) String() string {
	switch {
	case f.Num == 0:
		return fmt.Sprintf("%d", f.Integer)
	case f.Integer == 0:
		return fmt.Sprintf("%d/%d", f.Num, f.den())
	}
	return fmt.Sprintf("%d+%d/%d", f.Integer, f.Num, f.den())
}

// MarshalText implements encoding.TextMarshaler.
func (f Fraction) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fraction) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Parse reads a fraction in the form written by String.
func Parse(s string) (Fraction, error) {
	integer := int64(0)
	rest := s
	if i, r, ok := strings.Cut(s, "+"); ok {
		v, err := strconv.ParseInt(i, 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid fraction %q: %w", s, err)
		}
		integer, rest = v, r
	} else if !strings.Contains(s, "/") {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Zero, fmt.Errorf("invalid fraction %q: %w", s, err)
		}
		return FromInt(v), nil
	}

	ns, ds, ok := strings.Cut(rest, "/")
	if !ok {
		return Zero, fmt.Errorf("invalid fraction %q", s)
	}
	n, err := strconv.ParseInt(ns, 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid fraction %q: %w", s, err)
	}
	d, err := strconv.ParseInt(ds, 10, 64)
	if err != nil || d <= 0 {
		return Zero, fmt.Errorf("invalid fraction %q: bad denominator", s)
	}
	return FromInt(integer).Add(FromRatio(n, d)), nil
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
