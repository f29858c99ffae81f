package moment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringRoundTrip(t *testing.T) {
	a := assert.New(t)
	cases := []Moment{
		{Secs: 0, Nanos: 0},
		{Secs: 1700000000, Nanos: 123456789},
		{Secs: -5, Nanos: 1},
	}
	for _, m := range cases {
		s := m.String()
		got, err := Parse(s)
		a.NoError(err)
		a.Equal(m, got, "round trip of %q", s)
	}
}

func TestParseTruncatesAndPads(t *testing.T) {
	a := assert.New(t)

	m, err := Parse("5.5")
	a.NoError(err)
	a.Equal(Moment{Secs: 5, Nanos: 500000000}, m)

	m, err = Parse("5.123456789999")
	a.NoError(err)
	a.Equal(Moment{Secs: 5, Nanos: 123456789}, m)

	m, err = Parse("42")
	a.NoError(err)
	a.Equal(Moment{Secs: 42, Nanos: 0}, m)
}

func TestNewNormalizesOverflow(t *testing.T) {
	a := assert.New(t)
	m := New(10, 1_500_000_000)
	a.Equal(int64(11), m.Secs)
	a.Equal(uint32(500_000_000), m.Nanos)
}

func TestEqualPrecision(t *testing.T) {
	a := assert.New(t)

	m1 := Moment{Secs: 100, Nanos: 123456999}
	m2 := Moment{Secs: 100, Nanos: 123456001}
	a.True(m1.EqualPrecision(m2, 6), "equal at microsecond precision")
	a.False(m1.EqualPrecision(m2, 9), "differ at nanosecond precision")

	m3 := Moment{Secs: 100, Nanos: 123999999}
	a.False(m1.EqualPrecision(m3, 6), "differ at microsecond precision")
}

func TestBeforeAfter(t *testing.T) {
	a := assert.New(t)
	early := Moment{Secs: 1, Nanos: 0}
	late := Moment{Secs: 1, Nanos: 1}
	a.True(early.Before(late))
	a.True(late.After(early))
	a.False(early.Before(early))
}

func TestIsZero(t *testing.T) {
	a := assert.New(t)
	a.True(Moment{}.IsZero())
	a.False(Moment{Secs: 1}.IsZero())
}
