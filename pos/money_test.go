package pos_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/pos-core/pos"
)

func TestRound_ActsOnMagnitude(t *testing.T) {
	cases := []struct {
		in   string
		mode pos.RoundingMode
		want string
	}{
		{"10.005", pos.RoundFloor, "10"},
		{"10.005", pos.RoundHalfUp, "10.01"},
		{"10.001", pos.RoundCeil, "10.01"},
		{"-10.005", pos.RoundFloor, "-10"},
		{"-10.001", pos.RoundCeil, "-10.01"},
		{"-10.005", pos.RoundHalfUp, "-10.01"},
	}
	for _, c := range cases {
		got := pos.Round(dec(c.in), c.mode)
		assert.True(t, dec(c.want).Equal(got), "%s %s: want %s, got %s", c.mode, c.in, c.want, got)
	}
}

func TestMinorUnits_RoundTrip(t *testing.T) {
	// 11000 minor units mean 110.00
	d := pos.FromMinorUnits(11000)
	assert.True(t, dec("110").Equal(d))
	assert.Equal(t, int64(11000), pos.ToMinorUnits(d))
}

func TestTerminalID_Format(t *testing.T) {
	assert.Equal(t, "demo-0001-3", pos.TerminalID("demo", "0001", 3))
}
