package spin

import (
	"crypto/rand"
	"math/big"
)

// Segment is one slice of the prize wheel. Every segment has equal 1/8
// probability; the values are not weighted.
type Segment struct {
	Index int    `json:"index"`
	Value int64  `json:"value"`
	Label string `json:"label"`
}

// IsJackpot reports whether the segment triggers the extended celebration.
func (s Segment) IsJackpot() bool { return s.Label == "JACKPOT" }

// Segments returns the fixed wheel layout.
func Segments() []Segment {
	return []Segment{
		{0, 10, "10"},
		{1, 50, "50"},
		{2, 5, "5"},
		{3, 100, "100"},
		{4, 0, "Try Again"},
		{5, 20, "20"},
		{6, 200, "JACKPOT"},
		{7, 25, "25"},
	}
}

// Picker selects a uniform index in [0, n). Injectable so tests can pin the
// outcome.
type Picker func(n int) int

// CryptoPicker draws from crypto/rand.
func CryptoPicker(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// Wheel picks prizes and the final rotation angle for the client animation.
type Wheel struct {
	segments []Segment
	pick     Picker
}

func NewWheel() *Wheel {
	return NewWheelWithPicker(CryptoPicker)
}

func NewWheelWithPicker(pick Picker) *Wheel {
	return &Wheel{segments: Segments(), pick: pick}
}

// Spin selects the winning segment.
func (w *Wheel) Spin() Segment {
	idx := w.pick(len(w.segments))
	if idx < 0 || idx >= len(w.segments) {
		idx = 0
	}
	return w.segments[idx]
}

// Angle returns the total rotation the client should animate to land on the
// given segment: five full turns plus the segment's center.
func (w *Wheel) Angle(seg Segment) float64 {
	segmentAngle := 360.0 / float64(len(w.segments))
	return 5*360 + float64(seg.Index)*segmentAngle + segmentAngle/2
}
