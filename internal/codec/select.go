package codec

import (
	"fmt"
	"strings"
)

// Applicability is a codec's answer to "can you handle this descriptor".
type Applicability struct {
	WillHandle       bool
	IsNative         bool
	HardwareAssisted bool
	// RelativeLoss is 0 for lossless, growing with quality loss.
	RelativeLoss int
	// AvgBitrate is in bits per second, 0 when unknown.
	AvgBitrate int64
}

// Criterion chooses among willing codecs.
type Criterion int

const (
	Fastest Criterion = iota
	BestFidelity
	Smallest
	Custom
)

func (c Criterion) String() string {
	switch c {
	case Fastest:
		return "fastest"
	case BestFidelity:
		return "best-fidelity"
	case Smallest:
		return "smallest"
	case Custom:
		return "custom"
	}
	return fmt.Sprintf("Criterion(%d)", int(c))
}

// ParseCriterion maps a configuration string to a Criterion.
func ParseCriterion(s string) (Criterion, error) {
	switch strings.ToLower(s) {
	case "", "fastest":
		return Fastest, nil
	case "best-fidelity", "fidelity", "best":
		return BestFidelity, nil
	case "smallest":
		return Smallest, nil
	case "custom":
		return Custom, nil
	}
	return Fastest, fmt.Errorf("unknown selection criterion %q", s)
}

// ScoreFunc ranks an applicability for the Custom criterion. Higher wins.
type ScoreFunc func(Applicability) float64

// Score ranks a for criterion c. Higher wins. custom is used only for the
// Custom criterion; a nil custom scores every codec equally.
func Score(a Applicability, c Criterion, custom ScoreFunc) float64 {
	b2f := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	switch c {
	case Fastest:
		return 4*b2f(a.HardwareAssisted) + 2*b2f(a.IsNative) - float64(a.AvgBitrate)/1e12
	case BestFidelity:
		return -float64(a.RelativeLoss)*4 + b2f(a.IsNative)
	case Smallest:
		if a.AvgBitrate <= 0 {
			return -1e18
		}
		return -float64(a.AvgBitrate)
	case Custom:
		if custom == nil {
			return 0
		}
		return custom(a)
	}
	return 0
}
