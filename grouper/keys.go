package grouper

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// A GroupKey is the label a group carries in output. Groups without a
// key are not present.
type GroupKey interface {
	Render() string
	IsDefault() bool
}

// The single group every session starts with.
type InitialKey struct{}

func (self InitialKey) Render() string  { return "" }
func (self InitialKey) IsDefault() bool { return false }

type StringKey struct {
	Value string
}

func (self StringKey) Render() string  { return self.Value }
func (self StringKey) IsDefault() bool { return false }

type IntKey struct {
	Value int64
}

func (self IntKey) Render() string  { return strconv.FormatInt(self.Value, 10) }
func (self IntKey) IsDefault() bool { return false }

// Catches documents which matched none of the explicit terms.
type DefaultKey struct {
	Label string
}

func (self DefaultKey) Render() string  { return self.Label }
func (self DefaultKey) IsDefault() bool { return true }

// A bucket of a metric regroup. Gutter buckets use infinities for
// their open side.
type RangeKey struct {
	Lo, Hi float64
}

func (self RangeKey) Render() string {
	return fmt.Sprintf("[%s, %s)", formatBound(self.Lo), formatBound(self.Hi))
}

func (self RangeKey) IsDefault() bool {
	return math.IsInf(self.Lo, 0) || math.IsInf(self.Hi, 0)
}

func formatBound(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type TimeRangeKey struct {
	Start, End time.Time
	Format     string
}

func (self TimeRangeKey) Render() string {
	format := self.Format
	if format == "" {
		format = time.RFC3339
	}
	return fmt.Sprintf("[%s, %s)", self.Start.UTC().Format(format),
		self.End.UTC().Format(format))
}

func (self TimeRangeKey) IsDefault() bool { return false }

// Percentile ranges are expressed in percent, e.g. [25, 50).
type PercentileKey struct {
	Lo, Hi float64
}

func (self PercentileKey) Render() string {
	return fmt.Sprintf("[%s, %s)", formatBound(self.Lo), formatBound(self.Hi))
}

func (self PercentileKey) IsDefault() bool { return false }

type RandomKey struct {
	Bucket, Of int
}

func (self RandomKey) Render() string {
	return fmt.Sprintf("%d/%d", self.Bucket, self.Of)
}

func (self RandomKey) IsDefault() bool { return false }

type SessionKey struct {
	Name string
}

func (self SessionKey) Render() string  { return self.Name }
func (self SessionKey) IsDefault() bool { return false }

var (
	negInf = math.Inf(-1)
	posInf = math.Inf(1)
)

// Gutter bucket keys for metric regroups.
func BelowRange(min float64) RangeKey {
	return RangeKey{Lo: negInf, Hi: min}
}

func AboveRange(max float64) RangeKey {
	return RangeKey{Lo: max, Hi: posInf}
}
