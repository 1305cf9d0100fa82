package srs

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Quality is the user's recall grade for a single review.
type Quality int

const (
	Fail Quality = iota // Could not recall.
	Hard                // Recalled with serious difficulty.
	Good                // Recalled with some effort.
	Easy                // Recalled effortlessly.
)

// Qualities lists every valid grade in ascending order.
var Qualities = [...]Quality{Fail, Hard, Good, Easy}

var (
	qualityNames  = [...]string{Fail: "Fail", Hard: "Hard", Good: "Good", Easy: "Easy"}
	qualityByName = map[string]Quality{
		"Fail": Fail,
		"Hard": Hard,
		"Good": Good,
		"Easy": Easy,
	}
)

var (
	_ fmt.Stringer             = Quality(0)
	_ json.Marshaler           = Quality(0)
	_ json.Unmarshaler         = (*Quality)(nil)
	_ encoding.TextMarshaler   = Quality(0)
	_ encoding.TextUnmarshaler = (*Quality)(nil)
)

// ParseQuality converts a raw 0..3 grade into a Quality.
// The returned error wraps ErrInvalidQuality and names the rejected value.
func ParseQuality(v int) (Quality, error) {
	q := Quality(v)
	if !q.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuality, v)
	}
	return q, nil
}

// IsValid reports whether q is one of Fail, Hard, Good or Easy.
func (q Quality) IsValid() bool {
	_, ok := q.easeDelta()
	return ok
}

// Passed reports whether q counts as a successful recall.
// Hard is treated as a failure and resets the card.
func (q Quality) Passed() bool {
	return q >= Good
}

// easeDelta is the ease-factor adjustment for q. The switch is the single
// place that enumerates grades; ok is false for anything outside the enum.
func (q Quality) easeDelta() (delta float64, ok bool) {
	switch q {
	case Fail:
		return -0.2, true
	case Hard:
		return -0.15, true
	case Good:
		return 0, true
	case Easy:
		return 0.15, true
	default:
		return 0, false
	}
}

// String returns the grade name. Invalid values render as "Quality(n)".
func (q Quality) String() string {
	if q.IsValid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// MarshalText implements encoding.TextMarshaler.
func (q Quality) MarshalText() ([]byte, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}
	return []byte(qualityNames[q]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (q *Quality) UnmarshalText(text []byte) error {
	v, ok := qualityByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidQuality, text)
	}
	*q = v
	return nil
}

// MarshalJSON implements json.Marshaler. Quality serializes as its name.
func (q Quality) MarshalJSON() ([]byte, error) {
	text, err := q.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. It accepts either the grade
// name ("Good") or its number (2).
func (q *Quality) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := ParseQuality(n)
		if err != nil {
			return err
		}
		*q = v
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidQuality, data)
	}
	return q.UnmarshalText([]byte(s))
}
