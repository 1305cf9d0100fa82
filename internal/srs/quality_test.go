package srs

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseQuality(t *testing.T) {
	for i, want := range Qualities {
		got, err := ParseQuality(i)
		if err != nil {
			t.Fatalf("ParseQuality(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("ParseQuality(%d) = %v, want %v", i, got, want)
		}
	}

	_, err := ParseQuality(7)
	if !errors.Is(err, ErrInvalidQuality) {
		t.Fatalf("ParseQuality(7) error = %v, want ErrInvalidQuality", err)
	}
	if !strings.Contains(err.Error(), "7") {
		t.Errorf("error %q should name the rejected value", err)
	}
}

func TestQualityString(t *testing.T) {
	tests := []struct {
		q    Quality
		want string
	}{
		{Fail, "Fail"},
		{Hard, "Hard"},
		{Good, "Good"},
		{Easy, "Easy"},
		{Quality(9), "Quality(9)"},
	}
	for _, tt := range tests {
		if got := tt.q.String(); got != tt.want {
			t.Errorf("Quality(%d).String() = %q, want %q", int(tt.q), got, tt.want)
		}
	}
}

func TestQualityPassed(t *testing.T) {
	if Fail.Passed() || Hard.Passed() {
		t.Error("Fail and Hard should not count as passed")
	}
	if !Good.Passed() || !Easy.Passed() {
		t.Error("Good and Easy should count as passed")
	}
}

func TestQualityJSON(t *testing.T) {
	data, err := json.Marshal(Easy)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"Easy"` {
		t.Errorf("Marshal(Easy) = %s, want \"Easy\"", data)
	}

	var q Quality
	if err := json.Unmarshal([]byte(`"Hard"`), &q); err != nil || q != Hard {
		t.Errorf("Unmarshal(\"Hard\") = %v, %v", q, err)
	}
	if err := json.Unmarshal([]byte(`2`), &q); err != nil || q != Good {
		t.Errorf("Unmarshal(2) = %v, %v", q, err)
	}
	for _, bad := range []string{`4`, `-1`, `"Perfect"`, `true`} {
		if err := json.Unmarshal([]byte(bad), &q); !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("Unmarshal(%s) error = %v, want ErrInvalidQuality", bad, err)
		}
	}

	if _, err := json.Marshal(Quality(5)); err == nil {
		t.Error("Marshal(Quality(5)) should fail")
	}
}

func TestQualityAsMapKey(t *testing.T) {
	data, err := json.Marshal(map[Quality]int{Good: 6})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"Good":6}` {
		t.Errorf("Marshal = %s, want {\"Good\":6}", data)
	}
}
