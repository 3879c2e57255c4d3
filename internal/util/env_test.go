package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value    string
		def      bool
		expected bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
		{" true ", false, true},
	}

	for _, c := range cases {
		t.Setenv("ZAPFUNNEL_TEST_BOOL", c.value)
		if got := ParseBoolEnv("ZAPFUNNEL_TEST_BOOL", c.def); got != c.expected {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, expected %v", c.value, c.def, got, c.expected)
		}
	}
}
