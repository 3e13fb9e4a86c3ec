package messaging

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"081234567890", "6281234567890"},
		{"+6281234567890", "6281234567890"},
		{"6281234567890", "6281234567890"},
		{"81234567890", "6281234567890"},
		{"0812-3456-7890", "6281234567890"},
		{"(0812) 3456 7890", "6281234567890"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in, "62"); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"081234567890", "+6281234567890", "6281234567890", "812345"}
	for _, in := range inputs {
		once := NormalizePhone(in, "62")
		twice := NormalizePhone(once, "62")
		if once != twice {
			t.Errorf("NormalizePhone not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestNormalizePhoneOtherPrefix(t *testing.T) {
	if got := NormalizePhone("0501234567", "971"); got != "971501234567" {
		t.Errorf("NormalizePhone with prefix 971 = %q", got)
	}
}
