package account

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateID(t *testing.T) {
	cases := []struct {
		id  string
		err error
	}{
		{"1111", nil},
		{"AAA", nil},
		{"ABCDEF0123456789", nil},
		{"11", ErrAccountLength},
		{"ABCDEF0123456789X", ErrAccountLength},
		{"abc", ErrAccountFormat},
		{"11-1", ErrAccountFormat},
	}
	for _, tc := range cases {
		if err := ValidateID(tc.id); !errors.Is(err, tc.err) {
			t.Errorf("ValidateID(%q) = %v, want %v", tc.id, err, tc.err)
		}
	}
}

func TestValidateKey(t *testing.T) {
	cases := []struct {
		key string
		err error
	}{
		{strings.Repeat("A", 16), nil},
		{strings.Repeat("0", 24), nil},
		{strings.Repeat("F", 32), nil},
		{strings.Repeat("A", 15), ErrKeyLength},
		{strings.Repeat("G", 16), ErrKeyFormat},
	}
	for _, tc := range cases {
		if err := ValidateKey(tc.key); !errors.Is(err, tc.err) {
			t.Errorf("ValidateKey(%q) = %v, want %v", tc.key, err, tc.err)
		}
	}
}

func TestNewNormalizesID(t *testing.T) {
	a, err := New(" abc1 ", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.ID != "ABC1" {
		t.Fatalf("ID = %q, want ABC1", a.ID)
	}
	if a.Encrypted() {
		t.Fatal("Encrypted = true without a key")
	}
}

func TestNewRejectsZeroSkew(t *testing.T) {
	if _, err := NewWithSkew("1111", "", SkewPolicy{}, time.UTC); !errors.Is(err, ErrSkewPolicy) {
		t.Fatalf("err = %v, want ErrSkewPolicy", err)
	}
}

func TestValidTimestamp(t *testing.T) {
	a, err := New("1111", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		ts   time.Time
		want bool
	}{
		{"now", now, true},
		{"oldest allowed", now.Add(-40 * time.Second), true},
		{"just too old", now.Add(-40*time.Second - time.Microsecond), false},
		{"newest allowed", now.Add(20 * time.Second), true},
		{"just too new", now.Add(20*time.Second + time.Microsecond), false},
	}
	for _, tc := range cases {
		if got := a.ValidTimestamp(tc.ts, now); got != tc.want {
			t.Errorf("%s: ValidTimestamp = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestUnboundedSkew(t *testing.T) {
	a, err := NewWithSkew("1111", "", SkewPolicy{Unbounded: true}, time.UTC)
	if err != nil {
		t.Fatalf("NewWithSkew: %v", err)
	}
	now := time.Now()
	if !a.ValidTimestamp(now.Add(-24*time.Hour), now) {
		t.Fatal("ValidTimestamp = false under an unbounded policy")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	a, err := New("AAA", "AAAAAAAAAAAAAAAA")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	content := `|Nri1/CL501]_13:45:00,08-30-2026`
	block, err := a.Encrypt(content)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := a.Decrypt(block)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != content {
		t.Fatalf("round trip = %q, want %q", got, content)
	}
}

func TestDecryptWithoutKey(t *testing.T) {
	a, err := New("1111", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := a.Decrypt("00"); !errors.Is(err, ErrNotEncrypted) {
		t.Fatalf("err = %v, want ErrNotEncrypted", err)
	}
}

func TestDecryptRejectsBadBlocks(t *testing.T) {
	a, err := New("AAA", "AAAAAAAAAAAAAAAA")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, block := range []string{"zz", "AB", ""} {
		if _, err := a.Decrypt(block); err == nil {
			t.Errorf("Decrypt(%q) succeeded", block)
		}
	}
}

func TestRegistryLookup(t *testing.T) {
	a, err := New("1111", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	reg := NewRegistry(a)
	if reg.Get(" 1111 ") != a {
		t.Fatal("Get with surrounding whitespace missed")
	}
	if reg.Get("2222") != nil {
		t.Fatal("Get returned an account for an unknown id")
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}
