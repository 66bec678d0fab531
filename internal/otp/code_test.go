package otp

import (
	"bytes"
	"regexp"
	"testing"

	"pgregory.net/rapid"
)

func TestGenerateCode_ReturnsSixDigits(t *testing.T) {
	code, err := GenerateCode(6)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if len(code) != 6 {
		t.Errorf("code length = %d, want 6", len(code))
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			t.Errorf("code contains non-digit: %c", c)
		}
	}
}

func TestGenerateCode_AnyLengthMatchesDigits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 32).Draw(t, "length")
		code, err := GenerateCode(n)
		if err != nil {
			t.Fatalf("GenerateCode(%d): %v", n, err)
		}
		if !regexp.MustCompile(`^[0-9]+$`).MatchString(code) || len(code) != n {
			t.Fatalf("GenerateCode(%d) = %q", n, code)
		}
	})
}

func TestGenerateCode_InvalidLength(t *testing.T) {
	for _, n := range []int{0, -1, 33} {
		if _, err := GenerateCode(n); err != ErrInvalidLength {
			t.Errorf("GenerateCode(%d) err = %v, want ErrInvalidLength", n, err)
		}
	}
}

func TestGenerateCode_KeepsLeadingZero(t *testing.T) {
	old := reader
	defer func() { reader = old }()
	// 250..255 are rejected; 0 and 10 both map to '0'.
	reader = bytes.NewReader([]byte{255, 0, 10, 1, 2, 3, 4, 5, 6, 7, 8, 9})

	code, err := GenerateCode(6)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if code != "001234" {
		t.Errorf("code = %q, want %q", code, "001234")
	}
}

func TestGenerateCode_ReaderError(t *testing.T) {
	old := reader
	defer func() { reader = old }()
	reader = bytes.NewReader(nil)

	if _, err := GenerateCode(6); err == nil {
		t.Fatal("expected error when randomness source is exhausted")
	}
}

func TestGenerateCode_DigitDistribution(t *testing.T) {
	counts := make([]int, 10)
	for i := 0; i < 2000; i++ {
		code, err := GenerateCode(10)
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		for _, c := range code {
			counts[c-'0']++
		}
	}
	// 20000 digits, 2000 expected per bucket; bounds are far outside normal variance.
	for d, n := range counts {
		if n < 1500 || n > 2500 {
			t.Errorf("digit %d seen %d times, want ~2000", d, n)
		}
	}
}

func TestHashCode_Consistent(t *testing.T) {
	hash1 := HashCode("123456")
	hash2 := HashCode("123456")

	if hash1 != hash2 {
		t.Errorf("HashCode not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if HashCode("654321") == hash1 {
		t.Error("HashCode produced same hash for different inputs")
	}
}

func TestCodeEqual(t *testing.T) {
	stored := HashCode("123456")

	if !CodeEqual("123456", stored) {
		t.Error("CodeEqual should match correct code")
	}
	if CodeEqual("654321", stored) {
		t.Error("CodeEqual should reject incorrect code")
	}
	if CodeEqual("123456", "a"+stored) {
		t.Error("CodeEqual should reject hash with different length")
	}
	if CodeEqual("", "") {
		t.Error("CodeEqual should not match empty inputs")
	}
	if CodeEqual("", stored) {
		t.Error("CodeEqual should not match empty code")
	}
}
