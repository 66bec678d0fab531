package domain

import (
	"testing"
	"time"
)

func TestParsePurpose(t *testing.T) {
	testCases := []struct {
		in      string
		want    Purpose
		wantErr bool
	}{
		{"", PurposeVerification, false},
		{"verification", PurposeVerification, false},
		{"reset", PurposeReset, false},
		{"login", PurposeLogin, false},
		{"general", PurposeGeneral, false},
		{"RESET", "", true},
		{"mfa", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParsePurpose(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParsePurpose(%q) should fail", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePurpose(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParsePurpose(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestChallenge_ExpiredAt_Boundary(t *testing.T) {
	exp := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := &Challenge{Valid: true, ExpiresAt: exp}

	if c.ExpiredAt(exp.Add(-time.Nanosecond)) {
		t.Error("challenge should not be expired just before ExpiresAt")
	}
	if !c.ExpiredAt(exp) {
		t.Error("challenge should be expired at exactly ExpiresAt")
	}
	if !c.ExpiredAt(exp.Add(time.Millisecond)) {
		t.Error("challenge should be expired after ExpiresAt")
	}
}

func TestChallenge_TerminalAndActive(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Minute)

	testCases := []struct {
		name         string
		c            Challenge
		wantTerminal bool
		wantActive   bool
	}{
		{"fresh", Challenge{Valid: true, ExpiresAt: future}, false, true},
		{"verified", Challenge{Valid: true, Verified: true, ExpiresAt: future}, true, false},
		{"invalidated", Challenge{Valid: false, ExpiresAt: future}, true, false},
		{"expired", Challenge{Valid: true, ExpiresAt: now}, false, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.Terminal(); got != tc.wantTerminal {
				t.Errorf("Terminal() = %v, want %v", got, tc.wantTerminal)
			}
			if got := tc.c.Active(now); got != tc.wantActive {
				t.Errorf("Active() = %v, want %v", got, tc.wantActive)
			}
		})
	}
}

func TestChallenge_SupersededExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := &Challenge{CreatedAt: created, ExpiresAt: created.Add(5 * time.Minute)}
	if got := c.SupersededExpiry(created.Add(time.Second)); !got.Equal(created.Add(time.Second)) {
		t.Errorf("later now: got %v", got)
	}
	for _, now := range []time.Time{created, created.Add(-time.Second)} {
		if got := c.SupersededExpiry(now); !got.After(created) {
			t.Errorf("now %v: expiry %v not after creation", now, got)
		}
	}
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	if p.CodeLength != 6 || p.TTL != 5*time.Minute || p.ResendCooldown != time.Minute {
		t.Errorf("unexpected defaults: %+v", p)
	}
	if p.MaxIssuancePerAccount() != 15 {
		t.Errorf("MaxIssuancePerAccount = %d, want 15", p.MaxIssuancePerAccount())
	}
}
