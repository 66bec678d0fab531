package notify

import (
	"strings"
	"testing"
	"time"

	"otp-verification-service/internal/otp/domain"
)

func TestRender_PerPurpose(t *testing.T) {
	testCases := []struct {
		purpose     domain.Purpose
		wantSubject string
		wantText    string
	}{
		{domain.PurposeVerification, "Email verification code", "Verify your email"},
		{domain.PurposeReset, "Password reset code", "Password reset request"},
		{domain.PurposeLogin, "Your one-time code", "Your one-time code"},
		{domain.PurposeGeneral, "Your one-time code", "Your one-time code"},
	}
	for _, tc := range testCases {
		t.Run(string(tc.purpose), func(t *testing.T) {
			subject, body, err := Render(Message{Code: "012345", Purpose: tc.purpose, TTL: 5 * time.Minute, DeviceName: "iPhone"})
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if subject != tc.wantSubject {
				t.Errorf("subject = %q, want %q", subject, tc.wantSubject)
			}
			for _, want := range []string{tc.wantText, "012345", "5 minutes", "Requested from: iPhone"} {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestRender_EscapesDeviceName(t *testing.T) {
	_, body, err := Render(Message{Code: "123456", TTL: time.Minute, DeviceName: "<script>x</script>"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("device name must be HTML-escaped")
	}
}

func TestRender_OmitsEmptyDevice(t *testing.T) {
	_, body, err := Render(Message{Code: "123456", TTL: 90 * time.Second})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(body, "Requested from") {
		t.Error("device line should be omitted without a device name")
	}
	if !strings.Contains(body, "2 minutes") {
		t.Error("TTL should round up to whole minutes")
	}
}
