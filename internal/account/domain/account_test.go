package domain

import (
	"errors"
	"testing"
)

func TestNotActiveError(t *testing.T) {
	err := error(&NotActiveError{Status: "Suspended"})
	if err.Error() != "account is suspended" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrAccountNotActive) {
		t.Error("NotActiveError should unwrap to ErrAccountNotActive")
	}
	if (&NotActiveError{}).Error() != ErrAccountNotActive.Error() {
		t.Error("empty status should fall back to the sentinel message")
	}
}
