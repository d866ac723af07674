package utils

import (
	"testing"
)

func TestGenerateID(t *testing.T) {
	id := GenerateID("bil")
	if !ValidateBillID(id) {
		t.Errorf("expected bil- prefix, got %s", id)
	}
	if len(id) != len("bil-")+10 {
		t.Errorf("unexpected id length: %s", id)
	}
	if GenerateID("bil") == id {
		t.Errorf("expected unique ids")
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword("hunter2", hash) {
		t.Errorf("expected password to match")
	}
	if CheckPassword("hunter3", hash) {
		t.Errorf("expected wrong password to be rejected")
	}
}

func TestFormatPence(t *testing.T) {
	tests := map[int64]string{
		0:      "£0.00",
		5:      "£0.05",
		1000:   "£10.00",
		123456: "£1234.56",
	}
	for pence, want := range tests {
		if got := FormatPence(pence); got != want {
			t.Errorf("FormatPence(%d) = %s, want %s", pence, got, want)
		}
	}
}
