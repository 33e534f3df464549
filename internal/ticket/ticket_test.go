package ticket

import (
	"testing"
	"time"
)

var key = []byte("0123456789abcdef0123456789abcdef")

func TestIssueVerify(t *testing.T) {
	tok, exp, err := Issue("c1", key, time.Minute)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expiry %v is not in the future", exp)
	}
	claims, err := Verify(tok, key)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.ChallengeID() != "c1" {
		t.Errorf("ChallengeID() = %q, want c1", claims.ChallengeID())
	}
}

func TestVerifyRejects(t *testing.T) {
	good, _, err := Issue("c1", key, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	expired, _, err := Issue("c1", key, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		key   []byte
	}{
		{"empty", "", key},
		{"wrong key", good, []byte("another key")},
		{"tampered", good[:len(good)-2] + "xx", key},
		{"expired", expired, key},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Verify(tt.token, tt.key); err == nil {
				t.Error("Verify accepted the token")
			}
		})
	}
}

func TestIssueErrors(t *testing.T) {
	if _, _, err := Issue("", key, time.Minute); err == nil {
		t.Error("Issue accepted an empty challenge id")
	}
	if _, _, err := Issue("c1", nil, time.Minute); err == nil {
		t.Error("Issue accepted an empty key")
	}
}
