package payments

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	secret := "whsec_test"
	now := time.Now()
	tolerance := 5 * time.Minute

	header := SignPayload(body, secret, now)
	if err := VerifySignature(body, header, secret, tolerance, now); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	secret := "whsec_test"
	now := time.Now()
	tolerance := 5 * time.Minute

	header := SignPayload(body, secret, now)

	if err := VerifySignature([]byte(`{"id":"evt_2"}`), header, secret, tolerance, now); !errors.Is(err, ErrBadSignature) {
		t.Errorf("modified body error = %v, want bad signature", err)
	}
	if err := VerifySignature(body, header, "other-secret", tolerance, now); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong secret error = %v, want bad signature", err)
	}
	if err := VerifySignature(body, "t=notanumber,v1=abcd", secret, tolerance, now); !errors.Is(err, ErrBadSignature) {
		t.Errorf("garbage timestamp error = %v, want bad signature", err)
	}
	if err := VerifySignature(body, "v1=abcd", secret, tolerance, now); !errors.Is(err, ErrBadSignature) {
		t.Errorf("missing timestamp error = %v, want bad signature", err)
	}
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	err := VerifySignature([]byte("{}"), "", "secret", time.Minute, time.Now())
	if !errors.Is(err, ErrMissingSignature) {
		t.Errorf("error = %v, want missing signature", err)
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	body := []byte("{}")
	secret := "whsec_test"
	now := time.Now()

	old := SignPayload(body, secret, now.Add(-10*time.Minute))
	if err := VerifySignature(body, old, secret, 5*time.Minute, now); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("old timestamp error = %v, want stale", err)
	}

	future := SignPayload(body, secret, now.Add(10*time.Minute))
	if err := VerifySignature(body, future, secret, 5*time.Minute, now); !errors.Is(err, ErrStaleTimestamp) {
		t.Errorf("future timestamp error = %v, want stale", err)
	}

	// Zero tolerance disables the freshness check.
	if err := VerifySignature(body, old, secret, 0, now); err != nil {
		t.Errorf("tolerance disabled but rejected: %v", err)
	}
}

func TestVerifySignatureMultipleCandidates(t *testing.T) {
	body := []byte("{}")
	secret := "whsec_test"
	now := time.Now()

	// A rotated-secret header carries an old v1 alongside the valid one.
	valid := SignPayload(body, secret, now)
	stale := SignPayload(body, "old-secret", now)
	_, staleSig, _ := strings.Cut(stale, ",v1=")
	header := valid + ",v1=" + staleSig

	if err := VerifySignature(body, header, secret, time.Minute, now); err != nil {
		t.Errorf("header with extra candidate rejected: %v", err)
	}
}
