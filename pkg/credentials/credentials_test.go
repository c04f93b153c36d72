package credentials

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/allaboutapps/awsauth/pkg/util"
)

func TestCredentialsDeriveSigningKey(t *testing.T) {
	creds := Credentials{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY",
	}

	signTime, err := time.Parse(util.TimeFormatISO8601DateTime, "20150830T123600Z")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	key := creds.DeriveSigningKey(signTime, "us-east-1", "iam")

	expectedKey := "c4afb1cc5771d871763a393e44b703571b55cc28424d1a5e86da6ed3c154a4b9"
	if e, g := expectedKey, hex.EncodeToString(key); e != g {
		t.Errorf("expected %q, got %q", e, g)
	}
}

func TestCredentialsHasKeys(t *testing.T) {
	creds := Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	if e, g := true, creds.HasKeys(); e != g {
		t.Errorf("expected %v, got %v", e, g)
	}

	creds = Credentials{AccessKeyID: "AKID"}
	if e, g := false, creds.HasKeys(); e != g {
		t.Errorf("expected %v, got %v", e, g)
	}

	creds = Credentials{}
	if e, g := false, creds.HasKeys(); e != g {
		t.Errorf("expected %v, got %v", e, g)
	}
}

func TestCredentialsExpiry(t *testing.T) {
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	creds := Credentials{AccessKeyID: "AKID", SecretAccessKey: "SECRET"}
	if creds.Expired(now) {
		t.Error("expected non-expiring credentials to never expire")
	}
	if creds.ExpiresWithin(now, 24*time.Hour) {
		t.Error("expected non-expiring credentials to never be expiring")
	}

	creds.CanExpire = true
	creds.Expires = now.Add(10 * time.Minute)

	if creds.Expired(now) {
		t.Error("expected credentials to not be expired yet")
	}
	if !creds.ExpiresWithin(now, 15*time.Minute) {
		t.Error("expected credentials to expire within 15 minutes")
	}
	if creds.ExpiresWithin(now, 5*time.Minute) {
		t.Error("expected credentials to not expire within 5 minutes")
	}
	if !creds.Expired(now.Add(10 * time.Minute)) {
		t.Error("expected credentials to be expired at their expiration time")
	}
}
