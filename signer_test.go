package awsauth_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/allaboutapps/awsauth"
	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/util"
)

func getSignTime(t *testing.T) time.Time {
	t.Helper()

	signTime, err := time.Parse(util.TimeFormatISO8601DateTime, "20150830T123600Z")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	return signTime
}

func TestSignerSign(t *testing.T) {
	req, err := http.NewRequest("GET", "https://iam.amazonaws.com/?Action=ListUsers&Version=2010-05-08", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")

	provider := credentials.NewStaticProvider("AKIDEXAMPLE", "wJalrXUtnFEMI/K7MDENG+bPxRfiCYEXAMPLEKEY", "")
	signer := awsauth.NewSignerWithTimeNowFunc(provider, func() time.Time { return getSignTime(t) })

	err = signer.Sign(context.Background(), req, nil, "iam", "us-east-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expectedSig := "Signature=5d672d79c15b13162d9279b0855cfba6789a8edb4c82c400e06b5924a6f2b5d7"

	auth := req.Header.Get("Authorization")
	if len(auth) == 0 {
		t.Fatal("expected Authorization header to be set")
	}
	if got := auth[len(auth)-len(expectedSig):]; got != expectedSig {
		t.Errorf("expected %q, got %q", expectedSig, got)
	}
}

func TestSignerSignAnonymous(t *testing.T) {
	req, err := http.NewRequest("GET", "https://iam.amazonaws.com/", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	signer := awsauth.NewSigner(credentials.NewEmptyProvider())

	err = signer.Sign(context.Background(), req, nil, "iam", "us-east-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The anonymous sentinel leaves the request unsigned.
	if auth := req.Header.Get("Authorization"); len(auth) > 0 {
		t.Errorf("expected no Authorization header, got %q", auth)
	}
}

func TestSignerSignProviderFailure(t *testing.T) {
	errRetrieve := errors.New("retrieval failed")

	provider := credentials.ProviderFunc(func(_ context.Context) (credentials.Credentials, error) {
		return credentials.Credentials{}, errRetrieve
	})

	req, err := http.NewRequest("GET", "https://iam.amazonaws.com/", nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	signer := awsauth.NewSigner(provider)

	err = signer.Sign(context.Background(), req, nil, "iam", "us-east-1")
	if !errors.Is(err, errRetrieve) {
		t.Fatalf("expected %v, got %v", errRetrieve, err)
	}
}
