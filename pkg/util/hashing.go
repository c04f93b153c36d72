package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"
)

func HMACSHA256(key []byte, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	_, _ = h.Write(data)
	return h.Sum(nil)
}

// DeriveSigningKey derives a HMAC signing key from the secret access key in
// accordance with the AWS Signature Version 4 specification using the signing
// time as well as the region and service of the request.
func DeriveSigningKey(secretAccessKey string, t time.Time, region string, service string) []byte {
	kDate := HMACSHA256([]byte(fmt.Sprintf("AWS4%s", secretAccessKey)), []byte(FormatDate(t)))
	kRegion := HMACSHA256(kDate, []byte(region))
	kService := HMACSHA256(kRegion, []byte(service))
	kSigning := HMACSHA256(kService, []byte(RequestTypeAWS4))
	return kSigning
}
