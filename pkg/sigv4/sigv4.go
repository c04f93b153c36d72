// Package sigv4 signs HTTP requests using AWS Signature Version 4.
//
// Signing follows the Signature Version 4 format as specified by AWS in the
// AWS General Reference, section Signing AWS requests:
// https://docs.aws.amazon.com/general/latest/gr/sigv4_signing.html
package sigv4

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/allaboutapps/awsauth/pkg/credentials"
	"github.com/allaboutapps/awsauth/pkg/util"
)

var ignoredHeaders = map[string]struct{}{
	"Authorization":   {},
	"User-Agent":      {},
	"X-Amzn-Trace-Id": {},
}

// Sign signs the provided request with the given credentials using its body,
// the requested service and region at the specified signing time.
//
// Sign modifies the request, escaping the host and URL as required and adding
// headers containing signature values. If no error is returned, the request
// provided contains all information necessary and can be executed using
// standard Go HTTP clients. Should an error be returned instead, discarding
// the request is advised since it may contain a half-completed signature.
func Sign(req *http.Request, body io.ReadSeeker, creds credentials.Credentials, service string, region string, signTime time.Time) error {
	s := &signingContext{
		request:  req,
		body:     body,
		query:    req.URL.Query(),
		creds:    creds,
		service:  service,
		region:   region,
		signTime: signTime,
	}

	return s.build()
}

type signingContext struct {
	request  *http.Request
	body     io.ReadSeeker
	query    url.Values
	creds    credentials.Credentials
	service  string
	region   string
	signTime time.Time

	credentialScope  string
	bodyHash         string
	signedHeaders    string
	canonicalHeaders string
	canonicalRequest string
	stringToSign     string
}

func (s *signingContext) build() error {
	for k := range s.query {
		sort.Strings(s.query[k])
	}

	util.SanitizeHost(s.request)

	if len(s.creds.SessionToken) > 0 {
		s.request.Header.Set("X-Amz-Security-Token", s.creds.SessionToken)
	}
	s.request.Header.Set("X-Amz-Date", util.FormatDateTime(s.signTime))

	s.buildCredentialScope()

	if err := s.buildBodyHash(); err != nil {
		return err
	}

	s.buildCanonicalHeaders()
	s.buildCanonicalRequest()
	s.buildStringToSign()
	s.addSignature()

	return nil
}

func (s *signingContext) buildCredentialScope() {
	s.credentialScope = strings.Join([]string{
		util.FormatDate(s.signTime),
		s.region,
		s.service,
		util.RequestTypeAWS4,
	}, "/")
}

// buildBodyHash sets the body hash for the signing context, using the
// X-Amz-Content-Sha256 header if available. Should no predefined hash be set,
// buildBodyHash calculates the SHA256 sum of the request's body.
func (s *signingContext) buildBodyHash() (err error) {
	hash := s.request.Header.Get("X-Amz-Content-Sha256")
	if len(hash) == 0 {
		if s.body == nil {
			hash = util.HashEmptyPayload
		} else {
			h := sha256.New()

			start, err := s.body.Seek(0, io.SeekCurrent)
			if err != nil {
				return err
			}

			defer func() {
				_, err = s.body.Seek(start, io.SeekStart)
			}()

			if _, err = io.Copy(h, s.body); err != nil {
				return err
			}

			hash = hex.EncodeToString(h.Sum(nil))
		}

		if s.service == "s3" || s.service == "glacier" {
			s.request.Header.Set("X-Amz-Content-Sha256", hash)
		}
	}

	s.bodyHash = hash

	return nil
}

// buildCanonicalHeaders creates a canonical form of the headers to be signed
// with the request. All header values are escaped before serialization.
func (s *signingContext) buildCanonicalHeaders() {
	headers := make([]string, 0)
	headerVals := make(http.Header)
	for k, vv := range s.request.Header {
		if _, ok := ignoredHeaders[http.CanonicalHeaderKey(k)]; ok {
			continue
		}

		lowerKey := strings.ToLower(k)
		headers = append(headers, lowerKey)
		headerVals[lowerKey] = vv
	}
	headers = append(headers, "host")

	sort.Strings(headers)

	s.signedHeaders = strings.Join(headers, ";")

	var sb strings.Builder
	for _, k := range headers {
		sb.WriteString(k)
		sb.WriteRune(':')
		switch {
		case k == "host":
			sb.WriteString(util.GetHost(s.request))
			fallthrough
		default:
			for idx, v := range headerVals[k] {
				if idx > 0 {
					sb.WriteRune(',')
				}
				sb.WriteString(util.TrimAll(v))
			}
			sb.WriteRune('\n')
		}
	}

	s.canonicalHeaders = sb.String()
}

// buildCanonicalRequest creates a canonical form of the request, updating the
// request's URL with the newly encoded query.
func (s *signingContext) buildCanonicalRequest() {
	s.request.URL.RawQuery = strings.Replace(s.query.Encode(), "+", "%20", -1)

	s.canonicalRequest = strings.Join([]string{
		s.request.Method,
		util.GetURLPath(s.request.URL),
		s.request.URL.RawQuery,
		s.canonicalHeaders,
		s.signedHeaders,
		s.bodyHash,
	}, "\n")
}

func (s *signingContext) buildStringToSign() {
	h := sha256.New()
	_, _ = h.Write([]byte(s.canonicalRequest))

	s.stringToSign = strings.Join([]string{
		util.Algorithm,
		util.FormatDateTime(s.signTime),
		s.credentialScope,
		hex.EncodeToString(h.Sum(nil)),
	}, "\n")
}

// addSignature derives a signing key from the credentials, creates a
// HMAC-SHA256 signature of the stringToSign and adds it to the request's
// Authorization header.
func (s *signingContext) addSignature() {
	key := s.creds.DeriveSigningKey(s.signTime, s.region, s.service)
	sig := hex.EncodeToString(util.HMACSHA256(key, []byte(s.stringToSign)))

	s.request.Header.Set("Authorization", strings.Join([]string{
		fmt.Sprintf("%s Credential=%s/%s", util.Algorithm, s.creds.AccessKeyID, s.credentialScope),
		fmt.Sprintf("SignedHeaders=%s", s.signedHeaders),
		fmt.Sprintf("Signature=%s", sig),
	}, ", "))
}
