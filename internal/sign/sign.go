// Package sign computes the venue's request authentication material.
// The signer holds no state beyond the credential, performs no I/O and
// never retries; a fresh timestamp must be generated for every request
// or the venue rejects it outside its clock-skew tolerance.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"coinflow/models"
)

// Signed request headers expected by the venue's REST API.
const (
	HeaderKey        = "ACCESS-KEY"
	HeaderSign       = "ACCESS-SIGN"
	HeaderTimestamp  = "ACCESS-TIMESTAMP"
	HeaderPassphrase = "ACCESS-PASSPHRASE"
)

// loginPath is the virtual path signed for websocket authentication.
const loginPath = "/users/self/verify"

type Signer struct {
	cred models.Credential
}

func New(cred models.Credential) Signer {
	return Signer{cred: cred}
}

// Timestamp returns the current time in the venue's expected format,
// milliseconds since epoch as a decimal string.
func Timestamp() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Sign computes Base64(HMAC-SHA256(secret, timestamp+method+path+body)).
// Identical inputs always produce identical output.
func (s Signer) Sign(timestamp, method, path, body string) string {
	mac := hmac.New(sha256.New, []byte(s.cred.Secret))
	mac.Write([]byte(timestamp + method + path + body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Headers builds the full signed header set for one REST request.
func (s Signer) Headers(timestamp, method, path, body string) http.Header {
	h := http.Header{}
	h.Set(HeaderKey, s.cred.Key)
	h.Set(HeaderSign, s.Sign(timestamp, method, path, body))
	h.Set(HeaderTimestamp, timestamp)
	h.Set(HeaderPassphrase, s.cred.Passphrase)
	return h
}

// LoginArg builds the websocket login payload for the given timestamp.
func (s Signer) LoginArg(timestamp string) models.LoginArg {
	return models.LoginArg{
		APIKey:     s.cred.Key,
		Passphrase: s.cred.Passphrase,
		Timestamp:  timestamp,
		Signature:  s.Sign(timestamp, http.MethodGet, loginPath, ""),
	}
}
