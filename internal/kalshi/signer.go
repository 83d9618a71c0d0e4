package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

type signer struct {
	apiKeyID string
	key      *rsa.PrivateKey
	now      func() time.Time
}

func newSigner(apiKeyID string, pemBytes []byte) (*signer, error) {
	if apiKeyID == "" {
		return nil, fmt.Errorf("kalshi: private key set without api key id")
	}
	key, err := ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, err
	}
	return &signer{apiKeyID: apiKeyID, key: key}, nil
}

// ParsePrivateKey accepts PKCS#8 or PKCS#1 RSA keys in PEM form.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("kalshi: no PEM block in private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		pkcs1Key, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if pkcs1Err != nil {
			return nil, fmt.Errorf("kalshi: parse private key: %w (pkcs1: %v)", err, pkcs1Err)
		}
		return pkcs1Key, nil
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi: expected RSA private key, got %T", key)
	}
	return rsaKey, nil
}

// sign sets the access headers. The signed message is
// millisecond timestamp + method + path.
func (s *signer) sign(req *http.Request, method, path string) error {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	ts := strconv.FormatInt(now().UnixMilli(), 10)

	hash := sha256.Sum256([]byte(ts + method + path))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, hash[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return fmt.Errorf("kalshi: RSA sign: %w", err)
	}

	req.Header.Set("KALSHI-ACCESS-KEY", s.apiKeyID)
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", base64.StdEncoding.EncodeToString(sig))
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", ts)
	return nil
}
