package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

var armor = regexp.MustCompile(`-----(BEGIN|END)[A-Z ]*PRIVATE KEY-----`)

// ParsePrivateKey decodes an RSA private key stored as PEM text. Armor markers
// and all whitespace are dropped before base64 decoding, so keys whose line
// breaks were mangled by a parameter store still parse. PKCS#8 is tried
// first, then PKCS#1.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	body := armor.ReplaceAllString(pemText, "")
	body = strings.Join(strings.Fields(body), "")
	if body == "" {
		return nil, fmt.Errorf("private key is empty")
	}

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}

	if k, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		rsaKey, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is %T, want RSA", k)
		}
		return rsaKey, nil
	}

	k, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return k, nil
}
