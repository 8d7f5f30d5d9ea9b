// Package keygen generates credential material for lab components: SSH key
// pairs for sandbox targets, random passwords, and AEAD root keys.
package keygen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds a PEM private key and the matching authorized_keys public key.
type KeyPair struct {
	PrivateKey []byte
	PublicKey  []byte
}

// GenerateRSAKeyPair generates a new RSA key pair.
func GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, err
	}

	if err := privateKey.Validate(); err != nil {
		return nil, err
	}

	privDER := x509.MarshalPKCS1PrivateKey(privateKey)
	privateKeyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: privDER,
	})

	publicKey, err := ssh.NewPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, err
	}

	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  ssh.MarshalAuthorizedKey(publicKey),
	}, nil
}

// passwordAlphabet excludes characters that tend to break shell quoting and
// YAML embedding.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomPassword generates a random password of the given length.
func RandomPassword(length int) ([]byte, error) {
	if length < 1 {
		return nil, fmt.Errorf("password length must be positive, got %d", length)
	}

	password := make([]byte, length)
	size := len(passwordAlphabet)
	raw := make([]byte, 1)
	for i := range password {
		// Rejection sampling keeps the distribution uniform.
		for {
			if _, err := rand.Read(raw); err != nil {
				return nil, err
			}
			if int(raw[0]) < 256-(256%size) {
				password[i] = passwordAlphabet[int(raw[0])%size]
				break
			}
		}
	}
	return password, nil
}

// RandomAEADKey generates a base64-encoded 256-bit key, the format Boundary
// expects for its root, worker-auth, and recovery KMS keys.
func RandomAEADKey() ([]byte, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)
	return encoded, nil
}
