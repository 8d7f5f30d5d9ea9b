package tlsgen

import (
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCA(t *testing.T) {
	t.Parallel()

	ca, err := GenerateCA("hashicorp.lab", 365*24*time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(ca.CertPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.True(t, cert.IsCA)
	assert.Equal(t, "hashicorp.lab", cert.Subject.CommonName)
}

func TestIssueCert_SignedByCA(t *testing.T) {
	t.Parallel()

	ca, err := GenerateCA("hashicorp.lab", 365*24*time.Hour)
	require.NoError(t, err)

	leaf, err := IssueCert(ca, "vault.hashicorp.lab", nil, 365*24*time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(leaf.CertPEM)
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)

	assert.Contains(t, cert.DNSNames, "vault.hashicorp.lab")
	assert.Contains(t, cert.DNSNames, "localhost")
	require.Len(t, cert.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", cert.IPAddresses[0].String())

	caBlock, _ := pem.Decode(ca.CertPEM)
	caCert, err := x509.ParseCertificate(caBlock.Bytes)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(caCert)
	_, err = cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: "vault.hashicorp.lab"})
	assert.NoError(t, err)
}

func TestIssueCert_ExtraSANs(t *testing.T) {
	t.Parallel()

	ca, err := GenerateCA("hashicorp.lab", 24*time.Hour)
	require.NoError(t, err)

	leaf, err := IssueCert(ca, "vault.hashicorp.lab", []string{"vault.vault.svc"}, 24*time.Hour)
	require.NoError(t, err)

	block, _ := pem.Decode(leaf.CertPEM)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.Contains(t, cert.DNSNames, "vault.vault.svc")
}

func TestBundleRoundTrip(t *testing.T) {
	t.Parallel()

	ca, err := GenerateCA("hashicorp.lab", 24*time.Hour)
	require.NoError(t, err)

	encoded, err := ca.Encode()
	require.NoError(t, err)

	decoded, err := DecodeBundle(encoded)
	require.NoError(t, err)
	assert.Equal(t, ca.CertPEM, decoded.CertPEM)
	assert.Equal(t, ca.KeyPEM, decoded.KeyPEM)

	_, err = DecodeBundle([]byte("not json"))
	assert.Error(t, err)
}
