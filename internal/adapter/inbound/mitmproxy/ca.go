// Package mitmproxy implements the Proxy Engine (spec.md §4.6): a
// CONNECT-tunneling, TLS-terminating forward proxy that MITMs HTTPS
// traffic with per-host leaf certificates signed by a locally generated
// root CA, and drives every parsed request through the Intercept Gate,
// Rule Engine, Cookie overlay, Passive Scanner, History, Spider, and
// Event Bus.
package mitmproxy

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CAConfig locates the root CA's cert/key files on disk and the identity
// baked into the generated certificate.
type CAConfig struct {
	CertFile      string
	KeyFile       string
	Organization  string
	ValidityYears int
}

// CAManager owns the root CA keypair and mints per-host leaf certificates
// signed by it, caching nothing itself — CertCache is the caching layer.
type CAManager struct {
	mu      sync.Mutex
	caCert  *x509.Certificate
	caKey   *rsa.PrivateKey
	rawCert []byte // DER, kept for re-signing leaves and CACertPEM
	org     string
}

// NewCAManager loads an existing root CA from cfg's file paths, or
// generates and persists a new one if neither file exists. It is an
// error for exactly one of the two files to exist.
func NewCAManager(cfg CAConfig, logger *slog.Logger) (*CAManager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	certExists := fileExists(cfg.CertFile)
	keyExists := fileExists(cfg.KeyFile)

	switch {
	case certExists && keyExists:
		return loadCA(cfg)
	case !certExists && !keyExists:
		return generateCA(cfg, logger)
	default:
		return nil, fmt.Errorf("ca: inconsistent state: cert exists=%v, key exists=%v", certExists, keyExists)
	}
}

func loadCA(cfg CAConfig) (*CAManager, error) {
	pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("ca: load keypair: %w", err)
	}
	cert, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("ca: parse loaded cert: %w", err)
	}
	key, ok := pair.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("ca: loaded key is not RSA")
	}
	return &CAManager{
		caCert:  cert,
		caKey:   key,
		rawCert: pair.Certificate[0],
		org:     cfg.Organization,
	}, nil
}

func generateCA(cfg CAConfig, logger *slog.Logger) (*CAManager, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("ca: generate key: %w", err)
	}

	years := cfg.ValidityYears
	if years <= 0 {
		years = 10
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cfg.Organization},
			CommonName:   cfg.Organization + " Root CA",
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(years, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("ca: create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("ca: parse generated cert: %w", err)
	}

	if err := persistCA(cfg, der, key); err != nil {
		return nil, err
	}

	logger.Info("generated new root CA", "organization", cfg.Organization, "cert_file", cfg.CertFile)

	return &CAManager{
		caCert:  cert,
		caKey:   key,
		rawCert: der,
		org:     cfg.Organization,
	}, nil
}

func persistCA(cfg CAConfig, der []byte, key *rsa.PrivateKey) error {
	if dir := filepath.Dir(cfg.CertFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("ca: create cert dir: %w", err)
		}
	}
	if dir := filepath.Dir(cfg.KeyFile); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("ca: create key dir: %w", err)
		}
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(cfg.CertFile, certPEM, 0o644); err != nil {
		return fmt.Errorf("ca: write cert file: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(cfg.KeyFile, keyPEM, 0o600); err != nil {
		return fmt.Errorf("ca: write key file: %w", err)
	}
	return nil
}

// GenerateCert mints a leaf certificate for domain, signed by the root
// CA, and returns the two-certificate chain (leaf, CA) ready for use in
// a tls.Config.Certificates entry.
func (cm *CAManager) GenerateCert(domain string) (*tls.Certificate, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	leafKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("ca: generate leaf key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{cm.org},
			CommonName:   domain,
		},
		DNSNames:    []string{domain},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().AddDate(1, 0, 0),
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, cm.caCert, &leafKey.PublicKey, cm.caKey)
	if err != nil {
		return nil, fmt.Errorf("ca: sign leaf for %s: %w", domain, err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("ca: parse leaf for %s: %w", domain, err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der, cm.rawCert},
		PrivateKey:  leafKey,
		Leaf:        leaf,
	}, nil
}

// CACertPEM returns the root CA certificate, PEM-encoded, for clients to
// import as a trust anchor.
func (cm *CAManager) CACertPEM() []byte {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cm.rawCert})
}

func randomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("ca: generate serial: %w", err)
	}
	return serial, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
