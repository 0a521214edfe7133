package mitmproxy

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCAConfig(t *testing.T) CAConfig {
	t.Helper()
	dir := t.TempDir()
	return CAConfig{
		CertFile:      filepath.Join(dir, "ca-cert.pem"),
		KeyFile:       filepath.Join(dir, "ca-key.pem"),
		Organization:  "Test CA",
		ValidityYears: 1,
	}
}

func TestNewCAManager_GeneratesNew(t *testing.T) {
	cfg := testCAConfig(t)
	cm, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewCAManager: %v", err)
	}

	if !fileExists(cfg.CertFile) {
		t.Fatalf("cert file not created: %s", cfg.CertFile)
	}
	if !fileExists(cfg.KeyFile) {
		t.Fatalf("key file not created: %s", cfg.KeyFile)
	}

	info, err := os.Stat(cfg.KeyFile)
	if err != nil {
		t.Fatalf("stat key file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("key file perm = %o, want 0600", perm)
	}

	if !cm.caCert.IsCA {
		t.Error("generated cert is not a CA")
	}
	if cm.caCert.Subject.Organization[0] != "Test CA" {
		t.Errorf("org = %q, want %q", cm.caCert.Subject.Organization[0], "Test CA")
	}

	if _, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile); err != nil {
		t.Fatalf("LoadX509KeyPair from generated files: %v", err)
	}
}

func TestNewCAManager_LoadsExisting(t *testing.T) {
	cfg := testCAConfig(t)

	cm1, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("first NewCAManager: %v", err)
	}
	cm2, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("second NewCAManager: %v", err)
	}

	if cm1.caCert.SerialNumber.Cmp(cm2.caCert.SerialNumber) != 0 {
		t.Errorf("serial mismatch: %s vs %s", cm1.caCert.SerialNumber, cm2.caCert.SerialNumber)
	}
}

func TestNewCAManager_InconsistentFiles(t *testing.T) {
	cfg := testCAConfig(t)

	if err := os.MkdirAll(filepath.Dir(cfg.CertFile), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(cfg.CertFile, []byte("fake"), 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}

	if _, err := NewCAManager(cfg, testLogger()); err == nil {
		t.Fatal("expected error for inconsistent files, got nil")
	}
}

func TestGenerateCert_ValidLeaf(t *testing.T) {
	cfg := testCAConfig(t)
	cm, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewCAManager: %v", err)
	}

	cert, err := cm.GenerateCert("example.com")
	if err != nil {
		t.Fatalf("GenerateCert: %v", err)
	}

	leaf := cert.Leaf
	if leaf == nil {
		t.Fatal("leaf cert is nil")
	}
	if leaf.Subject.CommonName != "example.com" {
		t.Errorf("CN = %q, want %q", leaf.Subject.CommonName, "example.com")
	}
	if len(leaf.DNSNames) != 1 || leaf.DNSNames[0] != "example.com" {
		t.Errorf("DNSNames = %v, want [example.com]", leaf.DNSNames)
	}
	if err := leaf.CheckSignatureFrom(cm.caCert); err != nil {
		t.Errorf("CheckSignatureFrom CA: %v", err)
	}
	if len(cert.Certificate) != 2 {
		t.Errorf("chain length = %d, want 2 (leaf + CA)", len(cert.Certificate))
	}
}

func TestGenerateCert_TLSUsable(t *testing.T) {
	cfg := testCAConfig(t)
	cm, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewCAManager: %v", err)
	}

	domain := "localhost"
	leafCert, err := cm.GenerateCert(domain)
	if err != nil {
		t.Fatalf("GenerateCert: %v", err)
	}

	serverTLS := &tls.Config{Certificates: []tls.Certificate{*leafCert}}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverTLS)
	if err != nil {
		t.Fatalf("tls.Listen: %v", err)
	}
	defer ln.Close()

	serverErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()
		if tlsConn, ok := conn.(*tls.Conn); ok {
			serverErr <- tlsConn.Handshake()
		} else {
			serverErr <- fmt.Errorf("not a TLS connection")
		}
	}()

	caPool := x509.NewCertPool()
	caPool.AddCert(cm.caCert)
	clientTLS := &tls.Config{RootCAs: caPool, ServerName: domain}

	addr := ln.Addr().(*net.TCPAddr)
	conn, err := tls.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", addr.Port), clientTLS)
	if err != nil {
		t.Fatalf("tls.Dial: %v", err)
	}
	conn.Close()

	if sErr := <-serverErr; sErr != nil {
		t.Errorf("server handshake error: %v", sErr)
	}
}

func TestCACertPEM(t *testing.T) {
	cfg := testCAConfig(t)
	cm, err := NewCAManager(cfg, testLogger())
	if err != nil {
		t.Fatalf("NewCAManager: %v", err)
	}

	pemBytes := cm.CACertPEM()
	if len(pemBytes) == 0 {
		t.Fatal("CACertPEM returned empty bytes")
	}

	block, _ := pem.Decode(pemBytes)
	if block == nil {
		t.Fatal("failed to decode PEM block")
	}
	if block.Type != "CERTIFICATE" {
		t.Errorf("PEM type = %q, want CERTIFICATE", block.Type)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	if cert.SerialNumber.Cmp(cm.caCert.SerialNumber) != 0 {
		t.Errorf("serial mismatch: PEM=%s, manager=%s", cert.SerialNumber, cm.caCert.SerialNumber)
	}
}
