package mitmproxy

import (
	"crypto/tls"
	"log/slog"
	"sync"
	"time"
)

// cacheEntry holds a cached TLS certificate and its expiration time.
type cacheEntry struct {
	cert      *tls.Certificate
	expiresAt time.Time
}

// CertCache is a thread-safe per-domain TLS certificate cache. On a miss
// it delegates to a CAManager to mint a new leaf cert. Entries expire
// after a configured TTL, at which point the next access regenerates.
type CertCache struct {
	mu     sync.RWMutex
	certs  map[string]*cacheEntry
	ca     *CAManager
	ttl    time.Duration
	logger *slog.Logger
}

// NewCertCache creates a CertCache backed by ca, expiring entries after ttl.
func NewCertCache(ca *CAManager, ttl time.Duration, logger *slog.Logger) *CertCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CertCache{
		certs:  make(map[string]*cacheEntry),
		ca:     ca,
		ttl:    ttl,
		logger: logger,
	}
}

// GetCert returns a TLS certificate for domain, generating and caching
// one if none is cached or the cached entry has expired.
func (cc *CertCache) GetCert(domain string) (*tls.Certificate, error) {
	cc.mu.RLock()
	entry, ok := cc.certs[domain]
	if ok && time.Now().Before(entry.expiresAt) {
		cc.mu.RUnlock()
		return entry.cert, nil
	}
	cc.mu.RUnlock()

	cc.mu.Lock()
	defer cc.mu.Unlock()

	entry, ok = cc.certs[domain]
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.cert, nil
	}

	cc.logger.Debug("generating leaf certificate", "domain", domain)
	cert, err := cc.ca.GenerateCert(domain)
	if err != nil {
		return nil, err
	}

	cc.certs[domain] = &cacheEntry{cert: cert, expiresAt: time.Now().Add(cc.ttl)}
	return cert, nil
}

// Size returns the current number of cached certificates.
func (cc *CertCache) Size() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.certs)
}

// Clear empties the cache, forcing regeneration on next access.
func (cc *CertCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.certs = make(map[string]*cacheEntry)
}
