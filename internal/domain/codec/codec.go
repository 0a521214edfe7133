// Package codec implements the standalone encode/transform primitives
// shared by the Intruder processor chain (spec.md §4.12) and any ad hoc
// encode/decode tooling, in the vein of the Python original's decoder
// module: base64, URL, hex, and the common digest functions.
package codec

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"html"
	"net/url"
)

// Base64Encode returns the standard base64 encoding of s.
func Base64Encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// Base64Decode decodes a standard base64 string.
func Base64Decode(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// URLEncode percent-encodes s for use as a query parameter value.
func URLEncode(s string) string {
	return url.QueryEscape(s)
}

// URLDecode reverses URLEncode.
func URLDecode(s string) (string, error) {
	return url.QueryUnescape(s)
}

// HTMLEncode escapes s for safe inclusion in HTML text.
func HTMLEncode(s string) string {
	return html.EscapeString(s)
}

// HTMLDecode reverses HTMLEncode, including named and numeric entities.
func HTMLDecode(s string) string {
	return html.UnescapeString(s)
}

// HexEncode returns the lowercase hex encoding of s.
func HexEncode(s string) string {
	return hex.EncodeToString([]byte(s))
}

// HexDecode reverses HexEncode.
func HexDecode(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MD5 returns the lowercase hex MD5 digest of s.
func MD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA1 returns the lowercase hex SHA-1 digest of s.
func SHA1(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256 returns the lowercase hex SHA-256 digest of s.
func SHA256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
