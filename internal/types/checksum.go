package types

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// ChecksumKind identifies the digest algorithm of a Checksum.
type ChecksumKind string

const (
	ChecksumMD5  ChecksumKind = "md5"
	ChecksumSHA1 ChecksumKind = "sha1"
)

func (k ChecksumKind) hexLen() int {
	if k == ChecksumMD5 {
		return md5.Size * 2
	}
	return sha1.Size * 2
}

// Checksum is a content digest in its canonical textual form
// "<kind>$<lowercase-hex>". The zero value means "no checksum".
type Checksum struct {
	Kind ChecksumKind
	Hex  string
}

// IsZero reports whether c carries no digest.
func (c Checksum) IsZero() bool { return c.Hex == "" }

// String returns the canonical serialization, or "" for the zero value.
func (c Checksum) String() string {
	if c.IsZero() {
		return ""
	}
	return string(c.Kind) + "$" + c.Hex
}

// ParseChecksum parses the canonical "<kind>$<hex>" form.
func ParseChecksum(s string) (Checksum, error) {
	kind, digest, ok := strings.Cut(s, "$")
	if !ok {
		return Checksum{}, fmt.Errorf("malformed checksum %q", s)
	}
	ck := ChecksumKind(kind)
	if ck != ChecksumMD5 && ck != ChecksumSHA1 {
		return Checksum{}, fmt.Errorf("unknown checksum kind %q", kind)
	}
	digest = strings.ToLower(digest)
	if len(digest) != ck.hexLen() {
		return Checksum{}, fmt.Errorf("checksum %q: want %d hex digits, have %d", s, ck.hexLen(), len(digest))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return Checksum{}, fmt.Errorf("checksum %q: %w", s, err)
	}
	return Checksum{Kind: ck, Hex: digest}, nil
}

// SHA1Checksum digests r with SHA-1 and returns the checksum plus the number
// of bytes read.
func SHA1Checksum(r io.Reader) (Checksum, int64, error) {
	h := sha1.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Checksum{}, 0, err
	}
	return Checksum{Kind: ChecksumSHA1, Hex: hex.EncodeToString(h.Sum(nil))}, n, nil
}

// MD5Checksum digests r with MD5 and returns the checksum plus the number of
// bytes read.
func MD5Checksum(r io.Reader) (Checksum, int64, error) {
	h := md5.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return Checksum{}, 0, err
	}
	return Checksum{Kind: ChecksumMD5, Hex: hex.EncodeToString(h.Sum(nil))}, n, nil
}
