package types

import (
	"strings"
	"testing"
)

func TestParseChecksum(t *testing.T) {
	const sha1Empty = "sha1$da39a3ee5e6b4b0d3255bfef95601890afd80709"
	c, err := ParseChecksum(sha1Empty)
	if err != nil {
		t.Fatalf("ParseChecksum failed: %v", err)
	}
	if c.Kind != ChecksumSHA1 {
		t.Errorf("expected sha1 kind, got %q", c.Kind)
	}
	if c.String() != sha1Empty {
		t.Errorf("round trip changed form: %q", c.String())
	}
}

func TestParseChecksumMD5(t *testing.T) {
	const md5Empty = "md5$d41d8cd98f00b204e9800998ecf8427e"
	c, err := ParseChecksum(md5Empty)
	if err != nil {
		t.Fatalf("ParseChecksum failed: %v", err)
	}
	if c.Kind != ChecksumMD5 {
		t.Errorf("expected md5 kind, got %q", c.Kind)
	}
}

func TestParseChecksumUppercaseNormalized(t *testing.T) {
	c, err := ParseChecksum("sha1$DA39A3EE5E6B4B0D3255BFEF95601890AFD80709")
	if err != nil {
		t.Fatalf("ParseChecksum failed: %v", err)
	}
	if c.Hex != strings.ToLower(c.Hex) {
		t.Errorf("hex digits not normalized: %q", c.Hex)
	}
}

func TestParseChecksumRejects(t *testing.T) {
	cases := []string{
		"",
		"da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"sha256$da39a3ee5e6b4b0d3255bfef95601890afd80709",
		"sha1$da39",
		"sha1$zz39a3ee5e6b4b0d3255bfef95601890afd80709",
		"md5$da39a3ee5e6b4b0d3255bfef95601890afd80709",
	}
	for _, input := range cases {
		if _, err := ParseChecksum(input); err == nil {
			t.Errorf("ParseChecksum(%q) should have failed", input)
		}
	}
}

func TestSHA1Checksum(t *testing.T) {
	c, n, err := SHA1Checksum(strings.NewReader("hello world!"))
	if err != nil {
		t.Fatalf("SHA1Checksum failed: %v", err)
	}
	if n != 12 {
		t.Errorf("expected 12 bytes read, got %d", n)
	}
	if c.Kind != ChecksumSHA1 || len(c.Hex) != 40 {
		t.Errorf("unexpected checksum: %+v", c)
	}
}

func TestZeroChecksum(t *testing.T) {
	var c Checksum
	if !c.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if c.String() != "" {
		t.Errorf("zero value should serialize empty, got %q", c.String())
	}
}

func TestTreeConflictValidate(t *testing.T) {
	tc := &TreeConflict{
		VictimBasename: "a.txt",
		Kind:           KindFile,
		Operation:      OperationUpdate,
		Action:         ActionDeleted,
		Reason:         ReasonEdited,
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("valid conflict rejected: %v", err)
	}

	tc.Operation = "teleport"
	if err := tc.Validate(); err == nil {
		t.Error("unknown operation should fail validation")
	}
}
