package main

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_init_schema.sql", true, 1, "init_schema"},
		{"0002_seed_conti.sql", true, 2, "seed_conti"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""},  // wrong order
		{"0001_init_schema.sql.bak", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if (matches != nil) != tt.valid {
				t.Fatalf("match = %v, want valid = %v", matches != nil, tt.valid)
			}
			if !tt.valid {
				return
			}

			version, err := strconv.Atoi(matches[1])
			if err != nil {
				t.Fatalf("version %q did not parse: %v", matches[1], err)
			}
			if version != tt.version {
				t.Errorf("version = %d, want %d", version, tt.version)
			}
			if matches[2] != tt.name {
				t.Errorf("name = %q, want %q", matches[2], tt.name)
			}
		})
	}
}

func TestMigrationChecksumConsistency(t *testing.T) {
	content := []byte("CREATE TABLE conti (conto STRING);")
	same := []byte("CREATE TABLE conti (conto STRING);")
	different := []byte("CREATE TABLE scadenze (obligation_id STRING);")

	sum := fmt.Sprintf("%x", sha256.Sum256(content))
	if sum != fmt.Sprintf("%x", sha256.Sum256(same)) {
		t.Error("Same content should produce the same checksum")
	}
	if sum == fmt.Sprintf("%x", sha256.Sum256(different)) {
		t.Error("Different content should produce different checksums")
	}
}
