package errors

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateScanRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"existing dir", dir, false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"missing", filepath.Join(dir, "nope"), true},
		{"regular file", file, true},
		{"null byte", "foo\x00bar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateScanRoot(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateScanRoot(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidPath) {
				t.Errorf("code = %v, want %v", GetCode(err), ErrCodeInvalidPath)
			}
			if err == nil && !filepath.IsAbs(got) {
				t.Errorf("ValidateScanRoot(%q) = %q, want absolute", tt.input, got)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"basename", "package.json", false},
		{"star", "requirements*.txt", false},
		{"doublestar", "**/var/lib/dpkg/status", false},
		{"braces", "*.{yml,yaml}", false},

		{"empty", "", true},
		{"backslash", `dir\file`, true},
		{"unclosed class", "foo[", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePattern(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateArgKey(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"npm.includeDev", false},
		{"linux.distribution", false},
		{"", true},
		{"has space", true},
		{"a=b", true},
	}
	for _, tt := range tests {
		if err := ValidateArgKey(tt.input); (err != nil) != tt.wantErr {
			t.Errorf("ValidateArgKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}

func TestValidateComponentName(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"lodash", false},
		{"@types/node", false},
		{"org.apache.commons:commons-lang3", false},
		{"", true},
		{"  ", true},
		{"bad\nname", true},
		{string(make([]byte, 600)), true},
	}
	for _, tt := range tests {
		err := ValidateComponentName(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateComponentName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if err != nil && !Is(err, ErrCodeInvalidComponent) {
			t.Errorf("code = %v", GetCode(err))
		}
	}
}
