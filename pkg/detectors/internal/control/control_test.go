package control

import (
	"slices"
	"strings"
	"testing"
)

func TestParagraphs(t *testing.T) {
	in := "Package: zlib\nVersion: 1.3\nDescription: compression\n more text\n\n\nPackage: fmt\nStatus: install ok installed"
	seq, errf := Paragraphs(strings.NewReader(in))
	var got []Paragraph
	for p := range seq {
		got = append(got, p)
	}
	if err := errf(); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d paragraphs, want 2", len(got))
	}
	if got[0]["Description"] != "compression\nmore text" {
		t.Errorf("Description = %q", got[0]["Description"])
	}
	if got[1]["Status"] != "install ok installed" {
		t.Errorf("Status = %q", got[1]["Status"])
	}
}

func TestParagraphsEarlyStop(t *testing.T) {
	seq, _ := Paragraphs(strings.NewReader("A: 1\n\nA: 2\n\nA: 3\n"))
	n := 0
	for range seq {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d times", n)
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"libc6 (>= 2.34), zlib1g", []string{"libc6", "zlib1g"}},
		{"a | b, c:amd64", []string{"a", "c:amd64"}},
		{"vcpkg-cmake:x64-linux, fmt[core]", []string{"vcpkg-cmake:x64-linux", "fmt"}},
		{"", nil},
	}
	for _, tt := range tests {
		if got := List(tt.in); !slices.Equal(got, tt.want) {
			t.Errorf("List(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
