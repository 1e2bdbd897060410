package component

import (
	"fmt"
	"strings"
)

// Type tags the package ecosystem an [Identity] belongs to.
type Type int

const (
	TypeOther Type = iota
	TypeNpm
	TypeMaven
	TypePip
	TypeConan
	TypeVcpkg
	TypeCargo
	TypeGo
	TypeGit
	TypeLinux
	TypeSpdx
	TypeSwift
	TypeDockerReference
)

var typeNames = map[Type]string{
	TypeOther:           "other",
	TypeNpm:             "npm",
	TypeMaven:           "maven",
	TypePip:             "pip",
	TypeConan:           "conan",
	TypeVcpkg:           "vcpkg",
	TypeCargo:           "cargo",
	TypeGo:              "go",
	TypeGit:             "git",
	TypeLinux:           "linux",
	TypeSpdx:            "spdx",
	TypeSwift:           "swift",
	TypeDockerReference: "docker",
}

// purlTypes maps ecosystems to package-url types. Ecosystems without an
// entry have no PURL form.
var purlTypes = map[Type]string{
	TypeNpm:             "npm",
	TypeMaven:           "maven",
	TypePip:             "pypi",
	TypeConan:           "conan",
	TypeVcpkg:           "generic",
	TypeCargo:           "cargo",
	TypeGo:              "golang",
	TypeGit:             "generic",
	TypeSwift:           "swift",
	TypeDockerReference: "docker",
	TypeOther:           "generic",
}

// String returns the lowercase tag used in identity strings and exports.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType is the inverse of [Type.String]. Matching is case-insensitive.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return TypeOther, fmt.Errorf("unknown component type %q", s)
}

// Types returns every known ecosystem tag in declaration order.
func Types() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := TypeOther; t <= TypeDockerReference; t++ {
		out = append(out, t)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
