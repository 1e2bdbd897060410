package detector

import (
	"strconv"
	"strings"

	"github.com/matzehuels/depscout/pkg/errors"
)

// Args are free-form detector arguments. Scan options key them by detector
// id, as in "npm.includeDev"; a detector receives the result of [Args.For],
// so it reads "includeDev".
type Args map[string]string

// ParseArgs parses "key=value" pairs.
func ParseArgs(pairs []string) (Args, error) {
	args := make(Args, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, errors.New(errors.ErrCodeInvalidConfig, "detector argument %q is not key=value", p)
		}
		k = strings.TrimSpace(k)
		if err := errors.ValidateArgKey(k); err != nil {
			return nil, err
		}
		args[k] = strings.TrimSpace(v)
	}
	return args, nil
}

// For returns the arguments addressed to the detector with the given id,
// with the "id." prefix removed.
func (a Args) For(id string) Args {
	prefix := id + "."
	out := Args{}
	for k, v := range a {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			out[rest] = v
		}
	}
	return out
}

// String returns the value for key or def.
func (a Args) String(key, def string) string {
	if v, ok := a[key]; ok && v != "" {
		return v
	}
	return def
}

// Bool returns the value for key parsed as a boolean, or def when missing
// or unparsable.
func (a Args) Bool(key string, def bool) bool {
	v, ok := a[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns the value for key parsed as an integer, or def.
func (a Args) Int(key string, def int) int {
	v, ok := a[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
