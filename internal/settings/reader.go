package settings

import (
	"strconv"
	"strings"
)

// Reader type-converts the flat string-valued settings map, falling back to
// a caller-supplied default when a key is absent. Grounded on
// original_source/rpi/server/api/admin.py's _SettingsReader helper.
type Reader struct {
	values map[Key]string
}

func NewReader(values map[Key]string) Reader {
	return Reader{values: values}
}

func (r Reader) Int(key Key, def int) int {
	v, ok := r.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (r Reader) Bool(key Key, def bool) bool {
	v, ok := r.values[key]
	if !ok {
		return def
	}
	return v == "1"
}

func (r Reader) List(key Key, def []string) []string {
	v, ok := r.values[key]
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
