// Package uritemplate parses path templates with {name} placeholders.
//
// Templates look like:
//
//	/greeting/{id}
//	/users/{user}/posts/{post:[0-9]+}
//
// A placeholder may carry a ":pattern" suffix. The pattern is accepted for
// compatibility with server-side route syntax and ignored on expansion.
package uritemplate

import (
	"fmt"
	"net/url"
	"strings"
)

// Template is a parsed path template. It is immutable and safe for concurrent use.
type Template struct {
	raw   string
	parts []part
	names []string
}

type part struct {
	literal string
	name    string // non-empty for placeholders
}

// Parse parses a path template.
//
// Returns an error if:
//   - A '{' is not closed
//   - A '}' appears without a matching '{'
//   - A placeholder has an empty name
//   - Placeholders are nested
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	seen := make(map[string]bool)

	rest := raw
	for len(rest) > 0 {
		open := strings.IndexByte(rest, '{')
		closeIdx := strings.IndexByte(rest, '}')
		if closeIdx >= 0 && (open < 0 || closeIdx < open) {
			return nil, fmt.Errorf("template %q: unexpected '}' at offset %d", raw, len(raw)-len(rest)+closeIdx)
		}
		if open < 0 {
			t.parts = append(t.parts, part{literal: rest})
			break
		}
		if open > 0 {
			t.parts = append(t.parts, part{literal: rest[:open]})
		}
		rest = rest[open+1:]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			return nil, fmt.Errorf("template %q: unclosed '{'", raw)
		}
		inner := rest[:end]
		if strings.IndexByte(inner, '{') >= 0 {
			return nil, fmt.Errorf("template %q: nested '{'", raw)
		}
		name, _, _ := strings.Cut(inner, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("template %q: empty placeholder name", raw)
		}
		t.parts = append(t.parts, part{name: name})
		if !seen[name] {
			seen[name] = true
			t.names = append(t.names, name)
		}
		rest = rest[end+1:]
	}
	return t, nil
}

// String returns the raw template.
func (t *Template) String() string {
	return t.raw
}

// Names returns the distinct placeholder names in order of first appearance.
func (t *Template) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Expand substitutes vars into the template. Values are escaped as path segments,
// so a value containing '/' does not introduce a new segment.
func (t *Template) Expand(vars map[string]string) (string, error) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.name == "" {
			b.WriteString(p.literal)
			continue
		}
		v, ok := vars[p.name]
		if !ok {
			return "", fmt.Errorf("template %q: no value for {%s}", t.raw, p.name)
		}
		b.WriteString(url.PathEscape(v))
	}
	return b.String(), nil
}

// JoinPath joins a base path and a path, keeping exactly one '/' between them.
// An empty path yields the base unchanged.
func JoinPath(base, path string) string {
	switch {
	case path == "":
		return base
	case base == "":
		return path
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
