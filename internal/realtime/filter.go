package realtime

import (
	"fmt"
	"strings"
)

const (
	OpEq  = "eq"
	OpNeq = "neq"
	OpIn  = "in"
)

// Filter narrows a subscription to rows whose column matches, written as
// column=op.value, e.g. chat_id=eq.42 or status=in.(open,closed).
type Filter struct {
	Column string
	Op     string
	Values []string
}

func ParseFilter(s string) (Filter, error) {
	col, rest, ok := strings.Cut(s, "=")
	if !ok || col == "" {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}
	op, value, ok := strings.Cut(rest, ".")
	if !ok {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}

	f := Filter{Column: strings.TrimSpace(col), Op: op}
	switch op {
	case OpEq, OpNeq:
		f.Values = []string{unquote(value)}
	case OpIn:
		if !strings.HasPrefix(value, "(") || !strings.HasSuffix(value, ")") {
			return Filter{}, fmt.Errorf("invalid in-list %q", value)
		}
		for _, part := range strings.Split(value[1:len(value)-1], ",") {
			if part = unquote(strings.TrimSpace(part)); part != "" {
				f.Values = append(f.Values, part)
			}
		}
		if len(f.Values) == 0 {
			return Filter{}, fmt.Errorf("empty in-list in %q", s)
		}
	default:
		return Filter{}, fmt.Errorf("unsupported filter operator %q", op)
	}
	return f, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// Matches reports whether record satisfies the filter. A missing column never
// matches.
func (f Filter) Matches(record map[string]any) bool {
	v, ok := record[f.Column]
	if !ok {
		return false
	}
	got := formatScalar(v)
	switch f.Op {
	case OpEq:
		return got == f.Values[0]
	case OpNeq:
		return got != f.Values[0]
	case OpIn:
		for _, want := range f.Values {
			if got == want {
				return true
			}
		}
	}
	return false
}

func (f Filter) String() string {
	if f.Op == OpIn {
		return fmt.Sprintf("%s=in.(%s)", f.Column, strings.Join(f.Values, ","))
	}
	return fmt.Sprintf("%s=%s.%s", f.Column, f.Op, strings.Join(f.Values, ""))
}
