package template

import (
	"strconv"
	"strings"
)

// maxConditionalPasses bounds conditional evaluation so malformed or
// deeply nested blocks can never loop forever.
const maxConditionalPasses = 10

const (
	ifOpen  = "{{#if "
	ifClose = "{{/if}}"
)

// renderString evaluates {{#if ...}} blocks innermost-first, then
// substitutes {{a.b.c}} variables. Unknown paths become empty strings.
func renderString(s string, data map[string]interface{}) string {
	s = evalConditionals(s, data)
	return substitute(s, data)
}

func evalConditionals(s string, data map[string]interface{}) string {
	for pass := 0; pass < maxConditionalPasses; pass++ {
		// The last opener before the first closer that follows it is
		// always an innermost block.
		open := strings.LastIndex(s, ifOpen)
		if open < 0 {
			break
		}
		exprEnd := strings.Index(s[open:], "}}")
		if exprEnd < 0 {
			break
		}
		exprEnd += open
		closeIdx := strings.Index(s[exprEnd:], ifClose)
		if closeIdx < 0 {
			break
		}
		closeIdx += exprEnd

		expr := strings.TrimSpace(s[open+len(ifOpen) : exprEnd])
		body := s[exprEnd+2 : closeIdx]

		var replacement string
		if evalCondition(expr, data) {
			replacement = body
		}
		s = s[:open] + replacement + s[closeIdx+len(ifClose):]
	}

	// Strip whatever conditional markers survived the pass budget.
	for {
		open := strings.Index(s, ifOpen)
		if open < 0 {
			break
		}
		end := strings.Index(s[open:], "}}")
		if end < 0 {
			s = s[:open]
			break
		}
		s = s[:open] + s[open+end+2:]
	}
	return strings.ReplaceAll(s, ifClose, "")
}

// evalCondition understands three forms: "eq lhs rhs", "gt lhs rhs" and
// a bare path tested for truthiness. Operands are quoted literals,
// numeric literals or dotted paths.
func evalCondition(expr string, data map[string]interface{}) bool {
	parts := splitOperands(expr)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "eq":
		if len(parts) != 3 {
			return false
		}
		return stringify(resolveOperand(parts[1], data)) == stringify(resolveOperand(parts[2], data))
	case "gt":
		if len(parts) != 3 {
			return false
		}
		lhs, lok := toNumber(resolveOperand(parts[1], data))
		rhs, rok := toNumber(resolveOperand(parts[2], data))
		return lok && rok && lhs > rhs
	default:
		v, ok := lookup(data, parts[0])
		return ok && truthy(v)
	}
}

// splitOperands splits on whitespace but keeps double-quoted strings as
// a single operand.
func splitOperands(expr string) []string {
	var (
		out      []string
		current  strings.Builder
		inQuotes bool
	)
	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
		}
	}
	for _, r := range expr {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			current.WriteRune(r)
		case !inQuotes && (r == ' ' || r == '\t'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return out
}

func resolveOperand(op string, data map[string]interface{}) interface{} {
	if len(op) >= 2 && strings.HasPrefix(op, `"`) && strings.HasSuffix(op, `"`) {
		return op[1 : len(op)-1]
	}
	if n, err := strconv.ParseFloat(op, 64); err == nil {
		return n
	}
	v, ok := lookup(data, op)
	if !ok {
		return nil
	}
	return v
}

func substitute(s string, data map[string]interface{}) string {
	var out strings.Builder
	for {
		open := strings.Index(s, "{{")
		if open < 0 {
			out.WriteString(s)
			break
		}
		end := strings.Index(s[open:], "}}")
		if end < 0 {
			out.WriteString(s)
			break
		}
		end += open

		out.WriteString(s[:open])
		token := strings.TrimSpace(s[open+2 : end])
		// Control tokens were already handled; anything left is noise.
		if token != "" && !strings.HasPrefix(token, "#") && !strings.HasPrefix(token, "/") {
			if v, ok := lookup(data, token); ok {
				out.WriteString(stringify(v))
			}
		}
		s = s[end+2:]
	}
	return out.String()
}

// lookup walks a dotted path through nested string-keyed maps.
func lookup(data map[string]interface{}, path string) (interface{}, bool) {
	if data == nil {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, part := range parts {
		switch m := current.(type) {
		case map[string]interface{}:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return ""
	}
}

func toNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	default:
		return true
	}
}
