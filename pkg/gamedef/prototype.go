package gamedef

import (
	"fmt"
	"strings"

	"github.com/yoremi/nwscript-go/pkg/nwscript"
)

// ParsePrototype reads a function declaration as written in nwscript.nss:
//
//	string FloatToString(float fFloat, int nWidth=18, int nDecimals=9)
//
// Parameter names and default values are optional; every parameter after
// the first one with a default must have one too.
func ParsePrototype(proto string, engineTypes []string) (nwscript.Function, error) {
	var f nwscript.Function
	proto = strings.TrimSuffix(strings.TrimSpace(proto), ";")
	open := strings.IndexByte(proto, '(')
	if open < 0 || !strings.HasSuffix(proto, ")") {
		return f, fmt.Errorf("malformed prototype %q", proto)
	}
	head := strings.Fields(proto[:open])
	if len(head) != 2 {
		return f, fmt.Errorf("malformed prototype %q", proto)
	}
	ret, err := nwscript.ParseType(head[0], engineTypes)
	if err != nil {
		return f, err
	}
	f.Name, f.Return = head[1], ret

	args := strings.TrimSpace(proto[open+1 : len(proto)-1])
	if args == "" || args == "void" {
		return f, nil
	}
	for _, arg := range splitArgs(args) {
		def := ""
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			arg, def = arg[:eq], strings.TrimSpace(arg[eq+1:])
		}
		fields := strings.Fields(arg)
		if len(fields) == 0 || len(fields) > 2 {
			return f, fmt.Errorf("%s: malformed parameter %q", f.Name, arg)
		}
		t, err := nwscript.ParseType(fields[0], engineTypes)
		if err != nil {
			return f, fmt.Errorf("%s: %w", f.Name, err)
		}
		switch {
		case def != "":
			f.Defaults++
		case f.Defaults > 0:
			return f, fmt.Errorf("%s: parameter %q follows a defaulted one", f.Name, arg)
		}
		f.Params = append(f.Params, t)
	}
	return f, nil
}

// splitArgs splits on commas outside brackets and quotes, so defaults such
// as [0.0,0.0,0.0] or "a,b" stay whole.
func splitArgs(s string) []string {
	var out []string
	depth, quoted, start := 0, false, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}
