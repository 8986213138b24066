package pptxtemplate

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/parser"
)

// Filter is a function callable from a placeholder, either directly as
// name(args...) or as a filter: value|name(args...) calls
// name(value, args...).
type Filter func(params ...any) (any, error)

// Environment evaluates placeholder text. It is read-only once built and
// may be shared by sequential render passes.
type Environment struct {
	filters map[string]Filter
}

// NewEnvironment returns an environment with the built-in filters plus
// the given ones. Caller filters replace built-ins of the same name.
func NewEnvironment(filters map[string]Filter) *Environment {
	all := builtinFilters()
	for name, f := range filters {
		all[name] = f
	}
	return &Environment{filters: all}
}

// Result is the outcome of evaluating one piece of text: either the
// rendered text or a diagnostic explaining why it was left unresolved.
type Result struct {
	Text       string
	Diagnostic *Diagnostic
}

// Rendered reports whether evaluation produced text.
func (r Result) Rendered() bool { return r.Diagnostic == nil }

// Evaluate renders every {{ ... }} in text against data. Undefined
// references and syntax errors come back as a diagnostic; any other
// failure is returned as an error.
func (e *Environment) Evaluate(text string, data map[string]any) (Result, error) {
	segments, err := splitTemplate(text)
	if err != nil {
		return Result{Diagnostic: &Diagnostic{Kind: TemplateSyntaxError, Message: err.Error()}}, nil
	}
	if data == nil {
		data = map[string]any{}
	}

	var sb strings.Builder
	for _, seg := range segments {
		if !seg.expr {
			sb.WriteString(seg.text)
			continue
		}
		out, diag, err := e.evalExpression(seg.text, data)
		if err != nil {
			return Result{}, err
		}
		if diag != nil {
			return Result{Diagnostic: diag}, nil
		}
		sb.WriteString(out)
	}
	return Result{Text: sb.String()}, nil
}

// evalState records the first error raised by a filter during one run.
type evalState struct {
	filterErr error
}

func (e *Environment) evalExpression(src string, data map[string]any) (string, *Diagnostic, error) {
	code := translateExpression(src)
	if strings.TrimSpace(code) == "" {
		return "", &Diagnostic{Kind: TemplateSyntaxError, Message: "Expected an expression, got 'end of print statement'"}, nil
	}

	tree, err := parser.Parse(code)
	if err != nil {
		return "", &Diagnostic{Kind: TemplateSyntaxError, Message: errorMessage(err)}, nil
	}
	diag, unbound := e.checkNames(tree, data)
	if diag != nil {
		return "", diag, nil
	}
	env := data
	if len(unbound) > 0 {
		env = maps.Clone(data)
		for _, name := range unbound {
			env[name] = nil
		}
	}

	state := &evalState{}
	program, err := expr.Compile(code, e.options(state)...)
	if err != nil {
		// Unknown filters and call arity errors land here as well.
		return "", &Diagnostic{Kind: TemplateSyntaxError, Message: errorMessage(err)}, nil
	}

	out, err := expr.Run(program, env)
	if err != nil {
		if state.filterErr != nil {
			return "", nil, fmt.Errorf("filter failed in %q: %w", strings.TrimSpace(src), state.filterErr)
		}
		if isUndefinedFailure(err) {
			return "", &Diagnostic{Kind: UndefinedError, Message: errorMessage(err)}, nil
		}
		return "", nil, fmt.Errorf("failed to evaluate %q: %w", strings.TrimSpace(src), err)
	}
	if out == nil {
		if name, ok := missedMember(tree, env); ok {
			return "", &Diagnostic{Kind: UndefinedError, Message: fmt.Sprintf("'%s' is undefined", name)}, nil
		}
	}
	return stringify(out), nil, nil
}

func (e *Environment) options(state *evalState) []expr.Option {
	opts := make([]expr.Option, 0, 2*len(e.filters))
	for name, f := range e.filters {
		f := f
		opts = append(opts,
			expr.DisableBuiltin(name),
			expr.Function(name, func(params ...any) (any, error) {
				out, err := f(params...)
				if err != nil && state.filterErr == nil {
					state.filterErr = err
				}
				return out, err
			}),
		)
	}
	return opts
}

// defaultFilterName is the filter whose first argument may be undefined.
const defaultFilterName = "default"

// identCollector gathers identifiers that must resolve against the data.
type identCollector struct {
	idents   []*ast.IdentifierNode
	callees  map[ast.Node]bool
	declared map[string]bool
	// defaulted holds identifiers passed straight to default().
	defaulted map[ast.Node]bool
	members   []*ast.MemberNode
}

func (c *identCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.idents = append(c.idents, n)
	case *ast.CallNode:
		c.callees[n.Callee] = true
		if callee, ok := n.Callee.(*ast.IdentifierNode); ok && callee.Value == defaultFilterName && len(n.Arguments) > 0 {
			if arg, ok := n.Arguments[0].(*ast.IdentifierNode); ok {
				c.defaulted[arg] = true
			}
		}
	case *ast.VariableDeclaratorNode:
		c.declared[n.Name] = true
	case *ast.MemberNode:
		c.members = append(c.members, n)
	}
}

func collectNames(tree *parser.Tree) *identCollector {
	c := &identCollector{
		callees:   map[ast.Node]bool{},
		declared:  map[string]bool{},
		defaulted: map[ast.Node]bool{},
	}
	ast.Walk(&tree.Node, c)
	return c
}

// checkNames verifies that every identifier resolves against data and
// every called name is a known function. It returns a diagnostic for the
// first name that does not, and the undefined names that only feed
// default() and must be bound to nil.
func (e *Environment) checkNames(tree *parser.Tree, data map[string]any) (*Diagnostic, []string) {
	c := collectNames(tree)
	var unbound []string
	for _, id := range c.idents {
		name := id.Value
		if c.declared[name] || strings.HasPrefix(name, "$") {
			continue
		}
		if _, ok := data[name]; ok {
			continue
		}
		if c.defaulted[id] {
			if _, isFilter := e.filters[defaultFilterName]; isFilter {
				unbound = append(unbound, name)
				continue
			}
		}
		if c.callees[id] {
			if _, ok := e.filters[name]; ok {
				continue
			}
			if _, ok := builtin.Index[name]; ok {
				continue
			}
			return &Diagnostic{Kind: TemplateSyntaxError, Message: fmt.Sprintf("No filter named '%s'.", name)}, nil
		}
		if _, ok := e.filters[name]; ok {
			continue
		}
		return &Diagnostic{Kind: UndefinedError, Message: fmt.Sprintf("'%s' is undefined", name)}, nil
	}
	return nil, unbound
}

// missedMember reports the first member access in tree that looks up a
// key its map does not hold. Member accesses whose object cannot be
// evaluated on its own, such as those inside closures, are skipped.
func missedMember(tree *parser.Tree, env map[string]any) (string, bool) {
	for _, m := range collectNames(tree).members {
		if m.Optional || m.Method {
			continue
		}
		obj, err := expr.Eval(m.Node.String(), env)
		if err != nil {
			continue
		}
		var key any
		if s, ok := m.Property.(*ast.StringNode); ok {
			key = s.Value
		} else if key, err = expr.Eval(m.Property.String(), env); err != nil {
			continue
		}

		rv := reflect.ValueOf(obj)
		for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				break
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Map || key == nil {
			continue
		}
		kv := reflect.ValueOf(key)
		if !kv.Type().AssignableTo(rv.Type().Key()) {
			continue
		}
		if !rv.MapIndex(kv).IsValid() {
			return m.String(), true
		}
	}
	return "", false
}

// undefinedMarkers identify runtime failures caused by fetching something
// that does not exist.
var undefinedMarkers = []string{
	"cannot fetch",
	"out of range",
	"<nil>",
}

func isUndefinedFailure(err error) bool {
	msg := errorMessage(err)
	for _, m := range undefinedMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

func errorMessage(err error) string {
	var fe *file.Error
	if errors.As(err, &fe) {
		return fe.Message
	}
	return err.Error()
}

// stringify converts an evaluated value to run text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}

// --- template scanning ---

type segment struct {
	text string
	expr bool
}

const whitespace = " \t\r\n"

// splitTemplate cuts text into literal and expression segments. {{- and
// -}} trim the whitespace of the neighbouring literal.
func splitTemplate(src string) ([]segment, error) {
	var segs []segment
	rest := src
	trimNext := false
	for {
		open := strings.Index(rest, openMarker)
		if open < 0 {
			lit := rest
			if trimNext {
				lit = strings.TrimLeft(lit, whitespace)
			}
			if lit != "" {
				segs = append(segs, segment{text: lit})
			}
			return segs, nil
		}

		lit := rest[:open]
		if trimNext {
			lit = strings.TrimLeft(lit, whitespace)
		}
		body := rest[open+len(openMarker):]
		if strings.HasPrefix(body, "-") {
			lit = strings.TrimRight(lit, whitespace)
			body = body[1:]
		}
		if lit != "" {
			segs = append(segs, segment{text: lit})
		}

		end := closingIndex(body)
		if end < 0 {
			return nil, errors.New("unexpected end of template, expected 'end of print statement'.")
		}
		code := body[:end]
		trimNext = strings.HasSuffix(code, "-")
		if trimNext {
			code = code[:len(code)-1]
		}
		segs = append(segs, segment{text: code, expr: true})
		rest = body[end+len(closeMarker):]
	}
}

// closingIndex finds the close marker of an expression, skipping string
// literals.
func closingIndex(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(s[i:], closeMarker):
			return i
		}
	}
	return -1
}

// literalAliases maps template-style constants to expression constants.
var literalAliases = map[string]string{
	"True":  "true",
	"False": "false",
	"None":  "nil",
	"none":  "nil",
}

// translateExpression rewrites filter syntax (value|name, value|name(arg))
// into pipe calls (value | name(), value | name(arg)) and maps constant
// aliases. String literals and || are left alone.
func translateExpression(src string) string {
	var sb strings.Builder
	var quote byte
	lastSignificant := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if quote != 0 {
			sb.WriteByte(c)
			if c == '\\' && i+1 < len(src) {
				i++
				sb.WriteByte(src[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}

		switch {
		case c == '\'' || c == '"':
			quote = c
			sb.WriteByte(c)
		case c == '|' && i+1 < len(src) && src[i+1] == '|':
			sb.WriteString("||")
			i++
		case c == '|':
			j := i + 1
			for j < len(src) && src[j] == ' ' {
				j++
			}
			k := j
			for k < len(src) && isIdentByte(src[k], k == j) {
				k++
			}
			sb.WriteString(" | ")
			sb.WriteString(src[j:k])
			m := k
			for m < len(src) && src[m] == ' ' {
				m++
			}
			if m >= len(src) || src[m] != '(' {
				sb.WriteString("()")
			}
			i = k - 1
		case isIdentByte(c, true):
			k := i
			for k < len(src) && isIdentByte(src[k], k == i) {
				k++
			}
			word := src[i:k]
			if alias, ok := literalAliases[word]; ok && lastSignificant != '.' {
				word = alias
			}
			sb.WriteString(word)
			i = k - 1
		default:
			sb.WriteByte(c)
		}
		if c != ' ' {
			lastSignificant = c
		}
	}
	return sb.String()
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
