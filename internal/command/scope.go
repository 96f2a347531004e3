package command

import (
	"fmt"
	"strings"
)

// Scope is a data-binding scope: a chain of variable maps where lookups
// fall through to the parent.
//
// Thread-safety: Scope is NOT safe for concurrent use.
type Scope struct {
	parent *Scope
	values map[string]any
}

// NewScope creates a scope nested in parent (which may be nil).
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, values: make(map[string]any)}
}

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }

// Get looks name up through the chain.
func (s *Scope) Get(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.values[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name in this scope, shadowing any outer binding.
func (s *Scope) Define(name string, v any) {
	s.values[name] = v
}

// Set assigns to the nearest scope that already binds name, or defines it
// in the root scope when nothing does. Values written by commands are
// therefore visible document-wide.
func (s *Scope) Set(name string, v any) {
	root := s
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.values[name]; ok {
			cur.values[name] = v
			return
		}
		root = cur
	}
	root.values[name] = v
}

// Evaluate resolves a single binding. Strings of the form "${name}" are
// replaced by the bound value (nil when unbound) and "${!name}" by the
// negated truthiness of that value. Anything else is returned unchanged.
// Full expression evaluation is the job of a real binding engine; this
// covers variable references only.
func (s *Scope) Evaluate(v any) any {
	str, ok := v.(string)
	if !ok || !strings.HasPrefix(str, "${") || !strings.HasSuffix(str, "}") {
		return v
	}
	expr := strings.TrimSpace(str[2 : len(str)-1])
	if name, negated := strings.CutPrefix(expr, "!"); negated {
		val, _ := s.Get(strings.TrimSpace(name))
		return !Truthy(val)
	}
	val, _ := s.Get(expr)
	return val
}

// Truthy applies document truthiness: nil, false, 0 and "" are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != "" && t != "false"
	default:
		return true
	}
}

// String renders the scope's own bindings for debugging.
func (s *Scope) String() string {
	return fmt.Sprintf("Scope%v", s.values)
}
