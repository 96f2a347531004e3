package document

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/docrun/internal/command"
)

//go:embed schema.cue
var schemaCUE string

// Validation error codes (E100-E199)
const (
	ErrCodeSyntax           = "E100" // YAML does not parse
	ErrCodeSchema           = "E101" // value does not match the document schema
	ErrCodeVersion          = "E102" // version is not a dotted number string
	ErrCodeArgumentType     = "E103" // argument is not int, string or bool
	ErrCodeDuplicateID      = "E104" // two components share an id
	ErrCodeUnknownType      = "E105" // command type is neither registered nor a macro
	ErrCodeDuplicateParam   = "E106" // macro declares a parameter twice
	ErrCodeUnsupportedInput = "E107" // input is not a mapping
)

// ValidationError is one problem found in a document.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is the error returned by Load when validation fails.
type ValidationErrors []ValidationError

func (es ValidationErrors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  %s", len(es), strings.Join(msgs, "\n  "))
}

// Validate checks a document against the embedded schema, then checks what
// the schema cannot express: unique component ids, known command types and
// unique macro parameters. All errors are collected; none is fatal to the
// others. Command types registered by the host beyond the builtins are
// passed as extraTypes.
func Validate(filename string, data []byte, extraTypes ...string) []ValidationError {
	errs := validateSchema(filename, data)
	if len(errs) > 0 {
		return errs
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrCodeSyntax}}
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return []ValidationError{{Field: "document", Message: "document must be a mapping", Code: ErrCodeUnsupportedInput}}
	}
	return checkStructure(root.Content[0], extraTypes)
}

func validateSchema(filename string, data []byte) []ValidationError {
	file, err := cueyaml.Extract(filename, data)
	if err != nil {
		return fromCUEError(filename, err, ErrCodeSyntax)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		// The schema is embedded; failing to compile it is a build defect.
		panic(fmt.Sprintf("document schema: %v", err))
	}

	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fromCUEError(filename, err, ErrCodeSyntax)
	}
	if value.IncompleteKind() != cue.StructKind {
		return []ValidationError{{Field: "document", Message: "document must be a mapping", Code: ErrCodeUnsupportedInput}}
	}

	unified := schema.LookupPath(cue.ParsePath("#Document")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fromCUEError(filename, err, "")
	}
	return nil
}

// fromCUEError converts every CUE error to a ValidationError positioned in
// the document (not the schema). code forces a code; empty derives it from
// the error path.
func fromCUEError(filename string, err error, code string) []ValidationError {
	var out []ValidationError
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		path := e.Path()
		field := strings.Join(path, ".")
		if field == "" {
			field = "document"
		}
		format, args := e.Msg()
		ve := ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
			Line:    documentLine(filename, cueerrors.Positions(e)),
		}
		if ve.Code == "" {
			ve.Code = codeForPath(path)
		}
		key := ve.Error()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "document", Message: err.Error(), Code: ErrCodeSchema})
	}
	return out
}

func documentLine(filename string, positions []token.Pos) int {
	for _, p := range positions {
		if p.IsValid() && p.Filename() == filename {
			return p.Line()
		}
	}
	return 0
}

func codeForPath(path []string) string {
	if len(path) == 1 && path[0] == "version" {
		return ErrCodeVersion
	}
	if slices.Contains(path, "arguments") || slices.Contains(path, "default") {
		return ErrCodeArgumentType
	}
	return ErrCodeSchema
}

// checkStructure walks the YAML tree so that errors carry line numbers.
func checkStructure(doc *yaml.Node, extraTypes []string) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool)
	reg := command.NewRegistry(nil)
	command.RegisterBuiltins(reg)
	for _, t := range reg.Types() {
		known[t] = true
	}
	for _, t := range extraTypes {
		known[t] = true
	}

	macros := mappingValue(doc, "macros")
	if macros != nil {
		for i := 0; i+1 < len(macros.Content); i += 2 {
			known[macros.Content[i].Value] = true
		}
		for i := 0; i+1 < len(macros.Content); i += 2 {
			name, body := macros.Content[i].Value, macros.Content[i+1]
			errs = append(errs, checkParameters(name, mappingValue(body, "parameters"))...)
			errs = append(errs, checkCommands("macros."+name+".commands", mappingValue(body, "commands"), known)...)
		}
	}

	ids := make(map[string]int)
	if comps := mappingValue(doc, "components"); comps != nil {
		for i, comp := range comps.Content {
			field := fmt.Sprintf("components.%d", i)
			if idNode := mappingValue(comp, "id"); idNode != nil {
				if first, dup := ids[idNode.Value]; dup {
					errs = append(errs, ValidationError{
						Field:   field + ".id",
						Message: fmt.Sprintf("duplicate component id %q (first defined on line %d)", idNode.Value, first),
						Code:    ErrCodeDuplicateID,
						Line:    idNode.Line,
					})
				} else {
					ids[idNode.Value] = idNode.Line
				}
			}
			errs = append(errs, checkCommands(field+".onMount", mappingValue(comp, "onMount"), known)...)
		}
	}

	errs = append(errs, checkCommands("onMount", mappingValue(doc, "onMount"), known)...)

	if handlers := mappingValue(doc, "handlers"); handlers != nil {
		for i := 0; i+1 < len(handlers.Content); i += 2 {
			name := handlers.Content[i].Value
			errs = append(errs, checkCommands("handlers."+name, handlers.Content[i+1], known)...)
		}
	}
	return errs
}

func checkParameters(macro string, params *yaml.Node) []ValidationError {
	if params == nil {
		return nil
	}
	var errs []ValidationError
	seen := make(map[string]bool)
	for i, p := range params.Content {
		nameNode := mappingValue(p, "name")
		if nameNode == nil {
			continue
		}
		if seen[nameNode.Value] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("macros.%s.parameters.%d.name", macro, i),
				Message: fmt.Sprintf("duplicate parameter %q", nameNode.Value),
				Code:    ErrCodeDuplicateParam,
				Line:    nameNode.Line,
			})
		}
		seen[nameNode.Value] = true
	}
	return errs
}

// checkCommands accepts a single command mapping or a sequence of them and
// recurses into nested command lists.
func checkCommands(field string, node *yaml.Node, known map[string]bool) []ValidationError {
	if node == nil {
		return nil
	}
	items := []*yaml.Node{node}
	if node.Kind == yaml.SequenceNode {
		items = node.Content
	}

	var errs []ValidationError
	for i, cmd := range items {
		f := field
		if node.Kind == yaml.SequenceNode {
			f = fmt.Sprintf("%s.%d", field, i)
		}
		typeNode := mappingValue(cmd, "type")
		if typeNode != nil && !known[typeNode.Value] {
			errs = append(errs, ValidationError{
				Field:   f + ".type",
				Message: fmt.Sprintf("unknown command type %q", typeNode.Value),
				Code:    ErrCodeUnknownType,
				Line:    typeNode.Line,
			})
		}
		for _, nested := range []string{"commands", "catch", "finally"} {
			errs = append(errs, checkCommands(f+"."+nested, mappingValue(cmd, nested), known)...)
		}
	}
	return errs
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
