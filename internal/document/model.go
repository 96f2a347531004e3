package document

import "github.com/roach88/docrun/internal/command"

// Document is a decoded document file.
type Document struct {
	Version    string                      `yaml:"version"`
	Macros     map[string]MacroSpec        `yaml:"macros,omitempty"`
	Components []Component                 `yaml:"components,omitempty"`
	OnMount    []map[string]any            `yaml:"onMount,omitempty"`
	Handlers   map[string][]map[string]any `yaml:"handlers,omitempty"`
}

// MacroSpec is a named, parameterized command list.
type MacroSpec struct {
	Parameters []ParameterSpec  `yaml:"parameters,omitempty"`
	Commands   []map[string]any `yaml:"commands"`
}

// ParameterSpec names a macro parameter and its default value.
type ParameterSpec struct {
	Name    string `yaml:"name"`
	Default any    `yaml:"default,omitempty"`
}

// Component is a document component with the commands it runs on mount.
type Component struct {
	ID      string           `yaml:"id"`
	OnMount []map[string]any `yaml:"onMount,omitempty"`
}

// Handler returns the commands bound to an event handler.
func (d *Document) Handler(name string) ([]command.Description, bool) {
	cmds, ok := d.Handlers[name]
	if !ok {
		return nil, false
	}
	return descriptions(cmds), true
}

// Macro converts a macro spec to the registry form.
func (m MacroSpec) Macro() command.Macro {
	params := make([]command.Parameter, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = command.Parameter{Name: p.Name, Default: p.Default}
	}
	return command.Macro{Parameters: params, Commands: descriptions(m.Commands)}
}

func descriptions(maps []map[string]any) []command.Description {
	out := make([]command.Description, len(maps))
	for i, m := range maps {
		out[i] = command.Description(m)
	}
	return out
}
