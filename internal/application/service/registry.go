package service

import (
	"fmt"
	"sort"

	"voice-navigator/internal/application/port/output"
	"voice-navigator/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type registeredTool struct {
	definition entity.ToolDefinition
	executor   output.Executor
}

type ToolRegistryImpl struct {
	tools map[entity.ToolName]registeredTool
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools: make(map[entity.ToolName]registeredTool),
	}
}

// Register adds definitions with their executors. Nothing is registered when
// a name collides, a definition has no executor, or an executor has no
// definition.
func (r *ToolRegistryImpl) Register(defs []entity.ToolDefinition, executors map[entity.ToolName]output.Executor) error {
	pending := make(map[entity.ToolName]registeredTool, len(defs))

	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("tool definition without a name")
		}
		if _, exists := r.tools[def.Name]; exists {
			return fmt.Errorf("tool %q is already registered", def.Name)
		}
		if _, dup := pending[def.Name]; dup {
			return fmt.Errorf("tool %q is declared twice", def.Name)
		}
		exec, ok := executors[def.Name]
		if !ok || exec == nil {
			return fmt.Errorf("tool %q has no executor", def.Name)
		}
		pending[def.Name] = registeredTool{definition: cloneDefinition(def), executor: exec}
	}

	for name := range executors {
		if _, ok := pending[name]; !ok {
			return fmt.Errorf("executor %q has no definition", name)
		}
	}

	for name, t := range pending {
		r.tools[name] = t
	}
	return nil
}

// RegisterTools registers tool structs that carry their own definition.
func (r *ToolRegistryImpl) RegisterTools(tools ...output.ToolPort) error {
	defs := make([]entity.ToolDefinition, 0, len(tools))
	executors := make(map[entity.ToolName]output.Executor, len(tools))

	for _, t := range tools {
		def := t.Definition()
		if _, dup := executors[def.Name]; dup {
			return fmt.Errorf("tool %q is declared twice", def.Name)
		}
		defs = append(defs, def)
		executors[def.Name] = t.Execute
	}
	return r.Register(defs, executors)
}

func (r *ToolRegistryImpl) Resolve(name entity.ToolName) (output.Executor, entity.ToolDefinition, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, entity.ToolDefinition{}, false
	}
	return t.executor, cloneDefinition(t.definition), true
}

// DescribeAll returns every definition sorted by name.
func (r *ToolRegistryImpl) DescribeAll() []entity.ToolDefinition {
	result := make([]entity.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, cloneDefinition(t.definition))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func cloneDefinition(def entity.ToolDefinition) entity.ToolDefinition {
	params := make(map[string]entity.ParameterSpec, len(def.Parameters))
	for name, spec := range def.Parameters {
		if spec.Enum != nil {
			spec.Enum = append([]string(nil), spec.Enum...)
		}
		params[name] = spec
	}
	def.Parameters = params
	return def
}
