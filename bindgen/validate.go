package bindgen

import (
	"go/token"

	"golang.org/x/mod/module"

	"github.com/name1e5s/uniffi-go/errors"
	"github.com/name1e5s/uniffi-go/shape"
)

// Validate checks the whole definition and reports every problem at once.
// A definition that validates generates scaffolding that compiles; routing
// mismatches are rejected here so they can never surface at runtime.
func (c *Config) Validate() error {
	var problems []*errors.Error

	if c.Module == "" {
		problems = append(problems, errors.InvalidDefinition(nil, "module name is required"))
	} else if !token.IsIdentifier(c.Module) {
		problems = append(problems, errors.InvalidDefinition([]string{c.Module}, "module name %q is not a Go identifier", c.Module))
	}

	if c.GoModule == "" {
		problems = append(problems, errors.InvalidDefinition(nil, "go_module is required"))
	} else if err := module.CheckPath(c.GoModule); err != nil {
		problems = append(problems, errors.InvalidDefinition([]string{c.GoModule}, "go_module: %v", err))
	}

	problems = append(problems, c.validateDelegates()...)
	problems = append(problems, c.validateObjects()...)

	if derr := errors.NewDefinitionError(problems); derr != nil {
		return derr
	}
	return nil
}

func (c *Config) validateDelegates() []*errors.Error {
	var problems []*errors.Error

	seen := map[string]bool{}
	for _, d := range c.Delegates {
		if !token.IsIdentifier(d.Name) {
			problems = append(problems, errors.InvalidDefinition([]string{d.Name}, "delegate name %q is not a Go identifier", d.Name))
			continue
		}
		if seen[d.Name] {
			problems = append(problems, errors.InvalidDefinition([]string{d.Name}, "delegate %q declared twice", d.Name))
			continue
		}
		seen[d.Name] = true

		methods := map[string]bool{}
		for _, m := range d.Methods {
			if !token.IsIdentifier(m.Name) {
				problems = append(problems, errors.InvalidDefinition([]string{d.Name, m.Name}, "method name %q is not a Go identifier", m.Name))
				continue
			}
			if methods[m.Name] {
				problems = append(problems, errors.InvalidDefinition([]string{d.Name, m.Name}, "method %q declared twice", m.Name))
			}
			methods[m.Name] = true
		}
		if len(d.Methods) == 0 {
			problems = append(problems, errors.InvalidDefinition([]string{d.Name}, "delegate declares no methods"))
		}
	}
	return problems
}

func (c *Config) validateObjects() []*errors.Error {
	var problems []*errors.Error

	seen := map[string]bool{}
	for _, o := range c.Objects {
		if !token.IsIdentifier(o.Name) {
			problems = append(problems, errors.InvalidDefinition([]string{o.Name}, "object name %q is not a Go identifier", o.Name))
			continue
		}
		if seen[o.Name] {
			problems = append(problems, errors.InvalidDefinition([]string{o.Name}, "object %q declared twice", o.Name))
			continue
		}
		seen[o.Name] = true

		del := c.delegateByName(o.Delegate)
		if del == nil {
			problems = append(problems, errors.InvalidDefinition([]string{o.Name}, "object references undeclared delegate %q", o.Delegate))
			continue
		}

		methods := map[string]bool{}
		for _, m := range o.Methods {
			path := []string{o.Name, m.Name}
			if !token.IsIdentifier(m.Name) {
				problems = append(problems, errors.InvalidDefinition(path, "method name %q is not a Go identifier", m.Name))
				continue
			}
			if methods[m.Name] {
				problems = append(problems, errors.InvalidDefinition(path, "method %q declared twice", m.Name))
			}
			methods[m.Name] = true

			target := del.methodByName(m.CallWith)
			if target == nil {
				problems = append(problems, errors.InvalidDefinition(path, "call_with %q is not a method of delegate %q", m.CallWith, del.Name))
				continue
			}
			problems = append(problems, checkRouting(path, m, target)...)
		}
	}
	return problems
}

// checkRouting proves the declared return survives the delegate round trip.
// Generic routing defers to a runtime coercion; everything else must line
// up here.
func checkRouting(path []string, m ObjectMethod, target *DelegateMethod) []*errors.Error {
	_, methodVoid := shape.Select(m.Returns).(shape.Void)

	switch s := shape.Select(target.Returns).(type) {
	case shape.Void:
		if !methodVoid {
			return []*errors.Error{
				errors.New(errors.PhaseGenerate, errors.KindInvalidDefinition).
					Path(path...).
					Detail("call_with %q discards results but the method returns %q", target.Name, m.Returns).
					Build(),
			}
		}
	case shape.Concrete:
		if methodVoid {
			return []*errors.Error{
				errors.New(errors.PhaseGenerate, errors.KindInvalidDefinition).
					Path(path...).
					Detail("call_with %q produces %q but the method returns nothing", target.Name, s.Type).
					Build(),
			}
		}
		if m.Returns != s.Type {
			return []*errors.Error{
				errors.New(errors.PhaseGenerate, errors.KindInvalidDefinition).
					Path(path...).
					Want(m.Returns).
					Got(s.Type).
					Detail("call_with %q return type disagrees with the method", target.Name).
					Build(),
			}
		}
	case shape.Generic:
		// Coerced at the call site.
	}
	return nil
}
