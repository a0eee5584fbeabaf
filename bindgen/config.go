package bindgen

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/name1e5s/uniffi-go/errors"
)

// Config is one scaffolding definition: a generated package name, the Go
// module it belongs to, the delegate capabilities foreign code implements,
// and the native objects routed through them.
type Config struct {
	Module    string     `toml:"module"`
	GoModule  string     `toml:"go_module"`
	Delegates []Delegate `toml:"delegate"`
	Objects   []Object   `toml:"object"`
}

// Delegate declares one callback capability.
type Delegate struct {
	Name    string           `toml:"name"`
	Methods []DelegateMethod `toml:"method"`
}

// DelegateMethod declares one wrapping operation. Returns is a definition
// language type: empty for void, "any" for the erased placeholder, anything
// else concrete.
type DelegateMethod struct {
	Name    string `toml:"name"`
	Returns string `toml:"returns"`
}

// Object declares one native object bound to a delegate.
type Object struct {
	Name     string         `toml:"name"`
	Delegate string         `toml:"delegate"`
	Methods  []ObjectMethod `toml:"method"`
}

// ObjectMethod declares one native method and the delegate method every
// invocation routes through.
type ObjectMethod struct {
	Name     string   `toml:"name"`
	Params   []string `toml:"params"`
	Returns  string   `toml:"returns"`
	CallWith string   `toml:"call_with"`
}

// Load reads and validates a definition file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidDefinition, err, "definition file is not readable")
	}
	return Parse(data)
}

// Parse decodes and validates a definition.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseGenerate, errors.KindInvalidDefinition, err, "definition does not parse")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// delegateByName resolves a declared delegate, nil when absent.
func (c *Config) delegateByName(name string) *Delegate {
	for i := range c.Delegates {
		if c.Delegates[i].Name == name {
			return &c.Delegates[i]
		}
	}
	return nil
}

// methodByName resolves a declared method, nil when absent.
func (d *Delegate) methodByName(name string) *DelegateMethod {
	for i := range d.Methods {
		if d.Methods[i].Name == name {
			return &d.Methods[i]
		}
	}
	return nil
}
