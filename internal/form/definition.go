// internal/form/definition.go
//
// Forms subsystem: YAML definition loader.
//
// Context
//   Each HTML form is declared in a YAML file that ships inside the binary
//   next to the component that owns it (`components/<comp>/forms/*.yaml`).
//   At start-up every component hands its embedded forms to RegisterForms,
//   which parses them, validates structure, binds validator names against a
//   Registry, and stores the result.  Sessions, the renderer, and the
//   live-validation handler fetch definitions from here by ID, so a form has
//   exactly one source of truth.
//
// Workflow
//   •  Structs mirror the YAML schema: FormDef → FieldDef.
//   •  LoadFormDef parses one document and validates structural rules.
//   •  RegisterForms walks an fs.FS, loads every “*.yaml”, and registers it.
//   •  GetFormDef offers safe, read-only access to a parsed form by ID.
//
// Style
//   Comments follow the house guide: full sentences, two spaces after
//   periods, Oxford commas.  Helper comments use short noun phrases.
//
//------------------------------------------------------------------------------

package form

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// Data structures
// -----------------------------------------------------------------------------

// FormDef represents one form definition loaded from YAML.
//
// ID is namespaced by component, e.g. “auth/signup”.
type FormDef struct {
	ID     string     `yaml:"id"`     // Component-scoped identifier.
	Title  string     `yaml:"title"`  // Page heading, optional.
	Submit string     `yaml:"submit"` // Submit button label, optional.
	Fields []FieldDef `yaml:"fields"` // Fields in display order.

	validators map[string][]Validator // bound at load, per field
	dependents map[string][]string    // reverse of depends_on
}

// FieldDef describes a single input control on the form.
type FieldDef struct {
	Name        string   `yaml:"name"`        // Submission key.  Required.
	Label       string   `yaml:"label"`       // Human-readable label.  Required.
	Type        string   `yaml:"type"`        // text, email, password, textarea, file.
	Placeholder string   `yaml:"placeholder"` // Optional placeholder text.
	Validators  []string `yaml:"validators"`  // Registry names, run in order.
	Unique      Kind     `yaml:"unique"`      // email or nickname; empty for none.
	DependsOn   []string `yaml:"depends_on"`  // Fields whose change re-validates this one.
	Match       string   `yaml:"match"`       // Partner field for confirm_password.
}

// Field returns the definition for name.
func (fd *FormDef) Field(name string) (FieldDef, bool) {
	for _, f := range fd.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// registry maps compositeID (“comp/form”) → *FormDef.  Guarded by mutex.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*FormDef)
)

// GetFormDef returns a parsed FormDef by composite ID.  The boolean is false
// when the ID is unknown.
func GetFormDef(id string) (*FormDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fd, ok := registry[id]
	return fd, ok
}

// MustFormDef is GetFormDef for IDs a component registered itself.
func MustFormDef(id string) *FormDef {
	fd, ok := GetFormDef(id)
	if !ok {
		panic(fmt.Sprintf("form: %q not registered", id))
	}
	return fd
}

// -----------------------------------------------------------------------------
// Loader API
// -----------------------------------------------------------------------------

// LoadFormDef parses one YAML document, validates its structure, and binds its
// validators against reg.  It NEVER mutates the global registry.
func LoadFormDef(raw []byte, source string, reg *Registry) (*FormDef, error) {
	var fd FormDef
	if err := yaml.Unmarshal(raw, &fd); err != nil {
		return nil, fmt.Errorf("parse YAML %s: %w", source, err)
	}
	if err := validateFormDef(&fd, source, reg); err != nil {
		return nil, err
	}
	return &fd, nil
}

// RegisterForms loads every “*.yaml” in fsys (recursively) and registers it.
// Later registrations of the same ID replace earlier ones.
//
// Example:
//
//	//go:embed forms/*.yaml
//	var forms embed.FS
//	err := form.RegisterForms(forms, form.DefaultRegistry())
func RegisterForms(fsys fs.FS, reg *Registry) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path.Ext(d.Name()) != ".yaml" {
			return nil // skip non-YAML
		}
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read form file %s: %w", p, err)
		}
		fd, err := LoadFormDef(raw, p, reg)
		if err != nil {
			return err // fail fast so issues surface loudly.
		}
		register(fd)
		return nil
	})
}

func register(fd *FormDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[fd.ID] = fd
}

// -----------------------------------------------------------------------------
// Validation helpers
// -----------------------------------------------------------------------------

var fieldTypes = map[string]bool{
	"text":     true,
	"email":    true,
	"password": true,
	"textarea": true,
	"file":     true,
	"hidden":   true,
}

// validateFormDef enforces structural rules that cannot be expressed via YAML
// tags alone, then binds validators.
func validateFormDef(fd *FormDef, source string, reg *Registry) error {
	if fd.ID == "" {
		return fmt.Errorf("form definition %s: missing required 'id'", source)
	}
	if len(fd.Fields) == 0 {
		return fmt.Errorf("form definition %s: must have 'fields'", source)
	}

	names := make(map[string]struct{}, len(fd.Fields))
	for i := range fd.Fields {
		f := &fd.Fields[i]
		if err := validateField(f, source); err != nil {
			return err
		}
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("form %s: duplicate field name '%s'", source, f.Name)
		}
		names[f.Name] = struct{}{}
	}

	fd.validators = make(map[string][]Validator, len(fd.Fields))
	fd.dependents = make(map[string][]string)
	for _, f := range fd.Fields {
		for _, dep := range f.DependsOn {
			if _, ok := names[dep]; !ok || dep == f.Name {
				return fmt.Errorf("form %s: field '%s' depends on unknown field '%s'", source, f.Name, dep)
			}
			fd.dependents[dep] = append(fd.dependents[dep], f.Name)
		}
		if f.Match != "" {
			if _, ok := names[f.Match]; !ok {
				return fmt.Errorf("form %s: field '%s' matches unknown field '%s'", source, f.Name, f.Match)
			}
		}
		for _, vname := range f.Validators {
			fn, err := reg.Build(vname, f)
			if err != nil {
				return fmt.Errorf("form %s: %w", source, err)
			}
			fd.validators[f.Name] = append(fd.validators[f.Name], fn)
		}
	}
	return nil
}

// validateField confirms that essential attributes are present and sane.
func validateField(f *FieldDef, source string) error {
	if f.Name == "" {
		return fmt.Errorf("form %s: field missing 'name'", source)
	}
	if strings.ContainsAny(f.Name, " \t\"'<>&") {
		return fmt.Errorf("form %s: field name '%s' has illegal characters", source, f.Name)
	}
	if f.Label == "" && f.Type != "hidden" {
		return fmt.Errorf("form %s: field '%s' missing 'label'", source, f.Name)
	}
	if f.Type == "" {
		f.Type = "text"
	}
	if !fieldTypes[f.Type] {
		return fmt.Errorf("form %s: field '%s' has unsupported type '%s'", source, f.Name, f.Type)
	}
	switch f.Unique {
	case "", KindEmail, KindNickname:
	default:
		return fmt.Errorf("form %s: field '%s' has unknown unique kind '%s'", source, f.Name, f.Unique)
	}
	return nil
}
