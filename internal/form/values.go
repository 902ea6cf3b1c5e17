package form

import "maps"

// Values holds the current string value of every field in one form, keyed by
// field name.  Only FormSession.SetField mutates it; validators receive a
// read-only snapshot.
type Values map[string]string

// Get returns the value for name or "".
func (v Values) Get(name string) string { return v[name] }

func (v Values) clone() Values { return maps.Clone(v) }

// ErrorMap holds one user-facing message per invalid field.  A missing key
// means the field is currently valid.  It is rebuilt, never patched, on every
// validation pass.
type ErrorMap map[string]string

// Has reports whether name currently has an error.
func (e ErrorMap) Has(name string) bool {
	_, ok := e[name]
	return ok
}

func (e ErrorMap) clone() ErrorMap {
	if e == nil {
		return ErrorMap{}
	}
	return maps.Clone(e)
}
