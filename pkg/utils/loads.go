package utils

import (
	"encoding/json"
	"io/fs"
)

// Load decodes the JSON document name from fsys into a T.
func Load[T any](fsys fs.FS, name string) (T, error) {
	var v T
	f, err := fsys.Open(name)
	if err != nil {
		return v, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, err
	}
	return v, nil
}

// LoadAll decodes every file matching pattern in fsys, keyed by path.
func LoadAll[T any](fsys fs.FS, pattern string) (map[string]T, error) {
	names, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(names))
	for _, name := range names {
		v, err := Load[T](fsys, name)
		if err != nil {
			return nil, &fs.PathError{Op: "load", Path: name, Err: err}
		}
		out[name] = v
	}
	return out, nil
}
