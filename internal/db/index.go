package db

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// StorageType defines the document storage backend for FT indexes.
type StorageType string

// StorageHash stores documents as Redis hashes.
const StorageHash StorageType = "HASH"

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldText is a full-text field.
	IndexFieldText IndexFieldType = iota
	// IndexFieldTag is an exact-match tag field.
	IndexFieldTag
	// IndexFieldNumeric is a numeric range field.
	IndexFieldNumeric
)

func (t IndexFieldType) String() string {
	switch t {
	case IndexFieldText:
		return "TEXT"
	case IndexFieldTag:
		return "TAG"
	case IndexFieldNumeric:
		return "NUMERIC"
	default:
		return "UNKNOWN"
	}
}

// ParseFieldType maps a schema type name (text, tag, numeric) to an IndexFieldType.
func ParseFieldType(s string) (IndexFieldType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return IndexFieldText, nil
	case "tag":
		return IndexFieldTag, nil
	case "numeric", "number":
		return IndexFieldNumeric, nil
	default:
		return 0, fmt.Errorf("unknown field type %q", s)
	}
}

// ParseFieldSpec parses a schema entry of the form "type[,option...]".
// Options are "sortable" and, for text fields, "weight=N".
func ParseFieldSpec(name, spec string) (IndexField, error) {
	parts := strings.Split(spec, ",")
	t, err := ParseFieldType(parts[0])
	if err != nil {
		return IndexField{}, err
	}
	f := IndexField{Name: name, Type: t}
	for _, opt := range parts[1:] {
		key, val, hasVal := strings.Cut(strings.TrimSpace(opt), "=")
		switch strings.ToLower(key) {
		case "sortable":
			if hasVal {
				return IndexField{}, errors.New("option sortable takes no value")
			}
			f.Sortable = true
		case "weight":
			if t != IndexFieldText {
				return IndexField{}, errors.New("weight is only valid on text fields")
			}
			w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil || !hasVal {
				return IndexField{}, fmt.Errorf("invalid weight %q", val)
			}
			if w < 0 {
				return IndexField{}, fmt.Errorf("negative weight %v", w)
			}
			f.Weight = w
		default:
			return IndexField{}, fmt.Errorf("unknown field option %q", opt)
		}
	}
	return f, nil
}

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name     string
	Alias    string // AS alias in FT.CREATE SCHEMA
	Type     IndexFieldType
	Sortable bool

	// TEXT options
	Weight float64

	// TAG options
	TagSeparator     string
	TagCaseSensitive bool
}

// IndexDefinition is a complete FT index definition used by FT.CREATE.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.Name
		if f.Alias != "" {
			key = f.Alias
		}
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true

		if f.Weight < 0 {
			return errors.New("negative weight on field " + key)
		}
	}

	return nil
}

// Field returns the field with the given name (or alias).
func (idx *IndexDefinition) Field(name string) (IndexField, bool) {
	for _, f := range idx.Fields {
		if f.Name == name || (f.Alias != "" && f.Alias == name) {
			return f, true
		}
	}
	return IndexField{}, false
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
