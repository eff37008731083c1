// Package mergepatch implements JSON merge patch over decoded documents.
// Every member of a patch is in one of three states: absent (left alone),
// null (removed) or a value (written). Objects merge recursively, anything
// else, arrays included, replaces the target member wholesale.
package mergepatch

import (
	"emsp/utility"
	"errors"
	"fmt"
	"sort"
)

var ErrNotObject = errors.New("patch must be a JSON object")

type Op int

const (
	OpSet Op = iota
	OpDelete
	OpMerge
)

type Field struct {
	Op     Op
	Value  any
	Nested Patch
}

type Patch map[string]Field

func Parse(body []byte) (Patch, error) {
	var raw any
	if err := utility.Json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid patch: %w", err)
	}
	doc, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return FromDocument(doc), nil
}

// FromDocument reads a decoded JSON object as a patch, nil members mean delete.
func FromDocument(doc map[string]any) Patch {
	p := make(Patch, len(doc))
	for name, value := range doc {
		switch v := value.(type) {
		case nil:
			p[name] = Field{Op: OpDelete}
		case map[string]any:
			p[name] = Field{Op: OpMerge, Nested: FromDocument(v)}
		default:
			p[name] = Field{Op: OpSet, Value: v}
		}
	}
	return p
}

func (p Patch) Set(name string, value any) Patch {
	if doc, ok := value.(map[string]any); ok {
		p[name] = Field{Op: OpMerge, Nested: FromDocument(doc)}
		return p
	}
	p[name] = Field{Op: OpSet, Value: value}
	return p
}

func (p Patch) Delete(name string) Patch {
	p[name] = Field{Op: OpDelete}
	return p
}

// Value returns the plain value carried for name; nested patches come back as documents.
func (p Patch) Value(name string) (any, bool) {
	f, ok := p[name]
	if !ok {
		return nil, false
	}
	switch f.Op {
	case OpDelete:
		return nil, true
	case OpMerge:
		return f.Nested.Document(), true
	default:
		return f.Value, true
	}
}

// Document renders the patch back to its JSON object form.
func (p Patch) Document() map[string]any {
	doc := make(map[string]any, len(p))
	for name := range p {
		doc[name], _ = p.Value(name)
	}
	return doc
}

func (p Patch) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a patched copy of target; target itself is not modified.
func (p Patch) Apply(target map[string]any) map[string]any {
	out := make(map[string]any, len(target)+len(p))
	for name, value := range target {
		out[name] = copyValue(value)
	}
	for name, f := range p {
		switch f.Op {
		case OpDelete:
			delete(out, name)
		case OpMerge:
			current, _ := out[name].(map[string]any)
			out[name] = f.Nested.Apply(current)
		default:
			out[name] = copyValue(f.Value)
		}
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
