package search

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Row is one assembled hit: field names in discovery order, each holding one
// value or, when the name recurs, every value in the order it was found.
// A Row is never modified after assembly.
type Row struct {
	ID    string
	Score float64

	names  []string
	values map[string][]any
}

func newRow(id string) *Row {
	return &Row{ID: id, values: make(map[string][]any)}
}

// Field is a named value used to build a Row outside the assembler.
type Field struct {
	Name  string
	Value any
}

// NewRow builds a row from fields in order. Repeated names are merged with
// the same append-or-create rule the assembler uses.
func NewRow(id string, score float64, fields ...Field) Row {
	r := newRow(id)
	r.Score = score
	for _, f := range fields {
		r.add(f.Name, f.Value)
	}
	return *r
}

// add appends v under name, creating the field on first sight.
func (r *Row) add(name string, v any) {
	if _, ok := r.values[name]; !ok {
		r.names = append(r.names, name)
	}
	r.values[name] = append(r.values[name], v)
}

// Names returns the field names in discovery order.
func (r *Row) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of distinct field names.
func (r *Row) Len() int {
	return len(r.names)
}

// Get returns the field's scalar value, or a []any when the field holds more
// than one value.
func (r *Row) Get(name string) (any, bool) {
	vs, ok := r.values[name]
	if !ok {
		return nil, false
	}
	if len(vs) == 1 {
		return vs[0], true
	}
	return slices.Clone(vs), true
}

// Values returns every value of the field, scalar or not.
func (r *Row) Values(name string) []any {
	return slices.Clone(r.values[name])
}

// Text returns the field's value if it is a single string.
func (r *Row) Text(name string) string {
	v, _ := r.Get(name)
	s, _ := v.(string)
	return s
}

// Map flattens the row into a plain map, losing field order.
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for _, name := range r.names {
		m[name], _ = r.Get(name)
	}
	return m
}

// withScore returns a shallow copy carrying score. The copy shares the
// immutable field storage.
func (r *Row) withScore(score float64) Row {
	cp := *r
	cp.Score = score
	return cp
}

// MarshalJSON writes the row as {"id","score","fields"} with fields in
// discovery order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"id":`)
	if err := writeJSON(&buf, r.ID); err != nil {
		return nil, err
	}
	buf.WriteString(`,"score":`)
	if err := writeJSON(&buf, r.Score); err != nil {
		return nil, err
	}
	buf.WriteString(`,"fields":{`)
	for i, name := range r.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		v, _ := r.Get(name)
		if err := writeJSON(&buf, v); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// Results is the outcome of one assembled query.
type Results struct {
	TotalHits uint64 `json:"total_hits"`
	// TotalIsApproximate is true when TotalHits is a lower bound.
	TotalIsApproximate bool  `json:"total_is_approximate"`
	Rows               []Row `json:"rows"`
}
