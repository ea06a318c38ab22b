package archive

import "slices"

// Canonical field names produced by the extractor.
const (
	FieldChapter      = "chapter"
	FieldBook         = "book"
	FieldSynopsis     = "synopsis"
	FieldKeywords     = "keywords"
	FieldText         = "text"
	FieldAddTimestamp = "add_timestamp"
	FieldSource       = "source"
)

// Field is a single named raw value. Value is one of int, string,
// time.Time, []string or nil.
type Field struct {
	Name  string
	Value any
}

// Document is a raw page record: an insertion-ordered map from field name to
// an untyped value. It is immutable once returned by the extractor.
type Document struct {
	fields []Field
}

// NewDocument builds a Document from fields. A repeated name replaces the
// earlier value but keeps the earlier position.
func NewDocument(fields ...Field) Document {
	var d Document
	for _, f := range fields {
		d.set(f.Name, f.Value)
	}
	return d
}

func (d *Document) set(name string, value any) {
	for i := range d.fields {
		if d.fields[i].Name == name {
			d.fields[i].Value = value
			return
		}
	}
	d.fields = append(d.fields, Field{Name: name, Value: value})
}

// Get returns the value stored under name.
func (d Document) Get(name string) (any, bool) {
	for _, f := range d.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Fields returns the fields in insertion order.
func (d Document) Fields() []Field {
	return slices.Clone(d.fields)
}

// Len returns the number of fields.
func (d Document) Len() int {
	return len(d.fields)
}

// Names returns the field names in insertion order.
func (d Document) Names() []string {
	names := make([]string, len(d.fields))
	for i, f := range d.fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports whether two documents hold the same fields in the same order.
func (d Document) Equal(other Document) bool {
	return slices.EqualFunc(d.fields, other.fields, func(a, b Field) bool {
		if a.Name != b.Name {
			return false
		}
		as, aok := a.Value.([]string)
		bs, bok := b.Value.([]string)
		if aok || bok {
			return aok && bok && slices.Equal(as, bs)
		}
		return a.Value == b.Value
	})
}
