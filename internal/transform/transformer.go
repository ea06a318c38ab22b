// Package transform turns raw extracted documents into typed, engine-ready
// fields according to a per-field encoding registry.
package transform

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2/analysis"

	"github.com/Aman-CERP/folio/internal/archive"
	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// AnalyzerSource resolves analyzers by name. A bleve index mapping satisfies it.
type AnalyzerSource interface {
	AnalyzerNamed(name string) analysis.Analyzer
}

// Transformer applies a Registry to raw documents. It is safe for concurrent
// use until Close.
type Transformer struct {
	registry *Registry

	mu        sync.RWMutex
	analyzers map[string]analysis.Analyzer
	closed    bool
}

// NewTransformer resolves every analyzer the registry needs from src.
func NewTransformer(registry *Registry, src AnalyzerSource) (*Transformer, error) {
	analyzers := make(map[string]analysis.Analyzer)
	for _, name := range registry.Analyzers() {
		a := src.AnalyzerNamed(name)
		if a == nil {
			return nil, ferrors.ConfigError(fmt.Sprintf("analyzer %q is not defined", name), nil)
		}
		analyzers[name] = a
	}
	return &Transformer{registry: registry, analyzers: analyzers}, nil
}

// Transform encodes raw. Unregistered and nil-valued fields are dropped.
func (t *Transformer) Transform(raw archive.Document) (Document, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return Document{}, ferrors.UsageState("transformer", "Transform")
	}

	out := Document{Raw: raw, Fields: make([]TypedField, 0, 2*raw.Len())}
	for _, f := range raw.Fields() {
		policy, ok := t.registry.Lookup(f.Name)
		if !ok || f.Value == nil {
			continue
		}
		fields, err := t.encode(f.Name, f.Value, policy)
		if err != nil {
			return Document{}, ferrors.New(ferrors.ErrCodeTransformFailed, err.Error(), err).
				WithDetail("field", f.Name)
		}
		out.Fields = append(out.Fields, fields...)
	}
	return out, nil
}

// Close releases the analyzers. Later Transform calls fail with a usage error.
func (t *Transformer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.analyzers = nil
	return nil
}

func (t *Transformer) encode(name string, value any, p Policy) ([]TypedField, error) {
	switch p.Encoding {
	case EncodingNumeric:
		n, err := asInt64(value)
		if err != nil {
			return nil, err
		}
		return []TypedField{
			{Name: name, Kind: KindSortableNumeric, Number: n},
			{Name: name, Kind: KindColumnNumeric, Number: n},
		}, nil

	case EncodingKey:
		s, err := asKey(value)
		if err != nil {
			return nil, err
		}
		fields := []TypedField{
			{Name: name, Kind: KindExactKey, Text: s},
			{Name: name, Kind: KindColumnKey, Text: s},
		}
		if p.Stored {
			fields = append(fields, TypedField{Name: name, Kind: KindStoredText, Text: s})
		}
		return fields, nil

	case EncodingText:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("text encoding needs a string, got %T", value)
		}
		return []TypedField{
			{Name: name, Kind: KindIndexedText, Text: s, Analyzer: t.analyzers[p.Analyzer]},
			{Name: name, Kind: KindStoredText, Text: s},
		}, nil

	case EncodingKeywords:
		var list []string
		switch v := value.(type) {
		case []string:
			list = v
		case string:
			list = []string{v}
		default:
			return nil, fmt.Errorf("keyword encoding needs a string list, got %T", value)
		}
		fields := make([]TypedField, 0, len(list))
		for _, kw := range list {
			if kw = strings.TrimSpace(kw); kw != "" {
				fields = append(fields, TypedField{Name: name, Kind: KindKeywordElement, Text: kw})
			}
		}
		return fields, nil
	}
	return nil, fmt.Errorf("unknown encoding %d", p.Encoding)
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case time.Time:
		return v.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("numeric encoding needs an integer or timestamp, got %T", value)
	}
}

func asKey(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int, int32, int64:
		return fmt.Sprint(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("key encoding needs a scalar, got %T", value)
	}
}
