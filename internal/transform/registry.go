package transform

import (
	"fmt"
	"slices"
	"sync"

	"github.com/Aman-CERP/folio/internal/archive"
)

// Analyzer names resolved through an AnalyzerSource.
const (
	AnalyzerHTML  = "folio_html"
	AnalyzerPlain = "folio_plain"
)

// Encoding selects how a raw field is turned into typed fields.
type Encoding int

const (
	// EncodingNumeric emits sortable-numeric plus column-numeric.
	// Integers are used as-is and timestamps become epoch milliseconds.
	EncodingNumeric Encoding = iota + 1
	// EncodingKey emits exact-key plus column-key.
	EncodingKey
	// EncodingText emits indexed-text plus stored-text.
	EncodingText
	// EncodingKeywords emits one trimmed keyword-list-element per entry.
	EncodingKeywords
)

// String returns a human-readable representation of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingNumeric:
		return "numeric"
	case EncodingKey:
		return "key"
	case EncodingText:
		return "text"
	case EncodingKeywords:
		return "keywords"
	default:
		return "unknown"
	}
}

// Policy is the encoding policy registered for one field name.
type Policy struct {
	Encoding Encoding

	// Analyzer names the analyzer for EncodingText.
	Analyzer string

	// Stored additionally keeps an EncodingKey value as stored text.
	Stored bool
}

// Column reports whether the policy produces a column value.
func (p Policy) Column() bool {
	return p.Encoding == EncodingNumeric || p.Encoding == EncodingKey
}

func (p Policy) validate() error {
	switch p.Encoding {
	case EncodingNumeric, EncodingKey, EncodingKeywords:
		if p.Analyzer != "" {
			return fmt.Errorf("%s encoding takes no analyzer", p.Encoding)
		}
	case EncodingText:
		if p.Analyzer == "" {
			return fmt.Errorf("text encoding requires an analyzer")
		}
	default:
		return fmt.Errorf("unknown encoding %d", p.Encoding)
	}
	if p.Stored && p.Encoding != EncodingKey {
		return fmt.Errorf("stored applies to key encoding only")
	}
	return nil
}

// Registry maps field names to encoding policies. It is safe for concurrent
// lookups once populated.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	order    []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// DefaultRegistry returns the policies for the canonical chapter fields.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(archive.FieldChapter, Policy{Encoding: EncodingNumeric})
	r.MustRegister(archive.FieldAddTimestamp, Policy{Encoding: EncodingNumeric})
	r.MustRegister(archive.FieldBook, Policy{Encoding: EncodingKey})
	r.MustRegister(archive.FieldSource, Policy{Encoding: EncodingKey})
	r.MustRegister(archive.FieldText, Policy{Encoding: EncodingText, Analyzer: AnalyzerHTML})
	r.MustRegister(archive.FieldSynopsis, Policy{Encoding: EncodingText, Analyzer: AnalyzerPlain})
	r.MustRegister(archive.FieldKeywords, Policy{Encoding: EncodingKeywords})
	return r
}

// Register sets the policy for name, replacing any earlier one.
func (r *Registry) Register(name string, p Policy) error {
	if name == "" {
		return fmt.Errorf("field name must not be empty")
	}
	if err := p.validate(); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.policies[name]; !ok {
		r.order = append(r.order, name)
	}
	r.policies[name] = p
	return nil
}

// MustRegister is Register for static tables; it panics on invalid policies.
func (r *Registry) MustRegister(name string, p Policy) {
	if err := r.Register(name, p); err != nil {
		panic(err)
	}
}

// Lookup returns the policy registered for name.
func (r *Registry) Lookup(name string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Names returns registered field names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Columns returns the column-backed field names in registration order.
func (r *Registry) Columns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var cols []string
	for _, name := range r.order {
		if r.policies[name].Column() {
			cols = append(cols, name)
		}
	}
	return cols
}

// NumericColumn reports whether name holds numeric column values.
func (r *Registry) NumericColumn(name string) bool {
	p, ok := r.Lookup(name)
	return ok && p.Encoding == EncodingNumeric
}

// Analyzers returns the distinct analyzer names used by text policies.
func (r *Registry) Analyzers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, name := range r.order {
		if a := r.policies[name].Analyzer; a != "" && !slices.Contains(names, a) {
			names = append(names, a)
		}
	}
	return names
}
