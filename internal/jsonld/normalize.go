// Package jsonld repairs embedded JSON-LD blocks before they are parsed as RDF.
//
// Many pages point their @context at a remote vocabulary such as
// https://schema.org. Fetching that context during a batch run is slow and
// often rate limited, so a remote string context is swapped for a local
// {"@vocab": ...} mapping. Terms then resolve against the fallback namespace
// instead of the original vocabulary.
package jsonld

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	contextKey = "@context"
	vocabKey   = "@vocab"
	valueKey   = "@value"
	typeKey    = "@type"

	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDouble  = "http://www.w3.org/2001/XMLSchema#double"

	// integers beyond this magnitude lose precision as float64
	maxExactInt = 1 << 53
)

// MalformedDataError reports a block that is not valid JSON
type MalformedDataError struct {
	Index int
	Err   error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("block %d is not valid JSON: %v", e.Index, e.Err)
}

func (e *MalformedDataError) Unwrap() error {
	return e.Err
}

// Block is a JSON-LD block after context repair
type Block struct {
	// Index is the position of the block within its page
	Index int
	// Raw is the script text exactly as extracted
	Raw string
	// Data is the decoded JSON value handed to the RDF parser
	Data any
	// ContextReplaced is set when a remote @context was swapped out
	ContextReplaced bool
}

// JSON re-serializes the normalized value
func (b Block) JSON() ([]byte, error) {
	return json.Marshal(b.Data)
}

// Normalizer rewrites remote vocabulary contexts to a local fallback
type Normalizer struct {
	fallbackVocab string
}

// NewNormalizer creates a normalizer using fallbackVocab as the @vocab IRI
func NewNormalizer(fallbackVocab string) *Normalizer {
	return &Normalizer{fallbackVocab: fallbackVocab}
}

// Normalize decodes raw and replaces a top-level remote @context string.
// Array, object and nested contexts pass through unexamined.
func (n *Normalizer) Normalize(index int, raw string) (Block, error) {
	data, err := decode(raw)
	if err != nil {
		return Block{}, &MalformedDataError{Index: index, Err: err}
	}

	block := Block{Index: index, Raw: raw, Data: data}

	obj, ok := data.(map[string]any)
	if !ok {
		return block, nil
	}

	ctx, ok := obj[contextKey].(string)
	if !ok || !IsRemoteIRI(ctx) {
		return block, nil
	}

	obj[contextKey] = map[string]any{vocabKey: n.fallbackVocab}
	block.ContextReplaced = true

	return block, nil
}

// IsRemoteIRI reports whether s starts with an http or https scheme
func IsRemoteIRI(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// decode parses exactly one JSON value, keeping numbers exact until
// convertNumbers decides how each one reaches the RDF parser
func decode(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after top-level value")
	}

	return convertNumbers(data, false), nil
}

// convertNumbers replaces every json.Number. Numbers float64 holds
// exactly stay float64. Larger integers and out-of-range doubles become
// typed value objects so their lexical form survives. Context
// definitions only ever hold plain float64.
func convertNumbers(v any, inContext bool) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			num, isNumber := item.(json.Number)
			if k != valueKey || !isNumber {
				t[k] = convertNumbers(item, inContext || k == contextKey)
				continue
			}
			// an explicit @type on the value object wins
			if f, exact := plainNumber(num); exact || inContext {
				t[k] = f
				continue
			}
			lexical, datatype := typedNumber(num)
			t[k] = lexical
			if _, typed := t[typeKey]; !typed {
				t[typeKey] = datatype
			}
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = convertNumbers(item, inContext)
		}
		return t
	case json.Number:
		f, exact := plainNumber(t)
		if exact || inContext {
			return f
		}
		lexical, datatype := typedNumber(t)
		return map[string]any{valueKey: lexical, typeKey: datatype}
	default:
		return v
	}
}

// plainNumber converts num to float64, reporting whether nothing was lost
func plainNumber(num json.Number) (float64, bool) {
	if i, err := strconv.ParseInt(num.String(), 10, 64); err == nil {
		return float64(i), i >= -maxExactInt && i <= maxExactInt
	}
	if isInteger(num.String()) {
		f, _ := strconv.ParseFloat(num.String(), 64)
		return f, false
	}
	f, err := strconv.ParseFloat(num.String(), 64)
	return f, err == nil && !math.IsInf(f, 0)
}

// typedNumber renders num as an xsd:integer or xsd:double lexical form
func typedNumber(num json.Number) (string, string) {
	s := num.String()
	if isInteger(s) {
		return s, xsdInteger
	}
	f, _ := strconv.ParseFloat(s, 64)
	switch {
	case math.IsInf(f, 1):
		return "INF", xsdDouble
	case math.IsInf(f, -1):
		return "-INF", xsdDouble
	}
	return s, xsdDouble
}

func isInteger(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}
