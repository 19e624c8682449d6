package rdfxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alvmarrod/ld-weaver/internal/graph"
)

// ReadFile decodes the RDF/XML document at path
func ReadFile(path string) ([]graph.Triple, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads RDF/XML made of node elements with flat property elements,
// which covers everything Encode produces. Nested node elements inside a
// property, rdf:parseType and reification are rejected.
func Decode(r io.Reader) ([]graph.Triple, error) {
	dec := xml.NewDecoder(r)

	var triples []graph.Triple
	depth := 0
	var subject graph.Term

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read RDF/XML: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if !isRDF(el.Name, "RDF") {
					return nil, fmt.Errorf("root element is %s:%s, expected rdf:RDF", el.Name.Space, el.Name.Local)
				}
			case 2:
				s, typeTriple, err := nodeElement(el)
				if err != nil {
					return nil, err
				}
				subject = s
				if typeTriple != nil {
					triples = append(triples, *typeTriple)
				}
			case 3:
				t, err := propertyElement(dec, subject, el)
				if err != nil {
					return nil, err
				}
				triples = append(triples, t)
				// propertyElement consumed the end element
				depth--
			}
		case xml.EndElement:
			depth--
		}
	}

	return triples, nil
}

func isRDF(name xml.Name, local string) bool {
	return name.Space == RDFNamespace && name.Local == local
}

func attr(el xml.StartElement, space, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Space == space && a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// nodeElement resolves the subject of a node element. Typed node
// elements also yield an rdf:type triple.
func nodeElement(el xml.StartElement) (graph.Term, *graph.Triple, error) {
	var subject graph.Term
	if about, ok := attr(el, RDFNamespace, "about"); ok {
		subject = graph.NewIRI(about)
	} else if id, ok := attr(el, RDFNamespace, "nodeID"); ok {
		subject = graph.NewBlank(id)
	} else {
		return graph.Term{}, nil, fmt.Errorf("node element %s has neither rdf:about nor rdf:nodeID", el.Name.Local)
	}

	if isRDF(el.Name, "Description") {
		return subject, nil, nil
	}

	return subject, &graph.Triple{
		Subject:   subject,
		Predicate: graph.NewIRI(RDFNamespace + "type"),
		Object:    graph.NewIRI(el.Name.Space + el.Name.Local),
	}, nil
}

// propertyElement reads one property element through its end tag
func propertyElement(dec *xml.Decoder, subject graph.Term, el xml.StartElement) (graph.Triple, error) {
	t := graph.Triple{
		Subject:   subject,
		Predicate: graph.NewIRI(el.Name.Space + el.Name.Local),
	}

	if _, ok := attr(el, RDFNamespace, "parseType"); ok {
		return t, fmt.Errorf("rdf:parseType on %s is not supported", el.Name.Local)
	}

	var text strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return t, fmt.Errorf("failed to read property %s: %w", el.Name.Local, err)
		}
		if _, ok := tok.(xml.EndElement); ok {
			break
		}
		switch inner := tok.(type) {
		case xml.CharData:
			text.Write(inner)
		case xml.StartElement:
			return t, fmt.Errorf("nested node element %s in property %s is not supported", inner.Name.Local, el.Name.Local)
		}
	}

	if resource, ok := attr(el, RDFNamespace, "resource"); ok {
		t.Object = graph.NewIRI(resource)
		return t, nil
	}
	if id, ok := attr(el, RDFNamespace, "nodeID"); ok {
		t.Object = graph.NewBlank(id)
		return t, nil
	}

	lang, _ := attr(el, XMLNamespace, "lang")
	datatype, _ := attr(el, RDFNamespace, "datatype")
	t.Object = graph.NewLiteral(text.String(), datatype, lang)

	return t, nil
}
