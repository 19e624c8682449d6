package graph

import (
	"strings"

	"github.com/piprate/json-gold/ld"
)

// Well-known datatype IRIs
const (
	XSDString     = "http://www.w3.org/2001/XMLSchema#string"
	RDFLangString = "http://www.w3.org/1999/02/22-rdf-syntax-ns#langString"
)

// TermKind distinguishes the three RDF term types
type TermKind int

const (
	IRI TermKind = iota
	Blank
	Literal
)

// Term is an RDF node. Blank node values carry no "_:" prefix.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Language string
}

// NewIRI creates an IRI term
func NewIRI(iri string) Term {
	return Term{Kind: IRI, Value: iri}
}

// NewBlank creates a blank node term
func NewBlank(label string) Term {
	return Term{Kind: Blank, Value: strings.TrimPrefix(label, "_:")}
}

// NewLiteral creates a literal; an empty datatype means xsd:string
func NewLiteral(value, datatype, language string) Term {
	if language != "" {
		datatype = RDFLangString
	} else if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: Literal, Value: value, Datatype: datatype, Language: language}
}

// String renders the term in N-Triples syntax
func (t Term) String() string {
	switch t.Kind {
	case IRI:
		return "<" + t.Value + ">"
	case Blank:
		return "_:" + t.Value
	default:
		s := `"` + escapeLiteral(t.Value) + `"`
		if t.Language != "" {
			return s + "@" + t.Language
		}
		if t.Datatype != XSDString {
			return s + "^^<" + t.Datatype + ">"
		}
		return s
	}
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

func escapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// Triple is a subject-predicate-object statement
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// String renders the triple as one N-Triples line without the newline
func (t Triple) String() string {
	return t.Subject.String() + " " + t.Predicate.String() + " " + t.Object.String() + " ."
}

// fromNode converts a json-gold node, scoping blank node labels with prefix
func fromNode(n ld.Node, blankPrefix string) (Term, bool) {
	switch node := n.(type) {
	case *ld.IRI:
		return NewIRI(node.Value), true
	case *ld.BlankNode:
		return NewBlank(blankPrefix + strings.TrimPrefix(node.Attribute, "_:")), true
	case *ld.Literal:
		return NewLiteral(node.Value, node.Datatype, node.Language), true
	default:
		return Term{}, false
	}
}
