// Package rdfxml serializes a triple set as RDF/XML and reads that dialect back.
package rdfxml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alvmarrod/ld-weaver/internal/graph"
	"github.com/sirupsen/logrus"
)

const (
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	XMLNamespace = "http://www.w3.org/XML/1998/namespace"
)

// WriteError reports a failure to persist the graph
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// wellKnownPrefixes are used when a namespace matches exactly
var wellKnownPrefixes = map[string]string{
	RDFNamespace:                            "rdf",
	"http://www.w3.org/2000/01/rdf-schema#": "rdfs",
	"http://www.w3.org/2002/07/owl#":        "owl",
	"http://www.w3.org/2001/XMLSchema#":     "xsd",
	"http://schema.org/":                    "schema",
	"https://schema.org/":                   "schemas",
	"http://purl.org/dc/terms/":             "dcterms",
	"http://xmlns.com/foaf/0.1/":            "foaf",
}

// WriteFile serializes triples to path, replacing any existing file
func WriteFile(path string, triples []graph.Triple) error {
	var buf bytes.Buffer
	if err := Encode(&buf, triples); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &WriteError{Path: path, Err: err}
	}

	return nil
}

type predicateName struct {
	namespace string
	local     string
}

// Encode writes triples as RDF/XML. Output is sorted, so equal triple
// sets always produce identical bytes.
func Encode(w io.Writer, triples []graph.Triple) error {
	names := make(map[string]predicateName)
	namespaces := map[string]bool{RDFNamespace: true}

	for _, t := range triples {
		iri := t.Predicate.Value
		if _, done := names[iri]; done {
			continue
		}
		ns, local, err := graph.SplitIRI(iri)
		if err != nil {
			return err
		}
		names[iri] = predicateName{namespace: ns, local: local}
		namespaces[ns] = true
	}

	prefixes := assignPrefixes(namespaces)

	// group by subject
	bySubject := make(map[string][]graph.Triple)
	subjects := make(map[string]graph.Term)
	for _, t := range triples {
		key := t.Subject.String()
		subjects[key] = t.Subject
		bySubject[key] = append(bySubject[key], t)
	}

	subjectKeys := make([]string, 0, len(subjects))
	for key := range subjects {
		subjectKeys = append(subjectKeys, key)
	}
	sort.Strings(subjectKeys)

	bw := bufio.NewWriter(w)

	bw.WriteString(xml.Header)
	bw.WriteString("<rdf:RDF")
	for _, ns := range sortedKeys(prefixes) {
		fmt.Fprintf(bw, "\n   xmlns:%s=\"%s\"", prefixes[ns], escape(ns))
	}
	bw.WriteString(">\n")

	for _, key := range subjectKeys {
		subject := subjects[key]
		if subject.Kind == graph.Blank {
			fmt.Fprintf(bw, "  <rdf:Description rdf:nodeID=\"%s\">\n", escape(subject.Value))
		} else {
			fmt.Fprintf(bw, "  <rdf:Description rdf:about=\"%s\">\n", escape(subject.Value))
		}

		props := bySubject[key]
		sort.Slice(props, func(i, j int) bool {
			if props[i].Predicate.Value != props[j].Predicate.Value {
				return props[i].Predicate.Value < props[j].Predicate.Value
			}
			return props[i].Object.String() < props[j].Object.String()
		})

		for _, t := range props {
			name := names[t.Predicate.Value]
			qname := prefixes[name.namespace] + ":" + name.local
			writeProperty(bw, qname, t.Object)
		}

		bw.WriteString("  </rdf:Description>\n")
	}

	bw.WriteString("</rdf:RDF>\n")

	return bw.Flush()
}

func writeProperty(bw *bufio.Writer, qname string, obj graph.Term) {
	switch obj.Kind {
	case graph.IRI:
		fmt.Fprintf(bw, "    <%s rdf:resource=\"%s\"/>\n", qname, escape(obj.Value))
	case graph.Blank:
		fmt.Fprintf(bw, "    <%s rdf:nodeID=\"%s\"/>\n", qname, escape(obj.Value))
	default:
		attrs := ""
		if obj.Language != "" {
			attrs = fmt.Sprintf(" xml:lang=\"%s\"", escape(obj.Language))
		} else if obj.Datatype != "" && obj.Datatype != graph.XSDString {
			attrs = fmt.Sprintf(" rdf:datatype=\"%s\"", escape(obj.Datatype))
		}
		if !xmlSafe(obj.Value) {
			logrus.Warnf("Literal of %s holds characters XML 1.0 cannot carry; they are written as U+FFFD", qname)
		}
		fmt.Fprintf(bw, "    <%s%s>%s</%s>\n", qname, attrs, escape(obj.Value), qname)
	}
}

func assignPrefixes(namespaces map[string]bool) map[string]string {
	prefixes := make(map[string]string, len(namespaces))
	used := make(map[string]bool)

	for _, ns := range sortedKeys(namespaces) {
		if p, ok := wellKnownPrefixes[ns]; ok {
			prefixes[ns] = p
			used[p] = true
		}
	}

	n := 1
	for _, ns := range sortedKeys(namespaces) {
		if _, ok := prefixes[ns]; ok {
			continue
		}
		for used[fmt.Sprintf("ns%d", n)] {
			n++
		}
		p := fmt.Sprintf("ns%d", n)
		prefixes[ns] = p
		used[p] = true
	}

	return prefixes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// xmlSafe reports whether every rune of s is valid UTF-8 and an XML 1.0 Char
func xmlSafe(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
		case r < 0x20, r >= 0xD800 && r <= 0xDFFF, r == 0xFFFE, r == 0xFFFF:
			return false
		}
	}
	return true
}

func escape(s string) string {
	var sb strings.Builder
	xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
