// Package expression provides an immutable subject-relation-object record
// and its textual form "(subject) -[relation]-> (object)".
package expression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nvandessel/tensionflow/internal/network"
)

// ErrMalformed is returned by Parse for text that is not an expression.
var ErrMalformed = errors.New("malformed expression")

const (
	openSubject = "("
	openRel     = ") -["
	closeRel    = "]-> ("
	closeObject = ")"
)

// Expression states that Subject relates to Object via Relation.
// It is a value type; the zero value is the empty expression.
type Expression struct {
	Subject  string `json:"subject" yaml:"subject"`
	Relation string `json:"relation" yaml:"relation"`
	Object   string `json:"object" yaml:"object"`
}

// New returns an expression.
func New(subject, relation, object string) Expression {
	return Expression{Subject: subject, Relation: relation, Object: object}
}

// String renders the expression as "(subject) -[relation]-> (object)".
func (e Expression) String() string {
	return openSubject + e.Subject + openRel + e.Relation + closeRel + e.Object + closeObject
}

// NetworkRelation turns the expression into an undirected network relation
// between subject and object. The relation label is dropped.
func (e Expression) NetworkRelation(weight float64) network.Relation {
	return network.Relation{A: e.Subject, B: e.Object, Weight: weight}
}

// Parse reads the form produced by String. The subject ends at the first
// ") -[" and the object starts after the last "]-> (".
func Parse(s string) (Expression, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, openSubject) || !strings.HasSuffix(s, closeObject) {
		return Expression{}, fmt.Errorf("parse %q: %w", s, ErrMalformed)
	}

	body := s[len(openSubject) : len(s)-len(closeObject)]
	i := strings.Index(body, openRel)
	j := strings.LastIndex(body, closeRel)
	if i < 0 || j < 0 || j < i+len(openRel) {
		return Expression{}, fmt.Errorf("parse %q: %w", s, ErrMalformed)
	}

	return Expression{
		Subject:  body[:i],
		Relation: body[i+len(openRel) : j],
		Object:   body[j+len(closeRel):],
	}, nil
}
