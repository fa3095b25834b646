package query

import (
	"strings"

	"github.com/Aidin1998/tradebook/pkg/apperrors"
)

// Parse turns filter text into an AST. `;` binds tighter than `,`, matching
// FIQL precedence, so `a==1,b==2;c==3` reads as a==1 OR (b==2 AND c==3).
func Parse(input string) (Node, error) {
	p := &parser{input: input}
	p.skipSpace()
	if p.eof() {
		return nil, apperrors.QuerySyntax(input, "empty query")
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, apperrors.QuerySyntax(p.rest(), "unexpected trailing input")
	}
	return node, nil
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parseOr() (Node, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.consume(',') {
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return OrNode{Children: children}, nil
}

func (p *parser) parseAnd() (Node, error) {
	first, err := p.parseUnit()
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.consume(';') {
		next, err := p.parseUnit()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return AndNode{Children: children}, nil
}

func (p *parser) parseUnit() (Node, error) {
	p.skipSpace()
	if p.consume('(') {
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.consume(')') {
			return nil, apperrors.QuerySyntax(p.rest(), "missing closing parenthesis")
		}
		return node, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	p.skipSpace()
	selector := p.readWhile(isSelectorChar)
	if selector == "" {
		return nil, apperrors.QuerySyntax(p.rest(), "expected field selector")
	}

	op, err := p.readOperator()
	if err != nil {
		return nil, err
	}

	args, err := p.readArguments()
	if err != nil {
		return nil, err
	}

	return ComparisonNode{Selector: selector, Operator: op, Arguments: args}, nil
}

func (p *parser) readOperator() (string, error) {
	switch {
	case p.hasPrefix("=="):
		p.pos += 2
		return OpEqual, nil
	case p.hasPrefix("!="):
		p.pos += 2
		return OpNotEqual, nil
	case p.hasPrefix("="):
		end := strings.Index(p.input[p.pos+1:], "=")
		if end < 0 {
			return "", apperrors.QuerySyntax(p.rest(), "malformed operator")
		}
		op := p.input[p.pos : p.pos+end+2]
		switch op {
		case OpGreaterOrEqual, OpLessOrEqual, OpGreaterThan, OpLessThan, OpIn, OpOut:
			p.pos += len(op)
			return op, nil
		}
		return "", apperrors.QuerySyntax(op, "unknown operator")
	}
	return "", apperrors.QuerySyntax(p.rest(), "expected comparison operator")
}

func (p *parser) readArguments() ([]string, error) {
	p.skipSpace()
	if p.consume('(') {
		var args []string
		for {
			value, err := p.readValue()
			if err != nil {
				return nil, err
			}
			args = append(args, value)
			if p.consume(',') {
				continue
			}
			if p.consume(')') {
				return args, nil
			}
			return nil, apperrors.QuerySyntax(p.rest(), "expected , or ) in argument list")
		}
	}
	value, err := p.readValue()
	if err != nil {
		return nil, err
	}
	return []string{value}, nil
}

func (p *parser) readValue() (string, error) {
	p.skipSpace()
	if p.eof() {
		return "", apperrors.QuerySyntax(p.input, "expected value")
	}
	if quote := p.input[p.pos]; quote == '\'' || quote == '"' {
		p.pos++
		end := strings.IndexByte(p.input[p.pos:], quote)
		if end < 0 {
			return "", apperrors.QuerySyntax(p.input[p.pos-1:], "unterminated quoted value")
		}
		value := p.input[p.pos : p.pos+end]
		p.pos += end + 1
		return value, nil
	}
	value := p.readWhile(isValueChar)
	if value == "" {
		return "", apperrors.QuerySyntax(p.rest(), "expected value")
	}
	return value, nil
}

func (p *parser) readWhile(pred func(byte) bool) string {
	start := p.pos
	for !p.eof() && pred(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) consume(c byte) bool {
	p.skipSpace()
	if !p.eof() && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) hasPrefix(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *parser) skipSpace() {
	for !p.eof() && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) eof() bool { return p.pos >= len(p.input) }

// rest returns the unconsumed input, truncated, for error fragments
func (p *parser) rest() string {
	r := p.input[p.pos:]
	if len(r) > 40 {
		r = r[:40]
	}
	return r
}

func isSelectorChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '.' || c == '_'
}

func isValueChar(c byte) bool {
	switch c {
	case ',', ';', '(', ')', '=', '!', '"', '\'', ' ', '\t':
		return false
	}
	return true
}
