package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// EvalExpr evaluates a rendered trigger condition as a boolean
// expression. The grammar is deliberately small: literals (booleans,
// numbers, single- or double-quoted strings), comparison operators,
// boolean operators (`&& || !` or `and or not`) and parentheses.
// Identifiers and calls are rejected; rendered text is never executed
// as code.
func EvalExpr(text string) (bool, error) {
	p := &exprParser{tokens: nil}
	tokens, err := lexExpr(text)
	if err != nil {
		return false, err
	}
	p.tokens = tokens

	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.pos < len(p.tokens) {
		return false, fmt.Errorf("unexpected '%s'", p.tokens[p.pos].text)
	}
	return truthy(v), nil
}

// truthy follows the conventions template authors expect: false,
// zero and the empty string are false, everything else is true.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return false
}

type tokenKind int

const (
	tokBool tokenKind = iota
	tokNumber
	tokString
	tokOp    // == != < <= > >= && || !
	tokParen // ( )
)

type token struct {
	kind tokenKind
	text string
	b    bool
	n    float64
}

func lexExpr(text string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(text) {
		c := rune(text[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(' || c == ')':
			tokens = append(tokens, token{kind: tokParen, text: string(c)})
			i++
		case c == '\'' || c == '"':
			s, next, err := lexString(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: s})
			i = next
		case unicode.IsDigit(c) || (c == '-' && i+1 < len(text) && unicode.IsDigit(rune(text[i+1]))):
			j := i + 1
			for j < len(text) && (unicode.IsDigit(rune(text[j])) || text[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(text[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number '%s'", text[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, n: n, text: text[i:j]})
			i = j
		case unicode.IsLetter(c):
			j := i + 1
			for j < len(text) && (unicode.IsLetter(rune(text[j])) || unicode.IsDigit(rune(text[j])) || text[j] == '_') {
				j++
			}
			word := text[i:j]
			switch strings.ToLower(word) {
			case "true":
				tokens = append(tokens, token{kind: tokBool, b: true, text: word})
			case "false":
				tokens = append(tokens, token{kind: tokBool, b: false, text: word})
			case "and":
				tokens = append(tokens, token{kind: tokOp, text: "&&"})
			case "or":
				tokens = append(tokens, token{kind: tokOp, text: "||"})
			case "not":
				tokens = append(tokens, token{kind: tokOp, text: "!"})
			default:
				return nil, fmt.Errorf("identifiers are not allowed in conditions: '%s'", word)
			}
			i = j
		default:
			op, next, err := lexOp(text, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokOp, text: op})
			i = next
		}
	}
	return tokens, nil
}

func lexString(text string, start int) (string, int, error) {
	quote := text[start]
	var b strings.Builder
	i := start + 1
	for i < len(text) {
		switch text[i] {
		case '\\':
			if i+1 >= len(text) {
				return "", 0, fmt.Errorf("unterminated escape in string")
			}
			b.WriteByte(text[i+1])
			i += 2
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(text[i])
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func lexOp(text string, i int) (string, int, error) {
	two := ""
	if i+1 < len(text) {
		two = text[i : i+2]
	}
	switch two {
	case "==", "!=", "<=", ">=", "&&", "||":
		return two, i + 2, nil
	}
	switch text[i] {
	case '<', '>', '!':
		return string(text[i]), i + 1, nil
	}
	return "", 0, fmt.Errorf("unexpected character '%c'", text[i])
}

type exprParser struct {
	tokens []token
	pos    int
}

func (p *exprParser) peekOp(ops ...string) bool {
	if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokOp {
		return false
	}
	for _, op := range ops {
		if p.tokens[p.pos].text == op {
			return true
		}
	}
	return false
}

func (p *exprParser) parseOr() (interface{}, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekOp("||") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = truthy(left) || truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseAnd() (interface{}, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekOp("&&") {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = truthy(left) && truthy(right)
	}
	return left, nil
}

func (p *exprParser) parseUnary() (interface{}, error) {
	if p.peekOp("!") {
		p.pos++
		v, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	}
	return p.parseCmp()
}

func (p *exprParser) parseCmp() (interface{}, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if !p.peekOp("==", "!=", "<", "<=", ">", ">=") {
		return left, nil
	}
	op := p.tokens[p.pos].text
	p.pos++
	right, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	return compare(op, left, right)
}

func compare(op string, left, right interface{}) (bool, error) {
	switch op {
	case "==":
		return left == right, nil
	case "!=":
		return left != right, nil
	}

	// Ordering is defined for two numbers or two strings.
	if ln, lok := left.(float64); lok {
		rn, rok := right.(float64)
		if !rok {
			return false, fmt.Errorf("cannot compare number with %T", right)
		}
		switch op {
		case "<":
			return ln < rn, nil
		case "<=":
			return ln <= rn, nil
		case ">":
			return ln > rn, nil
		case ">=":
			return ln >= rn, nil
		}
	}
	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return false, fmt.Errorf("cannot compare string with %T", right)
		}
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("operator '%s' is not defined for %T", op, left)
}

func (p *exprParser) parsePrimary() (interface{}, error) {
	if p.pos >= len(p.tokens) {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	tok := p.tokens[p.pos]
	switch tok.kind {
	case tokBool:
		p.pos++
		return tok.b, nil
	case tokNumber:
		p.pos++
		return tok.n, nil
	case tokString:
		p.pos++
		return tok.text, nil
	case tokParen:
		if tok.text == "(" {
			p.pos++
			v, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.tokens) || p.tokens[p.pos].kind != tokParen || p.tokens[p.pos].text != ")" {
				return nil, fmt.Errorf("missing closing parenthesis")
			}
			p.pos++
			return v, nil
		}
	}
	return nil, fmt.Errorf("unexpected '%s'", tok.text)
}
