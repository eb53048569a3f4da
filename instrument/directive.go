package instrument

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// FieldValueKind describes how a custom field obtains its value at
// invocation time.
type FieldValueKind int

const (
	// FieldValueLiteral records a constant taken from the directive text.
	FieldValueLiteral FieldValueKind = iota
	// FieldValueParam records the current value of the named parameter.
	FieldValueParam
	// FieldValueFunc records the result of a function supplied at bind
	// time via WithFieldFunc.
	FieldValueFunc
)

// Field is one entry of a fields(...) clause: a key plus the description of
// where its value comes from.
type Field struct {
	Key     string
	Kind    FieldValueKind
	Literal any    // set when Kind == FieldValueLiteral
	Param   string // set when Kind == FieldValueParam
}

// Directive is the parsed, normalized form of the directive text attached to
// a callable. It is produced once per callable and never mutated afterward.
//
// Parsing is purely syntactic: the directive does not yet know the callable's
// parameter list. Name resolution happens in Bind.
type Directive struct {
	SkipAll       bool
	Skip          []string // parameter names excluded from recording, in clause order
	Fields        []Field  // custom attributes, in clause order
	Ret           bool
	Err           bool
	ErrMapperName string // set for "err = <ident>"; the mapper itself arrives via WithErrorMapper
	Parent        string // parameter name supplying the parent context, "" if absent
	Name          string // span name override, "" means callable name
}

// ParseDirective parses directive text such as
//
//	skip(password), ret, err, fields(operation = "login"), name = "login_user"
//
// into a Directive. Clauses may appear in any order; each clause at most once.
// Unknown clauses and malformed syntax fail with ErrInvalidDirective,
// repeated keys inside fields(...) with ErrDuplicateField.
func ParseDirective(input string) (Directive, error) {
	p := &directiveScanner{input: input}
	d := Directive{}
	seen := map[string]bool{}

	p.skipSpaces()
	for !p.eof() {
		clausePos := p.pos
		clause, err := p.ident()
		if err != nil {
			return Directive{}, err
		}

		if seen[clause] {
			return Directive{}, invalidDirectiveAt(clausePos, "clause %q given more than once", clause)
		}
		seen[clause] = true

		switch clause {
		case "skip_all":
			d.SkipAll = true

		case "skip":
			names, parseErr := p.identList()
			if parseErr != nil {
				return Directive{}, parseErr
			}
			d.Skip = names

		case "fields":
			fields, parseErr := p.fieldList()
			if parseErr != nil {
				return Directive{}, parseErr
			}
			d.Fields = fields

		case "ret":
			d.Ret = true

		case "err":
			d.Err = true
			p.skipSpaces()
			if p.peek() == '=' {
				p.advance()
				p.skipSpaces()
				mapper, identErr := p.ident()
				if identErr != nil {
					return Directive{}, identErr
				}
				d.ErrMapperName = mapper
			}

		case "name":
			if expectErr := p.expect('='); expectErr != nil {
				return Directive{}, expectErr
			}
			name, litErr := p.stringLiteral()
			if litErr != nil {
				return Directive{}, litErr
			}
			d.Name = name

		case "parent":
			if expectErr := p.expect('='); expectErr != nil {
				return Directive{}, expectErr
			}
			p.skipSpaces()
			parent, identErr := p.ident()
			if identErr != nil {
				return Directive{}, identErr
			}
			d.Parent = parent

		default:
			return Directive{}, invalidDirectiveAt(clausePos, "unknown clause %q", clause)
		}

		p.skipSpaces()
		if p.eof() {
			break
		}
		if p.peek() != ',' {
			return Directive{}, invalidDirectiveAt(p.pos, "expected ',' between clauses, found %q", p.peek())
		}
		p.advance()
		p.skipSpaces()
	}

	return d, nil
}

// directiveScanner is a minimal hand-written scanner over the directive text.
type directiveScanner struct {
	input string
	pos   int
}

func (p *directiveScanner) eof() bool {
	return p.pos >= len(p.input)
}

func (p *directiveScanner) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *directiveScanner) advance() {
	p.pos++
}

func (p *directiveScanner) skipSpaces() {
	for !p.eof() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *directiveScanner) expect(c byte) error {
	p.skipSpaces()
	if p.eof() || p.input[p.pos] != c {
		return invalidDirectiveAt(p.pos, "expected %q", string(c))
	}
	p.pos++
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func (p *directiveScanner) ident() (string, error) {
	p.skipSpaces()
	if p.eof() || !isIdentStart(p.input[p.pos]) {
		return "", invalidDirectiveAt(p.pos, "expected identifier")
	}
	start := p.pos
	for !p.eof() && isIdentPart(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos], nil
}

// identList parses a parenthesized, comma-separated identifier list: (a, b, c).
func (p *directiveScanner) identList() ([]string, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var names []string
	p.skipSpaces()
	for p.peek() != ')' {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		p.skipSpaces()
		if p.peek() == ',' {
			p.advance()
			p.skipSpaces()
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return names, nil
}

// fieldList parses the body of a fields(...) clause. Each entry is
// "key = value" or the shorthand "key", which records the parameter of the
// same name. Values are string, integer, float, or boolean literals, or a
// bare identifier naming a parameter.
func (p *directiveScanner) fieldList() ([]Field, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	var fields []Field
	keys := map[string]bool{}
	p.skipSpaces()
	for p.peek() != ')' {
		keyPos := p.pos
		key, err := p.ident()
		if err != nil {
			return nil, err
		}
		if keys[key] {
			return nil, fmt.Errorf("%w: %q (at offset %d)", ErrDuplicateField, key, keyPos)
		}
		keys[key] = true

		field := Field{Key: key}
		p.skipSpaces()
		if p.peek() == '=' {
			p.advance()
			var valErr error
			field, valErr = p.fieldValue(key)
			if valErr != nil {
				return nil, valErr
			}
		} else {
			// Shorthand: fields(user) means fields(user = user).
			field.Kind = FieldValueParam
			field.Param = key
		}
		fields = append(fields, field)

		p.skipSpaces()
		if p.peek() == ',' {
			p.advance()
			p.skipSpaces()
			continue
		}
		break
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return fields, nil
}

func (p *directiveScanner) fieldValue(key string) (Field, error) {
	p.skipSpaces()
	if p.eof() {
		return Field{}, invalidDirectiveAt(p.pos, "missing value for field %q", key)
	}

	c := p.peek()
	switch {
	case c == '"':
		s, err := p.stringLiteral()
		if err != nil {
			return Field{}, err
		}
		return Field{Key: key, Kind: FieldValueLiteral, Literal: s}, nil

	case c == '-' || (c >= '0' && c <= '9'):
		return p.numberLiteral(key)

	case isIdentStart(c):
		word, err := p.ident()
		if err != nil {
			return Field{}, err
		}
		switch word {
		case "true":
			return Field{Key: key, Kind: FieldValueLiteral, Literal: true}, nil
		case "false":
			return Field{Key: key, Kind: FieldValueLiteral, Literal: false}, nil
		default:
			return Field{Key: key, Kind: FieldValueParam, Param: word}, nil
		}

	default:
		return Field{}, invalidDirectiveAt(p.pos, "malformed value for field %q", key)
	}
}

func (p *directiveScanner) stringLiteral() (string, error) {
	p.skipSpaces()
	if p.eof() || p.input[p.pos] != '"' {
		return "", invalidDirectiveAt(p.pos, "expected string literal")
	}
	p.pos++
	var sb strings.Builder
	for {
		if p.eof() {
			return "", invalidDirectiveAt(p.pos, "unterminated string literal")
		}
		c := p.input[p.pos]
		if c == '"' {
			p.pos++
			return sb.String(), nil
		}
		if c == '\\' {
			p.pos++
			if p.eof() {
				return "", invalidDirectiveAt(p.pos, "unterminated escape in string literal")
			}
			switch p.input[p.pos] {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return "", invalidDirectiveAt(p.pos, "unsupported escape %q", string(p.input[p.pos]))
			}
			p.pos++
			continue
		}
		sb.WriteByte(c)
		p.pos++
	}
}

func (p *directiveScanner) numberLiteral(key string) (Field, error) {
	start := p.pos
	if p.peek() == '-' {
		p.advance()
	}
	isFloat := false
	for !p.eof() {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	text := p.input[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Field{}, invalidDirectiveAt(start, "malformed number %q for field %q", text, key)
		}
		return Field{Key: key, Kind: FieldValueLiteral, Literal: f}, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return Field{}, invalidDirectiveAt(start, "malformed number %q for field %q", text, key)
	}
	return Field{Key: key, Kind: FieldValueLiteral, Literal: i}, nil
}
