package usd

import (
	"fmt"
	"strconv"
	"strings"
)

// layer is one parsed usda text layer: its metadata and prim tree.
type layer struct {
	defaultPrim   string
	metersPerUnit float64
	subLayers     []string
	roots         []*prim
	index         map[string]*prim
}

// prim is one composed prim: type name, applied API schemas, attributes,
// relationships, and children in document order.
type prim struct {
	name     string
	typeName string
	path     string
	apis     []string
	attrs    map[string]value
	rels     map[string][]string
	children []*prim
}

// value is a parsed attribute value. Numeric scalars, tuples, and
// matrices land in nums (flattened); strings, assets, and paths in str;
// string or path lists in list.
type value struct {
	nums []float64
	str  string
	list []string
}

func (p *prim) hasAPI(name string) bool {
	for _, a := range p.apis {
		if a == name {
			return true
		}
	}
	return false
}

func (p *prim) child(name string) *prim {
	for _, c := range p.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (p *prim) float(name string) (float64, bool) {
	v, ok := p.attrs[name]
	if !ok || len(v.nums) != 1 {
		return 0, false
	}
	return v.nums[0], true
}

func (p *prim) floats(name string, n int) ([]float64, bool) {
	v, ok := p.attrs[name]
	if !ok || len(v.nums) != n {
		return nil, false
	}
	return v.nums, true
}

func (p *prim) token(name string) (string, bool) {
	v, ok := p.attrs[name]
	if !ok {
		return "", false
	}
	return v.str, true
}

// descendants appends p and every prim below it, in document order.
func (p *prim) descendants(out []*prim) []*prim {
	out = append(out, p)
	for _, c := range p.children {
		out = c.descendants(out)
	}
	return out
}

// lexer tokenizes the usda text subset: punctuation, numbers, quoted
// strings, @asset@ references, </prim/paths>, and identifiers.
type lexer struct {
	src  string
	pos  int
	line int
}

type token struct {
	kind string // "punct", "num", "str", "asset", "path", "ident", "eof"
	text string
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) errf(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == ',' || c == ';':
			l.pos++
		case c == '#' || (c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/'):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return l.scan()
		}
	}
	return token{kind: "eof", line: l.line}, nil
}

func (l *lexer) scan() (token, error) {
	c := l.src[l.pos]
	line := l.line
	switch {
	case strings.ContainsRune("()[]{}=", rune(c)):
		l.pos++
		return token{kind: "punct", text: string(c), line: line}, nil
	case c == '"':
		return l.scanString()
	case c == '@':
		end := strings.IndexByte(l.src[l.pos+1:], '@')
		if end < 0 {
			return token{}, l.errf(line, "unterminated asset reference")
		}
		text := l.src[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return token{kind: "asset", text: text, line: line}, nil
	case c == '<':
		end := strings.IndexByte(l.src[l.pos:], '>')
		if end < 0 {
			return token{}, l.errf(line, "unterminated prim path")
		}
		text := l.src[l.pos+1 : l.pos+end]
		l.pos += end + 1
		return token{kind: "path", text: text, line: line}, nil
	case c >= '0' && c <= '9' || c == '-' || c == '+' || c == '.':
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && strings.ContainsRune("0123456789.eE+-", rune(l.src[l.pos])) {
			l.pos++
		}
		return token{kind: "num", text: l.src[start:l.pos], line: line}, nil
	case isIdentByte(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentByte(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: "ident", text: l.src[start:l.pos], line: line}, nil
	default:
		return token{}, l.errf(line, "unexpected character %q", c)
	}
}

func (l *lexer) scanString() (token, error) {
	line := l.line
	// Triple-quoted strings appear in doc metadata; skip to the closing
	// triple quote.
	if strings.HasPrefix(l.src[l.pos:], `"""`) {
		end := strings.Index(l.src[l.pos+3:], `"""`)
		if end < 0 {
			return token{}, l.errf(line, "unterminated string")
		}
		text := l.src[l.pos+3 : l.pos+3+end]
		l.line += strings.Count(text, "\n")
		l.pos += end + 6
		return token{kind: "str", text: text, line: line}, nil
	}
	end := strings.IndexByte(l.src[l.pos+1:], '"')
	if end < 0 {
		return token{}, l.errf(line, "unterminated string")
	}
	text := l.src[l.pos+1 : l.pos+1+end]
	l.pos += end + 2
	return token{kind: "str", text: text, line: line}, nil
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == ':' || c == '.'
}

// qualifiers that may precede attribute declarations and metadata entries.
var qualifiers = map[string]bool{
	"uniform": true, "custom": true, "varying": true,
	"prepend": true, "append": true, "add": true, "delete": true,
}

type usdaParser struct {
	lex  *lexer
	tok  token
	peek *token
}

// parseLayer reads one usda document into a layer.
func parseLayer(data []byte) (*layer, error) {
	src := string(data)
	if !strings.HasPrefix(src, "#usda") {
		return nil, fmt.Errorf("missing #usda header")
	}
	nl := strings.IndexByte(src, '\n')
	if nl < 0 {
		nl = len(src)
	}

	p := &usdaParser{lex: newLexer(src[nl:])}
	p.lex.line = 2
	if err := p.advance(); err != nil {
		return nil, err
	}

	ly := &layer{metersPerUnit: 1, index: make(map[string]*prim)}
	if p.tok.kind == "punct" && p.tok.text == "(" {
		if err := p.parseLayerMetadata(ly); err != nil {
			return nil, err
		}
	}
	for p.tok.kind != "eof" {
		pr, err := p.parsePrim("")
		if err != nil {
			return nil, err
		}
		ly.roots = append(ly.roots, pr)
	}
	ly.reindex()
	return ly, nil
}

func (ly *layer) reindex() {
	ly.index = make(map[string]*prim)
	for _, r := range ly.roots {
		for _, pr := range r.descendants(nil) {
			ly.index[pr.path] = pr
		}
	}
}

func (p *usdaParser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *usdaParser) peekTok() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *usdaParser) expect(kind, text string) error {
	if p.tok.kind != kind || (text != "" && p.tok.text != text) {
		return p.lex.errf(p.tok.line, "expected %s %q, got %q", kind, text, p.tok.text)
	}
	return p.advance()
}

func (p *usdaParser) parseLayerMetadata(ly *layer) error {
	if err := p.expect("punct", "("); err != nil {
		return err
	}
	for !(p.tok.kind == "punct" && p.tok.text == ")") {
		if p.tok.kind == "str" {
			// Bare doc string.
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		name, v, err := p.parseMetadataEntry()
		if err != nil {
			return err
		}
		switch name {
		case "defaultPrim":
			ly.defaultPrim = v.str
		case "metersPerUnit":
			if len(v.nums) == 1 {
				ly.metersPerUnit = v.nums[0]
			}
		case "subLayers":
			ly.subLayers = v.list
		}
	}
	return p.advance()
}

// parseMetadataEntry reads `[qualifier] name = value`.
func (p *usdaParser) parseMetadataEntry() (string, value, error) {
	for p.tok.kind == "ident" && qualifiers[p.tok.text] {
		if err := p.advance(); err != nil {
			return "", value{}, err
		}
	}
	if p.tok.kind != "ident" {
		return "", value{}, p.lex.errf(p.tok.line, "expected metadata name, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return "", value{}, err
	}
	if err := p.expect("punct", "="); err != nil {
		return "", value{}, err
	}
	v, err := p.parseValue()
	return name, v, err
}

func (p *usdaParser) parsePrim(parentPath string) (*prim, error) {
	if p.tok.kind != "ident" || (p.tok.text != "def" && p.tok.text != "over" && p.tok.text != "class") {
		return nil, p.lex.errf(p.tok.line, "expected prim specifier, got %q", p.tok.text)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	pr := &prim{attrs: make(map[string]value), rels: make(map[string][]string)}
	if p.tok.kind == "ident" {
		pr.typeName = p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != "str" {
		return nil, p.lex.errf(p.tok.line, "expected prim name string, got %q", p.tok.text)
	}
	pr.name = p.tok.text
	pr.path = parentPath + "/" + pr.name
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind == "punct" && p.tok.text == "(" {
		if err := p.parsePrimMetadata(pr); err != nil {
			return nil, err
		}
	}

	if err := p.expect("punct", "{"); err != nil {
		return nil, err
	}
	for !(p.tok.kind == "punct" && p.tok.text == "}") {
		if err := p.parsePrimStatement(pr); err != nil {
			return nil, err
		}
	}
	return pr, p.advance()
}

func (p *usdaParser) parsePrimMetadata(pr *prim) error {
	if err := p.expect("punct", "("); err != nil {
		return err
	}
	for !(p.tok.kind == "punct" && p.tok.text == ")") {
		if p.tok.kind == "str" {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		name, v, err := p.parseMetadataEntry()
		if err != nil {
			return err
		}
		if name == "apiSchemas" {
			pr.apis = v.list
		}
	}
	return p.advance()
}

func (p *usdaParser) parsePrimStatement(pr *prim) error {
	if p.tok.kind != "ident" {
		return p.lex.errf(p.tok.line, "expected statement, got %q", p.tok.text)
	}

	switch p.tok.text {
	case "def", "over", "class":
		child, err := p.parsePrim(pr.path)
		if err != nil {
			return err
		}
		pr.children = append(pr.children, child)
		return nil
	case "rel":
		if err := p.advance(); err != nil {
			return err
		}
		return p.parseRel(pr)
	}

	// Attribute: qualifiers, type, name, optional value and metadata.
	for p.tok.kind == "ident" && qualifiers[p.tok.text] {
		if err := p.advance(); err != nil {
			return err
		}
	}
	if p.tok.kind != "ident" {
		return p.lex.errf(p.tok.line, "expected attribute type, got %q", p.tok.text)
	}
	if err := p.advance(); err != nil { // type name, e.g. float3
		return err
	}
	// Array types carry a [] suffix.
	if p.tok.kind == "punct" && p.tok.text == "[" {
		if err := p.advance(); err != nil {
			return err
		}
		if err := p.expect("punct", "]"); err != nil {
			return err
		}
	}
	if p.tok.kind != "ident" {
		return p.lex.errf(p.tok.line, "expected attribute name, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return err
	}

	if p.tok.kind == "punct" && p.tok.text == "=" {
		if err := p.advance(); err != nil {
			return err
		}
		v, err := p.parseValue()
		if err != nil {
			return err
		}
		pr.attrs[name] = v
	}
	// Trailing attribute metadata, e.g. (doc = "...").
	if p.tok.kind == "punct" && p.tok.text == "(" {
		if err := p.skipParens(); err != nil {
			return err
		}
	}
	return nil
}

func (p *usdaParser) parseRel(pr *prim) error {
	if p.tok.kind != "ident" {
		return p.lex.errf(p.tok.line, "expected relationship name, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return err
	}
	if !(p.tok.kind == "punct" && p.tok.text == "=") {
		// Declaration without targets.
		return nil
	}
	if err := p.advance(); err != nil {
		return err
	}
	v, err := p.parseValue()
	if err != nil {
		return err
	}
	if v.str != "" {
		pr.rels[name] = []string{v.str}
	} else {
		pr.rels[name] = v.list
	}
	return nil
}

func (p *usdaParser) parseValue() (value, error) {
	switch p.tok.kind {
	case "num":
		f, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return value{}, p.lex.errf(p.tok.line, "bad number %q", p.tok.text)
		}
		return value{nums: []float64{f}}, p.advance()
	case "str", "asset", "path":
		v := value{str: p.tok.text}
		return v, p.advance()
	case "ident": // true, false, None
		v := value{str: p.tok.text}
		return v, p.advance()
	case "punct":
		switch p.tok.text {
		case "(":
			return p.parseTuple()
		case "[":
			return p.parseList()
		}
	}
	return value{}, p.lex.errf(p.tok.line, "expected value, got %q", p.tok.text)
}

// parseTuple flattens (1, 2, 3) and nested matrix rows into one float
// slice.
func (p *usdaParser) parseTuple() (value, error) {
	if err := p.advance(); err != nil {
		return value{}, err
	}
	var nums []float64
	for !(p.tok.kind == "punct" && p.tok.text == ")") {
		v, err := p.parseValue()
		if err != nil {
			return value{}, err
		}
		nums = append(nums, v.nums...)
	}
	return value{nums: nums}, p.advance()
}

func (p *usdaParser) parseList() (value, error) {
	if err := p.advance(); err != nil {
		return value{}, err
	}
	var out value
	for !(p.tok.kind == "punct" && p.tok.text == "]") {
		v, err := p.parseValue()
		if err != nil {
			return value{}, err
		}
		if v.str != "" {
			out.list = append(out.list, v.str)
		} else {
			out.nums = append(out.nums, v.nums...)
		}
	}
	return out, p.advance()
}

func (p *usdaParser) skipParens() error {
	depth := 0
	for {
		if p.tok.kind == "punct" {
			switch p.tok.text {
			case "(":
				depth++
			case ")":
				depth--
			}
		}
		if p.tok.kind == "eof" {
			return p.lex.errf(p.tok.line, "unterminated metadata")
		}
		if err := p.advance(); err != nil {
			return err
		}
		if depth == 0 {
			return nil
		}
	}
}

// compose merges a weaker sublayer into this layer. Existing opinions
// win; the sublayer only fills in prims, attributes, and relationships
// the stronger layer does not author.
func (ly *layer) compose(weaker *layer) {
	if ly.defaultPrim == "" {
		ly.defaultPrim = weaker.defaultPrim
	}
	for _, r := range weaker.roots {
		ly.mergePrim(r, "")
	}
	ly.reindex()
}

func (ly *layer) mergePrim(src *prim, parentPath string) {
	dst, ok := ly.index[src.path]
	if !ok {
		if parentPath == "" {
			ly.roots = append(ly.roots, src)
		} else if parent, ok := ly.index[parentPath]; ok {
			parent.children = append(parent.children, src)
		}
		for _, pr := range src.descendants(nil) {
			ly.index[pr.path] = pr
		}
		return
	}
	if dst.typeName == "" {
		dst.typeName = src.typeName
	}
	for _, api := range src.apis {
		if !dst.hasAPI(api) {
			dst.apis = append(dst.apis, api)
		}
	}
	for k, v := range src.attrs {
		if _, ok := dst.attrs[k]; !ok {
			dst.attrs[k] = v
		}
	}
	for k, v := range src.rels {
		if _, ok := dst.rels[k]; !ok {
			dst.rels[k] = v
		}
	}
	for _, c := range src.children {
		ly.mergePrim(c, src.path)
	}
}
