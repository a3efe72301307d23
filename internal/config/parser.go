package config

import "fmt"

// Parser consumes a token stream produced by Lexer and builds the
// ServerBlock tree. It mirrors original_source/config/parser.cpp's
// recursive-descent shape: one parseXDirective method per directive
// keyword, an expect() that raises a line-numbered error on mismatch.
type Parser struct {
	tokens  []Token
	current int
}

// NewParser returns a Parser over tokens (as produced by Lexer.Tokenize).
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() Token {
	if p.current < len(p.tokens) {
		return p.tokens[p.current]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) advance() Token {
	t := p.peek()
	if p.current < len(p.tokens)-1 {
		p.current++
	}
	return t
}

func (p *Parser) atEnd() bool {
	return p.peek().Type == tokEOF
}

func (p *Parser) matchKeyword(word string) bool {
	t := p.peek()
	if t.Type == tokKeyword && t.Value == word {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt TokenType, value string, what string) error {
	t := p.peek()
	if t.Type != tt || (value != "" && t.Value != value) {
		return fmt.Errorf("config: expected %s at line %d, got %q", what, t.Line, t.Value)
	}
	p.advance()
	return nil
}

func (p *Parser) expectSemicolon() error {
	return p.expect(tokSemicolon, ";", "';'")
}

// Parse consumes the whole token stream and returns the server blocks.
func (p *Parser) Parse() ([]ServerBlock, error) {
	var servers []ServerBlock
	for !p.atEnd() {
		if !p.matchKeyword("server") {
			return nil, fmt.Errorf("config: expected 'server' keyword at line %d", p.peek().Line)
		}
		sb, err := p.parseServerBlock()
		if err != nil {
			return nil, err
		}
		servers = append(servers, sb)
	}
	if len(servers) == 0 {
		return nil, fmt.Errorf("config: no server blocks defined")
	}
	return servers, nil
}

func (p *Parser) parseServerBlock() (ServerBlock, error) {
	sb := ServerBlock{Host: "0.0.0.0", Port: 80}
	if err := p.expect(tokLeftBrace, "{", "'{' after 'server'"); err != nil {
		return sb, err
	}

	seenClientMaxBodySize := false
	hostSet, portSet := false, false

	for !p.atEnd() && p.peek().Type != tokRightBrace {
		t := p.peek()
		if t.Type != tokKeyword {
			return sb, fmt.Errorf("config: unexpected directive %q at line %d", t.Value, t.Line)
		}
		switch t.Value {
		case "host":
			host, err := p.parseHostDirective()
			if err != nil {
				return sb, err
			}
			sb.Host = host
			hostSet = true
		case "port":
			port, err := p.parsePortDirective()
			if err != nil {
				return sb, err
			}
			sb.Port = port
			portSet = true
		case "root":
			root, err := p.parseRootDirective()
			if err != nil {
				return sb, err
			}
			sb.Root = root
		case "client_max_body_size":
			if seenClientMaxBodySize {
				return sb, fmt.Errorf("config: duplicate 'client_max_body_size' at line %d", t.Line)
			}
			seenClientMaxBodySize = true
			size, err := p.parseClientMaxBodySizeDirective()
			if err != nil {
				return sb, err
			}
			sb.ClientMaxBodySize = size
		case "index":
			idx, err := p.parseIndexDirective()
			if err != nil {
				return sb, err
			}
			sb.Index = idx
		case "error_page":
			ep, err := p.parseErrorPageDirective()
			if err != nil {
				return sb, err
			}
			sb.ErrorPages = append(sb.ErrorPages, ep)
		case "autoindex":
			on, err := p.parseAutoindexDirective()
			if err != nil {
				return sb, err
			}
			sb.Autoindex = on
		case "location":
			loc, err := p.parseLocationBlock()
			if err != nil {
				return sb, err
			}
			sb.Locations = append(sb.Locations, loc)
		default:
			return sb, fmt.Errorf("config: unexpected directive %q at line %d", t.Value, t.Line)
		}
	}

	if err := p.expect(tokRightBrace, "}", "'}' to close server block"); err != nil {
		return sb, err
	}
	_, _ = hostSet, portSet
	return sb, nil
}

func (p *Parser) parseHostDirective() (string, error) {
	p.advance() // 'host'
	t := p.peek()
	if t.Type != tokString {
		return "", fmt.Errorf("config: expected IPv4 address after 'host' at line %d", t.Line)
	}
	host := t.Value
	if host != "0.0.0.0" && !isValidIPv4(host) {
		return "", fmt.Errorf("config: invalid IPv4 address %q at line %d", host, t.Line)
	}
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return "", err
	}
	return host, nil
}

func (p *Parser) parsePortDirective() (int, error) {
	p.advance() // 'port'
	t := p.peek()
	if t.Type != tokNumber {
		return 0, fmt.Errorf("config: expected port number at line %d", t.Line)
	}
	if !isValidPort(t.Value) {
		return 0, fmt.Errorf("config: invalid port number %q at line %d", t.Value, t.Line)
	}
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return 0, err
	}
	port, _ := atoiSafe(t.Value)
	return port, nil
}

func atoiSafe(s string) (int, error) {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n, nil
}

func (p *Parser) parseRootDirective() (string, error) {
	p.advance() // 'root'
	t := p.peek()
	if t.Type != tokString {
		return "", fmt.Errorf("config: expected path after 'root' at line %d", t.Line)
	}
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return "", err
	}
	return t.Value, nil
}

func (p *Parser) parseClientMaxBodySizeDirective() (int64, error) {
	p.advance() // 'client_max_body_size'
	t := p.peek()
	if t.Type != tokString && t.Type != tokNumber {
		return 0, fmt.Errorf("config: expected size literal after 'client_max_body_size' at line %d", t.Line)
	}
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return 0, err
	}
	size, err := parseSizeLiteral(t.Value)
	if err != nil {
		return 0, fmt.Errorf("config: %w at line %d", err, t.Line)
	}
	return size, nil
}

func (p *Parser) parseIndexDirective() ([]string, error) {
	p.advance() // 'index'
	var files []string
	// A bare filename with no dot (e.g. "index") lexes as tokKeyword if
	// it happens to collide with a directive name; inside an index list
	// it can only be a filename, never the start of a new directive.
	for p.peek().Type == tokString || p.peek().Type == tokKeyword {
		files = append(files, p.advance().Value)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("config: expected at least one filename after 'index' at line %d", p.peek().Line)
	}
	if err := p.expectSemicolon(); err != nil {
		return nil, err
	}
	return files, nil
}

func (p *Parser) parseErrorPageDirective() (ErrorPage, error) {
	p.advance() // 'error_page'
	var ep ErrorPage
	for p.peek().Type == tokNumber {
		code, _ := atoiSafe(p.peek().Value)
		ep.Codes = append(ep.Codes, code)
		p.advance()
	}
	if len(ep.Codes) == 0 {
		return ep, fmt.Errorf("config: expected at least one status code for 'error_page' at line %d", p.peek().Line)
	}
	t := p.peek()
	if t.Type != tokString {
		return ep, fmt.Errorf("config: expected URI after error codes at line %d", t.Line)
	}
	ep.URI = t.Value
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return ep, err
	}
	return ep, nil
}

func (p *Parser) parseAutoindexDirective() (bool, error) {
	p.advance() // 'autoindex'
	t := p.peek()
	if t.Type != tokString || (t.Value != "on" && t.Value != "off") {
		return false, fmt.Errorf("config: expected 'on' or 'off' after 'autoindex' at line %d", t.Line)
	}
	p.advance()
	if err := p.expectSemicolon(); err != nil {
		return false, err
	}
	return t.Value == "on", nil
}

func (p *Parser) parseLocationBlock() (LocationBlock, error) {
	p.advance() // 'location'
	t := p.peek()
	if t.Type != tokString {
		return LocationBlock{}, fmt.Errorf("config: expected location path at line %d", t.Line)
	}
	loc := LocationBlock{Path: normalizeLocationPath(t.Value), AllowedMethods: map[string]bool{}}
	p.advance()

	if err := p.expect(tokLeftBrace, "{", "'{' after location path"); err != nil {
		return loc, err
	}

	for !p.atEnd() && p.peek().Type != tokRightBrace {
		t := p.peek()
		switch {
		case t.Type == tokKeyword && t.Value == "allowed_methods":
			p.advance()
			for p.peek().Type == tokHTTPMethod {
				loc.AllowedMethods[p.advance().Value] = true
			}
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "root":
			p.advance()
			if p.peek().Type != tokString {
				return loc, fmt.Errorf("config: expected path after 'root' at line %d", p.peek().Line)
			}
			loc.Root = p.advance().Value
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "index":
			p.advance()
			// See parseIndexDirective: a keyword-shaped bare filename is
			// still a filename here, never a new directive.
			for p.peek().Type == tokString || p.peek().Type == tokKeyword {
				loc.Index = append(loc.Index, p.advance().Value)
			}
			if len(loc.Index) == 0 {
				return loc, fmt.Errorf("config: expected at least one filename after 'index' at line %d", p.peek().Line)
			}
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "autoindex":
			p.advance()
			v := p.peek()
			if v.Type != tokString || (v.Value != "on" && v.Value != "off") {
				return loc, fmt.Errorf("config: expected 'on' or 'off' after 'autoindex' at line %d", v.Line)
			}
			loc.Autoindex = v.Value == "on"
			p.advance()
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "return":
			p.advance()
			if p.peek().Type != tokString {
				return loc, fmt.Errorf("config: expected URL after 'return' at line %d", p.peek().Line)
			}
			loc.Return = p.advance().Value
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "cgi_extension":
			p.advance()
			loc.CGIExtensions = nil
			for p.peek().Type == tokString {
				loc.CGIExtensions = append(loc.CGIExtensions, p.advance().Value)
			}
			if len(loc.CGIExtensions) == 0 {
				return loc, fmt.Errorf("config: expected at least one extension after 'cgi_extension' at line %d", p.peek().Line)
			}
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "cgi_path":
			p.advance()
			loc.CGIInterpreters = nil
			for p.peek().Type == tokString {
				loc.CGIInterpreters = append(loc.CGIInterpreters, p.advance().Value)
			}
			if len(loc.CGIInterpreters) == 0 {
				return loc, fmt.Errorf("config: expected at least one interpreter after 'cgi_path' at line %d", p.peek().Line)
			}
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		case t.Type == tokKeyword && t.Value == "upload_store":
			p.advance()
			if p.peek().Type != tokString {
				return loc, fmt.Errorf("config: expected path after 'upload_store' at line %d", p.peek().Line)
			}
			loc.UploadStore = p.advance().Value
			if err := p.expectSemicolon(); err != nil {
				return loc, err
			}
		default:
			return loc, fmt.Errorf("config: unknown directive %q in location block at line %d", t.Value, t.Line)
		}
	}

	if err := p.expect(tokRightBrace, "}", "'}' to close location block"); err != nil {
		return loc, err
	}
	if len(loc.CGIExtensions) != len(loc.CGIInterpreters) {
		return loc, fmt.Errorf("config: location %q has %d cgi_extension entries but %d cgi_path entries", loc.Path, len(loc.CGIExtensions), len(loc.CGIInterpreters))
	}
	return loc, nil
}

func normalizeLocationPath(p string) string {
	if len(p) > 1 && p[len(p)-1] == '/' {
		return p[:len(p)-1]
	}
	return p
}

// Load reads, lexes, and parses a configuration file's raw bytes.
func Load(raw []byte) ([]ServerBlock, error) {
	lx := NewLexer(raw)
	tokens, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}
	p := NewParser(tokens)
	return p.Parse()
}
