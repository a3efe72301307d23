package config

import "testing"

func TestLoadMinimalServer(t *testing.T) {
	src := `
server {
    host 127.0.0.1;
    port 8080;
    root www;
    index index.html;
    location / {
        allowed_methods GET;
    }
}
`
	servers, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(servers))
	}
	sb := servers[0]
	if sb.Host != "127.0.0.1" || sb.Port != 8080 || sb.Root != "www" {
		t.Errorf("unexpected server fields: %+v", sb)
	}
	if len(sb.Locations) != 1 || sb.Locations[0].Path != "/" {
		t.Fatalf("unexpected locations: %+v", sb.Locations)
	}
	if !sb.Locations[0].MethodAllowed("GET") || sb.Locations[0].MethodAllowed("DELETE") {
		t.Errorf("unexpected allowed methods: %+v", sb.Locations[0].AllowedMethods)
	}
}

func TestClientMaxBodySizeUnits(t *testing.T) {
	cases := []struct {
		lit  string
		want int64
	}{
		{"100", 100},
		{"4K", 4 * 1024},
		{"2M", 2 * 1024 * 1024},
		{"1G", 1024 * 1024 * 1024},
	}
	for _, c := range cases {
		got, err := parseSizeLiteral(c.lit)
		if err != nil {
			t.Fatalf("parseSizeLiteral(%q): %v", c.lit, err)
		}
		if got != c.want {
			t.Errorf("parseSizeLiteral(%q) = %d, want %d", c.lit, got, c.want)
		}
	}
}

func TestDuplicateClientMaxBodySizeRejected(t *testing.T) {
	src := `
server {
    port 8080;
    client_max_body_size 1M;
    client_max_body_size 2M;
}
`
	if _, err := Load([]byte(src)); err == nil {
		t.Fatal("expected error for duplicate client_max_body_size")
	}
}

func TestCgiExtensionArityMismatchRejected(t *testing.T) {
	src := `
server {
    port 8080;
    location /cgi {
        cgi_extension .py .pl;
        cgi_path /usr/bin/python3;
    }
}
`
	if _, err := Load([]byte(src)); err == nil {
		t.Fatal("expected arity-mismatch error")
	}
}

func TestInvalidIPv4Rejected(t *testing.T) {
	src := `
server {
    host 999.1.1.1;
    port 80;
}
`
	if _, err := Load([]byte(src)); err == nil {
		t.Fatal("expected invalid IPv4 error")
	}
}

func TestLeadingZeroOctetRejected(t *testing.T) {
	if isValidIPv4("127.0.0.01") {
		t.Error("leading-zero octet should be rejected")
	}
	if !isValidIPv4("0.0.0.0") {
		t.Error("0.0.0.0 should be accepted")
	}
}

func TestMatchLocationLongestPrefix(t *testing.T) {
	sb := ServerBlock{
		Locations: []LocationBlock{
			{Path: "/"},
			{Path: "/api"},
			{Path: "/api/v2"},
		},
	}
	loc := sb.MatchLocation("/api/v2/widgets")
	if loc == nil || loc.Path != "/api/v2" {
		t.Fatalf("expected /api/v2 to win, got %+v", loc)
	}
	loc = sb.MatchLocation("/apifoo")
	if loc == nil || loc.Path != "/" {
		t.Fatalf("expected / to win for non-slash-separated match, got %+v", loc)
	}
}

func TestErrorPageDirective(t *testing.T) {
	src := `
server {
    port 8080;
    error_page 404 500 /errors/generic.html;
}
`
	servers, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	uri, ok := servers[0].ErrorPageFor(404)
	if !ok || uri != "/errors/generic.html" {
		t.Errorf("ErrorPageFor(404) = %q, %v", uri, ok)
	}
	if _, ok := servers[0].ErrorPageFor(403); ok {
		t.Errorf("ErrorPageFor(403) should not match")
	}
}

func TestIndexDirectiveAcceptsKeywordShapedFilename(t *testing.T) {
	src := `
server {
    port 8080;
    index index;
    location / {
        index root;
    }
}
`
	servers, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(servers[0].Index) != 1 || servers[0].Index[0] != "index" {
		t.Errorf("server index = %+v, want [\"index\"]", servers[0].Index)
	}
	if len(servers[0].Locations[0].Index) != 1 || servers[0].Locations[0].Index[0] != "root" {
		t.Errorf("location index = %+v, want [\"root\"]", servers[0].Locations[0].Index)
	}
}
