package proxy

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestParseRequestLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    requestLine
		wantErr bool
	}{
		{name: "absolute", line: "GET http://example.com/ HTTP/1.1", want: requestLine{Method: "GET", Target: "http://example.com/", Version: "HTTP/1.1"}},
		{name: "relative", line: "POST /submit HTTP/1.0", want: requestLine{Method: "POST", Target: "/submit", Version: "HTTP/1.0"}},
		{name: "connect", line: "CONNECT example.com:443 HTTP/1.1", want: requestLine{Method: "CONNECT", Target: "example.com:443", Version: "HTTP/1.1"}},
		{name: "connect without version", line: "CONNECT example.com", want: requestLine{Method: "CONNECT", Target: "example.com"}},
		{name: "connect without target", line: "CONNECT ", wantErr: true},
		{name: "two tokens", line: "GET /", wantErr: true},
		{name: "one token", line: "GET", wantErr: true},
		{name: "empty", line: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRequestLine(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrBadRequest) {
					t.Fatalf("expected ErrBadRequest got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v got %+v", tt.want, got)
			}
		})
	}
}

func TestConnectTarget(t *testing.T) {
	tests := map[string]string{
		"example.com:9999": "example.com:9999",
		"example.com":      "example.com:443",
		"10.0.0.1":         "10.0.0.1:443",
		"[::1]:8443":       "[::1]:8443",
		"[::1]":            "[::1]:443",
	}
	for in, want := range tests {
		if got := connectTarget(in); got != want {
			t.Fatalf("connectTarget(%q): expected %q got %q", in, want, got)
		}
	}
}

func TestParseHeaderLine(t *testing.T) {
	h, err := parseHeaderLine("Host:   example.com  ")
	if err != nil {
		t.Fatal(err)
	}
	if h != (header{Name: "Host", Value: "example.com"}) {
		t.Fatalf("unexpected header %+v", h)
	}

	for _, line := range []string{"no colon here", ": empty name", "Bad Name : x"} {
		if _, err := parseHeaderLine(line); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("%q: expected ErrBadRequest got %v", line, err)
		}
	}
}

func TestRewriteHeaders(t *testing.T) {
	tests := []struct {
		name string
		in   []header
		host string
		want []header
	}{
		{
			name: "drops proxy headers and forces close",
			in: []header{
				{Name: "Host", Value: "example.com"},
				{Name: "Proxy-Connection", Value: "keep-alive"},
				{Name: "Proxy-Authorization", Value: "Basic Zm9vOmJhcg=="},
				{Name: "User-Agent", Value: "curl/8.0"},
				{Name: "Connection", Value: "keep-alive"},
			},
			host: "example.com",
			want: []header{
				{Name: "Host", Value: "example.com"},
				{Name: "User-Agent", Value: "curl/8.0"},
				{Name: "Connection", Value: "close"},
			},
		},
		{
			name: "adds missing host",
			in:   []header{{Name: "Accept", Value: "*/*"}},
			host: "example.com:8080",
			want: []header{
				{Name: "Accept", Value: "*/*"},
				{Name: "Host", Value: "example.com:8080"},
				{Name: "Connection", Value: "close"},
			},
		},
		{
			name: "collapses duplicate host in place",
			in: []header{
				{Name: "Accept", Value: "*/*"},
				{Name: "host", Value: "a.example"},
				{Name: "X-Trace", Value: "1"},
				{Name: "HOST", Value: "b.example"},
			},
			host: "origin.example",
			want: []header{
				{Name: "Accept", Value: "*/*"},
				{Name: "Host", Value: "origin.example"},
				{Name: "X-Trace", Value: "1"},
				{Name: "Connection", Value: "close"},
			},
		},
		{
			name: "empty",
			host: "example.com",
			want: []header{
				{Name: "Host", Value: "example.com"},
				{Name: "Connection", Value: "close"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rewriteHeaders(tt.in, tt.host)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %+v got %+v", tt.want, got)
			}
		})
	}
}

func TestBuildForwardRequest(t *testing.T) {
	tests := []struct {
		name     string
		line     requestLine
		headers  []header
		wantAddr string
		wantPath string
		wantHost string
		wantErr  error
	}{
		{
			name:     "absolute default port",
			line:     requestLine{Method: "GET", Target: "http://example.com", Version: "HTTP/1.1"},
			wantAddr: "example.com:80",
			wantPath: "/",
			wantHost: "example.com",
		},
		{
			name:     "absolute with port and query",
			line:     requestLine{Method: "GET", Target: "http://example.com:8080/a/b?x=1&y=2", Version: "HTTP/1.1"},
			wantAddr: "example.com:8080",
			wantPath: "/a/b?x=1&y=2",
			wantHost: "example.com:8080",
		},
		{
			name:     "root with query",
			line:     requestLine{Method: "GET", Target: "http://example.com?q=go", Version: "HTTP/1.1"},
			wantAddr: "example.com:80",
			wantPath: "/?q=go",
			wantHost: "example.com",
		},
		{
			name:     "relative with host header",
			line:     requestLine{Method: "GET", Target: "/index.html", Version: "HTTP/1.1"},
			headers:  []header{{Name: "Host", Value: "example.org:81"}},
			wantAddr: "example.org:81",
			wantPath: "/index.html",
			wantHost: "example.org:81",
		},
		{
			name:     "absolute keeps raw path",
			line:     requestLine{Method: "GET", Target: "http://h/a|b{c}?x=%zz", Version: "HTTP/1.1"},
			wantAddr: "h:80",
			wantPath: "/a|b{c}?x=%zz",
			wantHost: "h",
		},
		{
			name:     "relative keeps raw path",
			line:     requestLine{Method: "GET", Target: "/a|b{c}", Version: "HTTP/1.1"},
			headers:  []header{{Name: "Host", Value: "h"}},
			wantAddr: "h:80",
			wantPath: "/a|b{c}",
			wantHost: "h",
		},
		{
			name:     "relative with url in query",
			line:     requestLine{Method: "GET", Target: "/redirect?to=http://example.com/", Version: "HTTP/1.1"},
			headers:  []header{{Name: "Host", Value: "origin.example"}},
			wantAddr: "origin.example:80",
			wantPath: "/redirect?to=http://example.com/",
			wantHost: "origin.example",
		},
		{
			name:    "relative without host",
			line:    requestLine{Method: "GET", Target: "/index.html", Version: "HTTP/1.1"},
			headers: []header{{Name: "Accept", Value: "*/*"}},
			wantErr: ErrMissingHost,
		},
		{
			name:    "relative with empty host",
			line:    requestLine{Method: "GET", Target: "/", Version: "HTTP/1.1"},
			headers: []header{{Name: "Host", Value: ""}},
			wantErr: ErrMissingHost,
		},
		{
			name:    "absolute without host",
			line:    requestLine{Method: "GET", Target: "http:///path", Version: "HTTP/1.1"},
			wantErr: ErrBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildForwardRequest(tt.line, tt.headers)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got.Address != tt.wantAddr || got.Path != tt.wantPath || got.Host != tt.wantHost {
				t.Fatalf("unexpected request %+v", got)
			}
		})
	}
}

func TestIsAbsoluteTarget(t *testing.T) {
	tests := map[string]bool{
		"http://example.com/":              true,
		"HTTP://example.com":               true,
		"/index.html":                      false,
		"/redirect?to=http://example.com/": false,
		"/a/b://c":                         false,
		"?next=https://x/":                 false,
		"://nohost":                        false,
	}
	for target, want := range tests {
		if got := isAbsoluteTarget(target); got != want {
			t.Errorf("isAbsoluteTarget(%q): expected %v got %v", target, want, got)
		}
	}
}

func TestForwardRequestWriteTo(t *testing.T) {
	fr := forwardRequest{
		Method: "GET",
		Path:   "/x?y=1",
		Headers: []header{
			{Name: "Host", Value: "example.com"},
			{Name: "Connection", Value: "close"},
		},
	}

	var buf bytes.Buffer
	n, err := fr.WriteTo(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := "GET /x?y=1 HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"
	if buf.String() != want {
		t.Fatalf("expected %q got %q", want, buf.String())
	}
	if n != int64(len(want)) {
		t.Fatalf("expected %d bytes got %d", len(want), n)
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	if _, err := writeError(&buf, 400); err != nil {
		t.Fatal(err)
	}
	want := "HTTP/1.1 400 Bad Request\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n400 Bad Request\r\n"
	if buf.String() != want {
		t.Fatalf("expected %q got %q", want, buf.String())
	}
}
