package proxy

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrBadRequest is a request line or header the proxy cannot parse.
	ErrBadRequest = errors.New("bad request")

	// ErrMissingHost is a relative-form request without a Host header.
	ErrMissingHost = errors.New("missing host header")
)

const (
	defaultHTTPPort    = "80"
	defaultConnectPort = "443"
)

// header is one request header line, kept in arrival order.
type header struct {
	Name  string
	Value string
}

// requestLine is the first line of an HTTP proxy request.
type requestLine struct {
	Method  string
	Target  string
	Version string
}

func (r requestLine) isConnect() bool {
	return r.Method == "CONNECT"
}

// parseRequestLine splits line into its tokens. A CONNECT line needs at least
// a method and a target; everything else needs method, target and version.
func parseRequestLine(line string) (requestLine, error) {
	parts := strings.Split(line, " ")

	if strings.HasPrefix(line, "CONNECT ") {
		if len(parts) < 2 || parts[1] == "" {
			return requestLine{}, fmt.Errorf("%w: %q", ErrBadRequest, line)
		}
		rl := requestLine{Method: parts[0], Target: parts[1]}
		if len(parts) > 2 {
			rl.Version = parts[2]
		}
		return rl, nil
	}

	if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
		return requestLine{}, fmt.Errorf("%w: %q", ErrBadRequest, line)
	}
	return requestLine{Method: parts[0], Target: parts[1], Version: parts[2]}, nil
}

// connectTarget returns the host:port a CONNECT target names, defaulting the
// port to 443.
func connectTarget(target string) string {
	if _, _, err := net.SplitHostPort(target); err == nil {
		return target
	}
	return net.JoinHostPort(strings.Trim(target, "[]"), defaultConnectPort)
}

// parseHeaderLine splits "Name: value" and trims the value.
func parseHeaderLine(line string) (header, error) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || name == "" || strings.TrimSpace(name) != name {
		return header{}, fmt.Errorf("%w: header %q", ErrBadRequest, line)
	}
	return header{Name: name, Value: strings.TrimSpace(value)}, nil
}

// headerValue returns the first value of name, matched case-insensitively.
func headerValue(headers []header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// isAbsoluteTarget reports whether target is in absolute form
// ("http://host/path"). Only a scheme at the very start counts, so a
// relative target carrying a URL in its query stays relative.
func isAbsoluteTarget(target string) bool {
	scheme, _, ok := strings.Cut(target, "://")
	return ok && scheme != "" && !strings.ContainsAny(scheme, "/?#")
}

// splitAbsoluteTarget splits an absolute-form target into its authority and
// the raw path[?query] that follows it.
func splitAbsoluteTarget(target string) (authority, path string) {
	_, rest, _ := strings.Cut(target, "://")
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		return rest[:i], rest[i:]
	}
	return rest, ""
}

// forwardRequest is the request the proxy sends to the origin server.
type forwardRequest struct {
	Method  string
	Address string // host:port to dial
	Host    string // Host header value
	Path    string // path[?query]
	Headers []header
}

// buildForwardRequest resolves the origin for rl and rewrites headers.
//
// Absolute-form targets carry their own authority. Relative-form targets
// take it from the Host header, without which the request is rejected with
// ErrMissingHost.
func buildForwardRequest(rl requestLine, headers []header) (forwardRequest, error) {
	authority, path := "", rl.Target
	if isAbsoluteTarget(rl.Target) {
		authority, path = splitAbsoluteTarget(rl.Target)
	} else {
		host, ok := headerValue(headers, "Host")
		if !ok || host == "" {
			return forwardRequest{}, ErrMissingHost
		}
		authority = host
	}

	u, err := url.Parse("http://" + authority)
	if err != nil {
		return forwardRequest{}, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	if u.Hostname() == "" {
		return forwardRequest{}, fmt.Errorf("%w: no host in %q", ErrBadRequest, rl.Target)
	}

	port := u.Port()
	if port == "" {
		port = defaultHTTPPort
	}

	// The path and query go upstream exactly as the client sent them.
	switch {
	case path == "":
		path = "/"
	case path[0] == '?':
		path = "/" + path
	}

	return forwardRequest{
		Method:  rl.Method,
		Address: net.JoinHostPort(u.Hostname(), port),
		Host:    u.Host,
		Path:    path,
		Headers: rewriteHeaders(headers, u.Host),
	}, nil
}

// rewriteHeaders prepares client headers for the origin server: Proxy-*
// headers are dropped, exactly one Host header carrying host is kept at the
// position of the first one, and Connection is forced to close.
func rewriteHeaders(headers []header, host string) []header {
	out := make([]header, 0, len(headers)+2)
	hostSet := false

	for _, h := range headers {
		switch {
		case strings.HasPrefix(strings.ToLower(h.Name), "proxy-"):
			continue
		case strings.EqualFold(h.Name, "Host"):
			if hostSet {
				continue
			}
			out = append(out, header{Name: "Host", Value: host})
			hostSet = true
		case strings.EqualFold(h.Name, "Connection"):
			continue
		default:
			out = append(out, h)
		}
	}

	if !hostSet {
		out = append(out, header{Name: "Host", Value: host})
	}
	return append(out, header{Name: "Connection", Value: "close"})
}

// WriteTo writes the request line and headers, terminated by a blank line.
func (r forwardRequest) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.WriteString(r.Method)
	sb.WriteByte(' ')
	sb.WriteString(r.Path)
	sb.WriteString(" HTTP/1.1\r\n")
	for _, h := range r.Headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
