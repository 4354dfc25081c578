package proxy

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/die-net/tetherproxy/internal/dialer"
	"github.com/die-net/tetherproxy/internal/logsink"
)

const connectEstablished = "HTTP/1.1 200 Connection Established\r\n\r\n"

// maxHeaderLines bounds how many header lines one request may carry.
const maxHeaderLines = 256

// httpHandler serves one HTTP proxy connection: CONNECT tunnels and plain
// request forwarding.
type httpHandler struct {
	dialer dialer.Dialer
	log    logsink.Logger
}

// newHTTPHandler returns a handler dialing targets through d.
func newHTTPHandler(d dialer.Dialer, sink logsink.Sink) *httpHandler {
	return &httpHandler{dialer: d, log: logsink.New(sink)}
}

// serveConn handles a single request on client. It does not close client.
func (h *httpHandler) serveConn(ctx context.Context, c *connection) error {
	client := c.client
	br := bufio.NewReader(client)
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read request line: %w", err)
	}
	h.log.Infof("HTTP request from %s: %s", c.clientIP(), line)

	rl, err := parseRequestLine(line)
	if err != nil {
		h.log.Errorf("invalid HTTP request from %s: %q", c.clientIP(), line)
		h.writeError(client, http.StatusBadRequest)
		return nil
	}

	headers, err := readHeaders(tp)
	if err != nil {
		if errors.Is(err, ErrBadRequest) {
			h.log.Errorf("invalid HTTP headers from %s: %v", c.clientIP(), err)
			// Every CONNECT failure before the tunnel is up answers 500.
			code := http.StatusBadRequest
			if rl.isConnect() {
				code = http.StatusInternalServerError
			}
			h.writeError(client, code)
			return nil
		}
		return fmt.Errorf("read headers: %w", err)
	}

	if rl.isConnect() {
		return h.serveConnect(ctx, c, br, rl)
	}
	return h.serveForward(ctx, c, br, rl, headers)
}

func (h *httpHandler) serveConnect(ctx context.Context, c *connection, br *bufio.Reader, rl requestLine) error {
	client := c.client
	target := connectTarget(rl.Target)
	c.setTarget(target)
	h.log.Infof("connecting to HTTPS target %s for %s", target, c.clientIP())

	up, err := h.dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		h.log.Errorf("CONNECT %s for %s failed: %v", target, c.clientIP(), err)
		h.writeError(client, http.StatusInternalServerError)
		return nil
	}
	defer up.Close()

	if _, err := io.WriteString(client, connectEstablished); err != nil {
		return fmt.Errorf("write connect response: %w", err)
	}
	h.log.Infof("HTTPS tunnel established between %s and %s", c.clientIP(), target)

	if err := Relay(ctx, bufferedConnFor(client, br), up); err != nil {
		h.log.Errorf("tunnel %s <-> %s: %v", c.clientIP(), target, err)
	}
	h.log.Infof("HTTPS tunnel closed for %s", c.clientIP())
	return nil
}

func (h *httpHandler) serveForward(ctx context.Context, c *connection, br *bufio.Reader, rl requestLine, headers []header) error {
	client := c.client

	fr, err := buildForwardRequest(rl, headers)
	if err != nil {
		if errors.Is(err, ErrMissingHost) {
			h.log.Errorf("no Host header found from %s", c.clientIP())
		} else {
			h.log.Errorf("invalid HTTP request from %s: %v", c.clientIP(), err)
		}
		h.writeError(client, http.StatusBadRequest)
		return nil
	}

	body, err := requestBody(br, headers)
	if err != nil {
		h.log.Errorf("invalid HTTP body from %s: %v", c.clientIP(), err)
		h.writeError(client, http.StatusBadRequest)
		return nil
	}

	c.setTarget(fr.Address)
	h.log.Infof("forwarding %s %s%s from %s", fr.Method, fr.Host, fr.Path, c.clientIP())

	up, err := h.dialer.DialContext(ctx, "tcp", fr.Address)
	if err != nil {
		h.log.Errorf("error forwarding HTTP request to %s: %v", fr.Address, err)
		h.writeError(client, http.StatusInternalServerError)
		return nil
	}
	defer up.Close()
	stop := context.AfterFunc(ctx, func() { _ = up.Close() })
	defer stop()

	if err := writeForwardRequest(up, fr, body); err != nil {
		h.log.Errorf("error forwarding HTTP request to %s: %v", fr.Address, err)
		h.writeError(client, http.StatusInternalServerError)
		return nil
	}
	h.log.Infof("request sent to %s from %s", fr.Address, c.clientIP())

	cw := &countingWriter{w: client}
	err = copyChunks(cw, up)
	if err != nil && !isTeardown(err) {
		h.log.Errorf("error relaying response from %s: %v", fr.Address, err)
		if cw.n == 0 {
			h.writeError(client, http.StatusInternalServerError)
		}
		return nil
	}
	h.log.Infof("response sent back to %s", c.clientIP())
	return nil
}

func writeForwardRequest(w io.Writer, fr forwardRequest, body io.Reader) error {
	bw := bufio.NewWriterSize(w, relayBufferSize)
	if _, err := fr.WriteTo(bw); err != nil {
		return err
	}

	switch b := body.(type) {
	case nil:
	case chunkedBody:
		cw := httputil.NewChunkedWriter(bw)
		if _, err := io.Copy(cw, b.r); err != nil {
			return fmt.Errorf("copy chunked body: %w", err)
		}
		if err := cw.Close(); err != nil {
			return err
		}
		if _, err := io.WriteString(bw, "\r\n"); err != nil {
			return err
		}
	default:
		if _, err := io.Copy(bw, b); err != nil {
			return fmt.Errorf("copy body: %w", err)
		}
	}
	return bw.Flush()
}

type chunkedBody struct {
	r io.Reader
}

func (b chunkedBody) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// requestBody returns a reader for the request body declared by headers, or
// nil when there is none.
func requestBody(br *bufio.Reader, headers []header) (io.Reader, error) {
	if te, ok := headerValue(headers, "Transfer-Encoding"); ok && strings.Contains(strings.ToLower(te), "chunked") {
		return chunkedBody{r: httputil.NewChunkedReader(br)}, nil
	}

	cl, ok := headerValue(headers, "Content-Length")
	if !ok {
		return nil, nil
	}
	n, err := strconv.ParseInt(cl, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: content-length %q", ErrBadRequest, cl)
	}
	if n == 0 {
		return nil, nil
	}
	return io.LimitReader(br, n), nil
}

// readHeaders reads header lines up to the blank line that ends them.
func readHeaders(tp *textproto.Reader) ([]header, error) {
	var headers []header
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		if len(headers) >= maxHeaderLines {
			return nil, fmt.Errorf("%w: too many headers", ErrBadRequest)
		}
		hdr, err := parseHeaderLine(line)
		if err != nil {
			return nil, err
		}
		headers = append(headers, hdr)
	}
}

// writeError writes a plain-text error response, best-effort.
func (h *httpHandler) writeError(w io.Writer, code int) {
	if _, err := writeError(w, code); err != nil {
		h.log.Debugf("write %d response: %v", code, err)
		return
	}
	h.log.Warnf("sent HTTP error %d: %s", code, http.StatusText(code))
}

func writeError(w io.Writer, code int) (int, error) {
	status := fmt.Sprintf("%d %s", code, http.StatusText(code))
	return fmt.Fprintf(w, "HTTP/1.1 %s\r\nContent-Type: text/plain\r\nConnection: close\r\n\r\n%s\r\n", status, status)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
