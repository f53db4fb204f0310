// Package colorhttp serves the LED color route over a raw TCP connection.
//
// The TinyGo network stack has no net/http; request heads are parsed with
// lneto's httpraw: one request per connection, the head bounded by
// MaxHeaderBytes, no chunked bodies.
//
//	GET  /       greeting
//	POST /color  body "RRGGBB" sets the red, green and blue duties
package colorhttp

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/soypat/lneto/http/httpraw"

	"github.com/harveysanders/picosweep/sweeper/led"
)

const (
	// MaxHeaderBytes bounds the whole request head: request line, headers
	// and the blank line.
	MaxHeaderBytes = 512
	colorBodyLen   = 6
)

var (
	ErrMalformedRequest = errors.New("malformed request")
	ErrHeaderTooLarge   = errors.New("request header too large")
)

// Apply parses the first six bytes of body as RRGGBB and writes the color.
// Parse failures wrap led.ErrInvalidColor; anything else is an LED write
// failure.
func Apply(leds *led.RGB, body []byte) (led.Color, error) {
	if len(body) < colorBodyLen {
		return led.Color{}, led.ErrInvalidColor
	}
	c, err := led.ParseHex(string(body[:colorBodyLen]))
	if err != nil {
		return led.Color{}, err
	}
	return c, leds.SetColor(c)
}

// Server handles connections for the color route.
type Server struct {
	LEDs     *led.RGB
	Logger   *slog.Logger
	Greeting string
}

// Request is the parsed request head.
type Request struct {
	Method        string
	Path          string
	ContentLength int // -1 when absent
	// Body holds the body bytes that arrived with the head.
	Body []byte
}

// ServeConn reads one request from rw and writes one response. The returned
// error describes transport failures; HTTP level errors are answered on the
// connection and logged.
func (s *Server) ServeConn(rw io.ReadWriter) error {
	req, err := ReadRequest(rw)
	if err != nil {
		switch {
		case errors.Is(err, ErrHeaderTooLarge):
			return s.respond(rw, 431, err.Error())
		case errors.Is(err, ErrMalformedRequest):
			return s.respond(rw, 400, err.Error())
		}
		return err
	}
	s.logger().Info("http:request", slog.String("method", req.Method), slog.String("path", req.Path))

	switch req.Path {
	case "/":
		if req.Method != "GET" {
			return s.respond(rw, 405, "method not allowed")
		}
		greeting := s.Greeting
		if greeting == "" {
			greeting = "Hello from Pico W"
		}
		return s.respond(rw, 200, greeting)

	case "/color":
		if req.Method != "POST" {
			return s.respond(rw, 405, "method not allowed")
		}
		if req.ContentLength >= 0 && req.ContentLength < colorBodyLen {
			return s.respond(rw, 400, led.ErrInvalidColor.Error())
		}
		var body [colorBodyLen]byte
		if n := copy(body[:], req.Body); n < colorBodyLen {
			if _, err := io.ReadFull(rw, body[n:]); err != nil {
				if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
					return s.respond(rw, 400, led.ErrInvalidColor.Error())
				}
				return err
			}
		}
		c, err := Apply(s.LEDs, body[:])
		if err != nil {
			if errors.Is(err, led.ErrInvalidColor) {
				s.logger().Warn("http:bad color", slog.String("body", string(body[:])))
				return s.respond(rw, 400, err.Error())
			}
			s.logger().Error("http:set color failed", slog.String("err", err.Error()))
			return s.respond(rw, 500, "led write failed")
		}
		s.logger().Info("http:color set", slog.String("color", c.Hex()))
		return s.respond(rw, 200, "Color set")
	}
	return s.respond(rw, 404, "not found")
}

// ReadRequest reads at most MaxHeaderBytes of request head from r and parses
// it. Body bytes that arrived with the head are returned in Request.Body.
func ReadRequest(r io.Reader) (Request, error) {
	req := Request{ContentLength: -1}
	buf := make([]byte, 0, MaxHeaderBytes)
	var hdr httpraw.Header
	hdr.Reset(buf)

	noProgress := 0
	for !headComplete(buf[:hdr.BufferReceived()]) {
		free := MaxHeaderBytes - hdr.BufferReceived()
		if free <= 0 {
			return req, ErrHeaderTooLarge
		}
		n, err := hdr.ReadFromLimited(r, free)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if hdr.BufferReceived() == 0 {
					return req, io.EOF
				}
				return req, ErrMalformedRequest
			}
			return req, err
		}
		if n == 0 {
			if noProgress++; noProgress > 100 {
				return req, io.ErrNoProgress
			}
		}
	}

	if err := hdr.Parse(false); err != nil {
		return req, errors.Join(ErrMalformedRequest, err)
	}
	method := hdr.Method()
	uri := hdr.RequestURI()
	if len(method) == 0 || len(uri) == 0 || !bytes.HasPrefix(bytes.TrimSpace(hdr.Protocol()), []byte("HTTP/1.")) {
		return req, ErrMalformedRequest
	}
	if i := bytes.IndexByte(uri, '?'); i >= 0 {
		uri = uri[:i]
	}
	req.Method = string(method)
	req.Path = string(uri)

	err := hdr.ForEach(func(key, value []byte) error {
		if !bytes.EqualFold(key, []byte("Content-Length")) {
			return nil
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(value)))
		if err != nil || n < 0 {
			return ErrMalformedRequest
		}
		req.ContentLength = n
		return nil
	})
	if err != nil {
		return req, err
	}
	body, err := hdr.Body()
	if err != nil {
		return req, errors.Join(ErrMalformedRequest, err)
	}
	req.Body = body
	return req, nil
}

// headComplete reports whether b holds the blank line ending a request head.
func headComplete(b []byte) bool {
	return bytes.Contains(b, []byte("\r\n\r\n")) || bytes.Contains(b, []byte("\n\n"))
}

func (s *Server) respond(w io.Writer, code int, body string) error {
	buf := make([]byte, 0, 128+len(body))
	buf = append(buf, "HTTP/1.1 "...)
	buf = strconv.AppendInt(buf, int64(code), 10)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(code)...)
	buf = append(buf, "\r\nContent-Type: text/plain\r\nConnection: close\r\nContent-Length: "...)
	buf = strconv.AppendInt(buf, int64(len(body)), 10)
	buf = append(buf, "\r\n\r\n"...)
	buf = append(buf, body...)
	_, err := w.Write(buf)
	return err
}

// StatusText returns the reason phrase for the codes this server sends.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	}
	return "Unknown"
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return s.Logger
}
