package apihttp

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

const serverName = "videostream/1.0"

// response is what a route produces; the session frames and writes it.
type response struct {
	status int
	header http.Header
	body   io.Reader
	length int64
	closer io.Closer
}

func newResponse(status int) *response {
	h := make(http.Header)
	h.Set("Server", serverName)
	return &response{status: status, header: h}
}

func textResponse(status int, message string) *response {
	resp := newResponse(status)
	resp.header.Set("Content-Type", "text/plain")
	resp.body = bytes.NewReader([]byte(message))
	resp.length = int64(len(message))
	return resp
}

func jsonResponse(status int, payload interface{}) *response {
	data, err := json.Marshal(payload)
	if err != nil {
		return textResponse(http.StatusInternalServerError, "Internal Server Error")
	}
	resp := newResponse(status)
	resp.header.Set("Content-Type", "application/json")
	resp.body = bytes.NewReader(data)
	resp.length = int64(len(data))
	return resp
}

func (r *response) close() {
	if r.closer != nil {
		_ = r.closer.Close()
		r.closer = nil
	}
}

// toHTTP builds the wire response for req. keepAlive decides the
// Connection header: HTTP/1.1 gets "close" when false, HTTP/1.0 gets
// "keep-alive" when true.
func (r *response) toHTTP(req *http.Request, keepAlive bool) *http.Response {
	major, minor := 1, 1
	if req != nil && req.ProtoMajor == 1 {
		minor = req.ProtoMinor
	}
	if keepAlive && minor == 0 {
		r.header.Set("Connection", "keep-alive")
	}

	var body io.ReadCloser = http.NoBody
	if r.body != nil && r.length > 0 {
		body = io.NopCloser(r.body)
	}
	return &http.Response{
		Status:        strconv.Itoa(r.status) + " " + http.StatusText(r.status),
		StatusCode:    r.status,
		Proto:         "HTTP/" + strconv.Itoa(major) + "." + strconv.Itoa(minor),
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        r.header,
		Body:          body,
		ContentLength: r.length,
		Close:         !keepAlive,
		Request:       req,
	}
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
