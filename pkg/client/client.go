package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/log"
	"github.com/cuemby/isvactl/pkg/metrics"
)

// BaseHeaders are sent with every JSON request unless the caller overrides them
var BaseHeaders = map[string]string{
	"Accept":       "application/json",
	"Content-Type": "application/json",
}

// Response is the status code and decoded body of an appliance call.
// Contents is a map, a slice or a string for non-JSON error bodies.
type Response struct {
	Code     int
	Contents any
}

// OK reports whether the status code is 2xx
func (r *Response) OK() bool {
	return r.Code >= 200 && r.Code < 300
}

// FilePart is the file carried by a multipart upload
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// ApplianceClient is the transport the convergence engine talks to
type ApplianceClient interface {
	// Send issues a JSON request. A nil payload sends no body; nil headers
	// means BaseHeaders. Non-2xx responses are returned, not errors.
	Send(ctx context.Context, path, method string, payload any, headers map[string]string) (*Response, error)
	// DownloadFile streams a GET response body into dst. It returns false
	// when the appliance reports the file as missing.
	DownloadFile(ctx context.Context, path string, dst io.Writer, headers map[string]string) (bool, error)
	// Upload posts a multipart form with one file part
	Upload(ctx context.Context, path string, fields map[string]string, file FilePart) (*Response, error)
}

// Config holds the connection settings of one appliance
type Config struct {
	Host          string
	Port          int
	User          string
	Password      string
	ValidateCerts bool
	// CACert is an optional PEM bundle used to verify the appliance
	CACert  string
	Timeout time.Duration
}

// Client is an HTTPS JSON client for the appliance management interface.
// A Client holds one session and is not meant to be shared across
// invocations.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	user     string
	password string

	// authenticated is set once the appliance accepted the session
	authenticated bool
	logger        zerolog.Logger
}

// NewClient creates a client for the appliance described by cfg
func NewClient(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, isvaerr.Validation("appliance host is required")
	}
	port := cfg.Port
	if port == 0 {
		port = 443
	}
	base := cfg.Host
	if !strings.Contains(base, "://") {
		base = "https://" + base + ":" + strconv.Itoa(port)
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, isvaerr.Validation("invalid appliance address %q: %v", cfg.Host, err)
	}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	transport := cleanhttp.DefaultPooledTransport()
	transport.TLSClientConfig = tlsConfig

	c := &Client{
		baseURL:  u,
		user:     cfg.User,
		password: cfg.Password,
		logger:   log.WithComponent("client"),
	}
	c.http = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	c.resetSession()
	return c, nil
}

// newTLSConfig builds the TLS settings from the provider configuration
func newTLSConfig(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !cfg.ValidateCerts,
	}
	if cfg.CACert == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(cfg.CACert)
	if err != nil {
		return nil, isvaerr.Validation("failed to read CA certificate: %v", err)
	}
	certPool := x509.NewCertPool()
	if !certPool.AppendCertsFromPEM(pem) {
		return nil, isvaerr.Validation("no certificates found in %s", cfg.CACert)
	}
	tlsConfig.RootCAs = certPool
	return tlsConfig, nil
}

// resetSession drops cookies and the authenticated flag
func (c *Client) resetSession() {
	jar, _ := cookiejar.New(nil)
	c.http.Jar = jar
	c.authenticated = false
}

// Send implements ApplianceClient
func (c *Client) Send(ctx context.Context, path, method string, payload any, headers map[string]string) (*Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, isvaerr.Validation("failed to encode request body: %v", err)
		}
	}
	if headers == nil {
		headers = BaseHeaders
	}

	resp, err := c.do(ctx, method, path, headers, func() io.Reader {
		if body == nil {
			return nil
		}
		return bytes.NewReader(body)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// DownloadFile implements ApplianceClient
func (c *Client) DownloadFile(ctx context.Context, path string, dst io.Writer, headers map[string]string) (bool, error) {
	if headers == nil {
		headers = BaseHeaders
	}
	resp, err := c.do(ctx, http.MethodGet, path, headers, func() io.Reader { return nil })
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		r, err := decodeResponse(resp)
		if err != nil {
			return false, err
		}
		return false, isvaerr.AppStatus(r.Code, r.Contents)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		return false, isvaerr.Transport(resp.StatusCode, nil, fmt.Errorf("failed to read download: %w", err))
	}
	return true, nil
}

// Upload implements ApplianceClient. The file is buffered so the request can
// be replayed after a session reset.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, file FilePart) (*Response, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, isvaerr.Validation("failed to encode form field %s: %v", k, err)
		}
	}
	if file.Content != nil {
		field := file.Field
		if field == "" {
			field = "file"
		}
		part, err := w.CreateFormFile(field, file.Filename)
		if err != nil {
			return nil, isvaerr.Validation("failed to encode file part: %v", err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, isvaerr.Validation("failed to read %s: %v", file.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, isvaerr.Validation("failed to encode multipart body: %v", err)
	}

	headers := map[string]string{
		"Accept":       "application/json",
		"Content-Type": w.FormDataContentType(),
	}
	body := buf.Bytes()
	resp, err := c.do(ctx, http.MethodPost, path, headers, func() io.Reader {
		return bytes.NewReader(body)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

// do sends one request. A 401 on a session the appliance had already
// accepted resets the session and retries exactly once.
func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body func() io.Reader) (*http.Response, error) {
	resp, err := c.roundTrip(ctx, method, path, headers, body())
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && c.authenticated {
		resp.Body.Close()
		c.logger.Debug().Str("path", path).Msg("session expired, re-authenticating")
		c.resetSession()
		resp, err = c.roundTrip(ctx, method, path, headers, body())
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		defer resp.Body.Close()
		r, _ := decodeResponse(resp)
		var contents any
		if r != nil {
			contents = r.Contents
		}
		return nil, isvaerr.Transport(http.StatusUnauthorized, contents, fmt.Errorf("authentication failed for user %s", c.user))
	}

	c.authenticated = true
	return resp, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, headers map[string]string, body io.Reader) (*http.Response, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, isvaerr.Transport(0, nil, fmt.Errorf("failed to create request: %w", err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBasicAuth(c.user, c.password)

	timer := metrics.NewTimer()
	resp, err := c.http.Do(req)
	timer.ObserveDurationVec(metrics.ApplianceRequestDuration, method)
	if err != nil {
		metrics.ApplianceRequestsTotal.WithLabelValues(method, "error").Inc()
		return nil, isvaerr.Transport(0, nil, fmt.Errorf("%s %s: %w", method, path, err))
	}
	metrics.ApplianceRequestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("code", resp.StatusCode).
		Dur("duration", timer.Duration()).
		Msg("appliance request")
	return resp, nil
}

// resolve joins an API path, query string included, onto the base URL
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", isvaerr.Validation("invalid request path %q: %v", path, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// decodeResponse reads a JSON body. An empty body decodes to an empty
// object. A 2xx body that is not JSON is a mapping error; other codes keep
// the raw text so the caller can report it.
func decodeResponse(resp *http.Response) (*Response, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, isvaerr.Transport(resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err))
	}
	r := &Response{Code: resp.StatusCode}
	if len(bytes.TrimSpace(raw)) == 0 {
		r.Contents = map[string]any{}
		return r, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var contents any
	if err := dec.Decode(&contents); err != nil {
		if r.OK() {
			return nil, isvaerr.Mapping("invalid JSON response: %s", string(raw))
		}
		r.Contents = string(raw)
		return r, nil
	}
	r.Contents = contents
	return r, nil
}
