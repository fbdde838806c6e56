// Package fake provides an in-memory appliance implementing
// client.ApplianceClient for tests.
package fake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/cuemby/isvactl/pkg/client"
)

var _ client.ApplianceClient = &Appliance{}

// Call is one request received by the fake appliance
type Call struct {
	Method  string
	Path    string
	Payload any
	Headers map[string]string
	Fields  map[string]string
	File    []byte
}

// Handler answers a call. Returning an error simulates a transport failure.
type Handler func(call Call) (*client.Response, error)

// Appliance is a scripted appliance. Routes are keyed by method and path,
// query string included. Unknown routes answer 404.
type Appliance struct {
	Mu sync.Mutex

	routes map[string]Handler
	files  map[string][]byte
	Calls  []Call
}

// New returns an empty fake appliance
func New() *Appliance {
	return &Appliance{
		routes: make(map[string]Handler),
		files:  make(map[string][]byte),
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// Handle registers a handler for method and path
func (a *Appliance) Handle(method, path string, h Handler) *Appliance {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.routes[routeKey(method, path)] = h
	return a
}

// Respond registers a fixed response. contents is passed through a JSON
// round trip so numbers arrive as json.Number like the real client.
func (a *Appliance) Respond(method, path string, code int, contents any) *Appliance {
	return a.Handle(method, path, func(Call) (*client.Response, error) {
		return &client.Response{Code: code, Contents: normalize(contents)}, nil
	})
}

// Fail registers a transport failure
func (a *Appliance) Fail(method, path string, err error) *Appliance {
	return a.Handle(method, path, func(Call) (*client.Response, error) {
		return nil, err
	})
}

// Resource registers a stateful object at path. GET returns the current
// object; each write method merges its payload into the object and answers
// with the given code and an empty body.
func (a *Appliance) Resource(path string, initial map[string]any, writes map[string]int) *Appliance {
	var mu sync.Mutex
	state := normalize(initial)
	if state == nil {
		state = map[string]any{}
	}

	a.Handle(http.MethodGet, path, func(Call) (*client.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		return &client.Response{Code: http.StatusOK, Contents: normalize(state)}, nil
	})
	for method, code := range writes {
		code := code
		a.Handle(method, path, func(call Call) (*client.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			cur, _ := state.(map[string]any)
			if payload, ok := call.Payload.(map[string]any); ok {
				for k, v := range payload {
					cur[k] = v
				}
			}
			return &client.Response{Code: code, Contents: map[string]any{}}, nil
		})
	}
	return a
}

// File registers downloadable content at path
func (a *Appliance) File(path string, content []byte) *Appliance {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	a.files[path] = content
	return a
}

// Send implements client.ApplianceClient
func (a *Appliance) Send(_ context.Context, path, method string, payload any, headers map[string]string) (*client.Response, error) {
	if method == "" {
		method = http.MethodGet
	}
	return a.dispatch(Call{
		Method:  method,
		Path:    path,
		Payload: normalize(payload),
		Headers: headers,
	})
}

// DownloadFile implements client.ApplianceClient
func (a *Appliance) DownloadFile(_ context.Context, path string, dst io.Writer, headers map[string]string) (bool, error) {
	a.Mu.Lock()
	a.Calls = append(a.Calls, Call{Method: http.MethodGet, Path: path, Headers: headers})
	content, ok := a.files[path]
	a.Mu.Unlock()

	if !ok {
		return false, nil
	}
	if _, err := dst.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// Upload implements client.ApplianceClient
func (a *Appliance) Upload(_ context.Context, path string, fields map[string]string, file client.FilePart) (*client.Response, error) {
	var buf bytes.Buffer
	if file.Content != nil {
		if _, err := io.Copy(&buf, file.Content); err != nil {
			return nil, err
		}
	}
	return a.dispatch(Call{
		Method: http.MethodPost,
		Path:   path,
		Fields: fields,
		File:   buf.Bytes(),
	})
}

func (a *Appliance) dispatch(call Call) (*client.Response, error) {
	a.Mu.Lock()
	a.Calls = append(a.Calls, call)
	h, ok := a.routes[routeKey(call.Method, call.Path)]
	a.Mu.Unlock()

	if !ok {
		return &client.Response{
			Code:     http.StatusNotFound,
			Contents: map[string]any{"message": fmt.Sprintf("no route for %s %s", call.Method, call.Path)},
		}, nil
	}
	return h(call)
}

// CallsTo returns the recorded calls matching method and path
func (a *Appliance) CallsTo(method, path string) []Call {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	var out []Call
	for _, c := range a.Calls {
		if c.Method == method && c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns every recorded call that is not a GET
func (a *Appliance) Writes() []Call {
	a.Mu.Lock()
	defer a.Mu.Unlock()
	var out []Call
	for _, c := range a.Calls {
		if c.Method != http.MethodGet {
			out = append(out, c)
		}
	}
	return out
}

// normalize gives v the shape the real client decodes into
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("fake: cannot encode %T: %v", v, err))
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		panic(fmt.Sprintf("fake: cannot decode %s: %v", data, err))
	}
	return out
}
