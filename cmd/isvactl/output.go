package main

import (
	"encoding/json"
	"io"

	"github.com/cuemby/isvactl/pkg/isvaerr"
)

// failure is printed instead of a result when a command fails
type failure struct {
	Failed bool   `json:"failed"`
	Msg    string `json:"msg"`
	Kind   string `json:"kind,omitempty"`
	Code   int    `json:"code,omitempty"`
}

func newFailure(err error) failure {
	return failure{
		Failed: true,
		Msg:    err.Error(),
		Kind:   string(isvaerr.KindOf(err)),
		Code:   isvaerr.CodeOf(err),
	}
}

func writeFailure(w io.Writer, err error) error {
	return writeJSON(w, newFailure(err))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
