package subsystem

import (
	"errors"
	"net/http"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/types"
)

var ServiceAgreementsFields = mapper.FieldMap{
	{Canonical: "accepted", Wire: "accepted", Bool: true},
}

// ServiceAgreements is the license agreement acceptance of first-run setup
func ServiceAgreements() *reconciler.Definition {
	const path = "/setup_service_agreements/accepted"
	return &reconciler.Definition{
		Name:        "service_agreements",
		Description: "Service agreement acceptance",
		Fields:      ServiceAgreementsFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: path},
		Update:      &reconciler.Endpoint{Method: http.MethodPut, Path: path},
		Check: func(want types.Record) error {
			if v, _ := want.Get("accepted"); v == false {
				return errors.New("parameter accepted can only be set to true")
			}
			return nil
		},
	}
}

var SetupCompleteFields = mapper.FieldMap{
	{Canonical: "configured", Wire: "configured", Bool: true},
}

// SetupComplete marks the first-run setup as done. The completing PUT takes
// no body, and a completed setup cannot be undone.
func SetupComplete() *reconciler.Definition {
	const path = "/setup_complete"
	return &reconciler.Definition{
		Name:        "setup_complete",
		Description: "First-run setup completion",
		Fields:      SetupCompleteFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: path},
		Update:      &reconciler.Endpoint{Method: http.MethodPut, Path: path, NoPayload: true},
		Check: func(want types.Record) error {
			if v, _ := want.Get("configured"); v == false {
				return errors.New("parameter configured can only be set to true")
			}
			return nil
		},
	}
}
