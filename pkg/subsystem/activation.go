package subsystem

import (
	"fmt"
	"net/http"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
)

// Offerings that can be activated with a license code
var Offerings = []string{"wga", "mga", "federation"}

var ActivationFields = mapper.FieldMap{
	{Canonical: "id", Wire: "id", Key: true},
	{Canonical: "description", Wire: "description", ReadOnly: true},
	{Canonical: "enabled", Wire: "enabled", ReadOnly: true},
	{Canonical: "expiry", Wire: "expiry", ReadOnly: true},
	{Canonical: "code", Wire: "code", WriteOnly: true},
}

func capabilitiesPath(offering string) string {
	if offering == "" {
		return "/isam/capabilities/v1"
	}
	return fmt.Sprintf("/isam/capabilities/%s/v1", offering)
}

// Activations lists every activated offering
func Activations() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "activations",
		Description: "Activated offerings (read only)",
		Fields:      ActivationFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: capabilitiesPath("")},
		List:        true,
	}
}

// Activation is the license of one offering. replaced activates it with a
// code when it is not active yet; deleted deactivates it.
func Activation(offering string) (*reconciler.Definition, error) {
	known := false
	for _, o := range Offerings {
		known = known || o == offering
	}
	if !known {
		return nil, isvaerr.Validation("invalid offering %q, expected one of %v", offering, Offerings)
	}

	path := capabilitiesPath(offering)
	return &reconciler.Definition{
		Name:        "activation",
		Description: "Offering activation",
		Fields:      ActivationFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: path},
		Optional:    true,
		Create:      &reconciler.Endpoint{Method: http.MethodPost, Path: capabilitiesPath("")},
		Remove:      &reconciler.Endpoint{Method: http.MethodDelete, Path: path, Expect: http.StatusNoContent},
	}, nil
}
