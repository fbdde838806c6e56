package subsystem

import (
	"net/http"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
)

// AdvancedTuningFields maps the advanced tuning parameter listing
var AdvancedTuningFields = mapper.FieldMap{
	{Canonical: "advanced_tuning_parameters", Wire: "tuningParameters", Kind: mapper.RecordList, ReadOnly: true, Elem: mapper.FieldMap{
		{Canonical: "key", Wire: "key"},
		{Canonical: "value", Wire: "value"},
		{Canonical: "comment", Wire: "comment"},
	}},
}

// AdvancedTuning lists the advanced tuning parameters
func AdvancedTuning() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "advanced_tuning",
		Description: "Advanced tuning parameters (read only)",
		Fields:      AdvancedTuningFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: "/adv_params"},
	}
}

var ApplicationLocaleFields = mapper.FieldMap{
	{Canonical: "application_locale", Wire: "id", ReadOnly: true},
}

// ApplicationLocale reports the language of the appliance messages
func ApplicationLocale() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "application_locale",
		Description: "Application language (read only)",
		Fields:      ApplicationLocaleFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: "/isam/applang/v1"},
	}
}

var LMIStatusFields = mapper.FieldMap{
	{Canonical: "start_time", Wire: "start_time", ReadOnly: true},
}

// LMIStatus reports when the management interface was last started. The
// appliance wraps the object in a one-element array.
func LMIStatus() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "lmi_status",
		Description: "Management interface status (read only)",
		Fields:      LMIStatusFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: "/lmi"},
	}
}

var FactsFields = mapper.FieldMap{
	{Canonical: "product_name", Wire: "product_name", ReadOnly: true},
	{Canonical: "product_description", Wire: "product_description", ReadOnly: true},
	{Canonical: "firmware_version", Wire: "firmware_version", ReadOnly: true},
	{Canonical: "firmware_build", Wire: "firmware_build", ReadOnly: true},
	{Canonical: "firmware_label", Wire: "firmware_label", ReadOnly: true},
	{Canonical: "deployment_model", Wire: "deployment_model", ReadOnly: true},
}

// Facts lists the installed firmware versions
func Facts() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "facts",
		Description: "Product and firmware versions (read only)",
		Fields:      FactsFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: "/core/sys/versions"},
		List:        true,
		ItemsKey:    "items",
	}
}
