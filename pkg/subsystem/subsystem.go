package subsystem

import (
	"sort"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/reconciler"
)

// Options parameterize subsystems addressed by more than their name
type Options struct {
	// Offering selects the licensed offering of the activation subsystem
	Offering string
}

type builder func(Options) (*reconciler.Definition, error)

var registry = map[string]builder{
	"database":           static(Database),
	"dsc":                static(DSC),
	"admin_settings":     static(AdminSettings),
	"advanced_tuning":    static(AdvancedTuning),
	"application_locale": static(ApplicationLocale),
	"lmi_status":         static(LMIStatus),
	"service_agreements": static(ServiceAgreements),
	"setup_complete":     static(SetupComplete),
	"facts":              static(Facts),
	"activations":        static(Activations),
	"activation": func(o Options) (*reconciler.Definition, error) {
		return Activation(o.Offering)
	},
}

func static(f func() *reconciler.Definition) builder {
	return func(Options) (*reconciler.Definition, error) {
		return f(), nil
	}
}

// Lookup returns a fresh definition of the named subsystem
func Lookup(name string, opts Options) (*reconciler.Definition, error) {
	b, ok := registry[name]
	if !ok {
		return nil, isvaerr.Validation("unknown subsystem %q, expected one of %v", name, Names())
	}
	return b(opts)
}

// Names lists the registered subsystems in alphabetical order
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
