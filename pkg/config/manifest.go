package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/types"
)

// APIVersion is the only manifest version understood
const APIVersion = "isvactl/v1"

// Manifest declares the state of one appliance subsystem
type Manifest struct {
	APIVersion string         `yaml:"apiVersion"`
	Kind       string         `yaml:"kind"`
	State      string         `yaml:"state"`
	Metadata   Metadata       `yaml:"metadata"`
	Spec       map[string]any `yaml:"spec"`
}

// Metadata identifies a manifest. Offering selects the offering of an
// activation manifest.
type Metadata struct {
	Name     string `yaml:"name"`
	Offering string `yaml:"offering,omitempty"`
}

// Subsystem returns the subsystem the manifest targets
func (m *Manifest) Subsystem() string {
	return strings.ToLower(strings.TrimSpace(m.Kind))
}

// Operation returns the declared state, replaced when none is given
func (m *Manifest) Operation() (types.Operation, error) {
	if m.State == "" {
		return types.OperationReplaced, nil
	}
	return types.ParseOperation(m.State)
}

// Validate checks the manifest envelope. The spec field is checked against the
// subsystem's field map by reconciler.Prepare.
func (m *Manifest) Validate() error {
	var result *multierror.Error
	if m.APIVersion != APIVersion {
		result = multierror.Append(result, fmt.Errorf("apiVersion must be %s, got %q", APIVersion, m.APIVersion))
	}
	if m.Subsystem() == "" {
		result = multierror.Append(result, errors.New("kind is required"))
	}
	op, err := m.Operation()
	if err != nil {
		result = multierror.Append(result, err)
	}
	if op == types.OperationReplaced && m.Spec == nil {
		result = multierror.Append(result, errors.New("spec is required for state replaced"))
	}
	if err := result.ErrorOrNil(); err != nil {
		return isvaerr.ValidationErr(fmt.Errorf("manifest %s: %w", m.describe(), err))
	}
	return nil
}

func (m *Manifest) describe() string {
	if m.Metadata.Name != "" {
		return m.Metadata.Name
	}
	if m.Kind != "" {
		return m.Kind
	}
	return "(unnamed)"
}

// Invocation turns the manifest into a convergence input
func (m *Manifest) Invocation(dryRun bool) (types.Invocation, error) {
	if err := m.Validate(); err != nil {
		return types.Invocation{}, err
	}
	op, _ := m.Operation()
	inv := types.Invocation{Operation: op, DryRun: dryRun}
	if op == types.OperationReplaced {
		inv.Desired = types.Record(m.Spec).Clone()
	}
	return inv, nil
}

// ParseManifests decodes every YAML document of r. Empty documents are
// skipped.
func ParseManifests(r io.Reader) ([]Manifest, error) {
	dec := yaml.NewDecoder(r)
	var out []Manifest
	for i := 0; ; i++ {
		var m Manifest
		err := dec.Decode(&m)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, isvaerr.Validation("failed to parse manifest document %d: %v", i+1, err)
		}
		if m.Kind == "" && m.APIVersion == "" && m.Spec == nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseDesired decodes a bare desired-state record, as passed to replace -f
func ParseDesired(r io.Reader) (types.Record, error) {
	var rec map[string]any
	if err := yaml.NewDecoder(r).Decode(&rec); err != nil && !errors.Is(err, io.EOF) {
		return nil, isvaerr.Validation("failed to parse desired state: %v", err)
	}
	if rec == nil {
		return nil, isvaerr.Validation("desired state is empty")
	}
	return types.Record(rec), nil
}
