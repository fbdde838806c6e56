package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cuemby/isvactl/pkg/client"
	"github.com/cuemby/isvactl/pkg/config"
	"github.com/cuemby/isvactl/pkg/log"
	"github.com/cuemby/isvactl/pkg/reconciler"
)

// newApplianceClient is replaced in tests
var newApplianceClient = func(p *config.Provider) (client.ApplianceClient, error) {
	return client.NewClient(p.ClientConfig())
}

// session is one invocation against one appliance
type session struct {
	id     string
	client client.ApplianceClient
	logger zerolog.Logger
	dryRun bool
}

func newSession(cmd *cobra.Command, subsystem, operation string) (*session, error) {
	p, err := loadProvider(cmd)
	if err != nil {
		return nil, err
	}
	c, err := newApplianceClient(p)
	if err != nil {
		return nil, err
	}
	dryRun, _ := cmd.Flags().GetBool("check")

	id := uuid.New().String()
	s := &session{
		id:     id,
		client: c,
		logger: log.WithInvocation(id, subsystem, operation),
		dryRun: dryRun,
	}
	s.logger.Debug().Str("server", p.Server).Bool("dry_run", dryRun).Msg("session opened")
	return s, nil
}

// invocation returns a reconciler logging under another subsystem of the
// same session
func (s *session) invocation(subsystem, operation string) *reconciler.Reconciler {
	return reconciler.NewReconciler(s.client, log.WithInvocation(s.id, subsystem, operation))
}

func (s *session) reconciler() *reconciler.Reconciler {
	return reconciler.NewReconciler(s.client, s.logger)
}

// loadProvider layers the provider file, the environment and the command
// line flags, in increasing order of precedence
func loadProvider(cmd *cobra.Command) (*config.Provider, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("provider")

	p, err := config.LoadProvider(path, os.Getenv)
	if err != nil {
		return nil, err
	}

	if flags.Changed("server") {
		p.Server, _ = flags.GetString("server")
	}
	if flags.Changed("port") {
		p.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("user") {
		p.User, _ = flags.GetString("user")
	}
	if flags.Changed("password") {
		p.Password, _ = flags.GetString("password")
	}
	if flags.Changed("validate-certs") {
		v, _ := flags.GetBool("validate-certs")
		p.ValidateCerts = &v
	}
	if flags.Changed("ca-cert") {
		p.CACert, _ = flags.GetString("ca-cert")
	}
	if flags.Changed("timeout") {
		p.Timeout, _ = flags.GetInt("timeout")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
