package subsystem

import (
	"net/http"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/types"
)

const dscPath = "/isam/dsc/config"

// DSCFields maps the distributed session cache cluster settings
var DSCFields = mapper.FieldMap{
	{Canonical: "worker_threads", Wire: "worker_threads"},
	{Canonical: "max_session_lifetime", Wire: "max_session_lifetime"},
	{Canonical: "client_grace", Wire: "client_grace"},
	{Canonical: "connection_idle_timeout", Wire: "connection_idle_timeout"},
	{Canonical: "service_port", Wire: "service_port"},
	{Canonical: "replication_port", Wire: "replication_port"},
	{Canonical: "servers", Wire: "servers", Kind: mapper.RecordList, Elem: mapper.FieldMap{
		{Canonical: "ip", Wire: "ip"},
		{Canonical: "service_port", Wire: "service_port"},
		{Canonical: "replication_port", Wire: "replication_port"},
	}},
}

// DSCDefault is the factory configuration of the session cache
func DSCDefault() types.Record {
	return types.Record{
		"servers":                 []any{},
		"worker_threads":          64,
		"replication_port":        444,
		"client_grace":            600,
		"max_session_lifetime":    3600,
		"connection_idle_timeout": 0,
		"service_port":            443,
	}
}

// DSC is the distributed session cache configuration
func DSC() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "dsc",
		Description: "Distributed session cache cluster",
		Fields:      DSCFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: dscPath},
		Update:      &reconciler.Endpoint{Method: http.MethodPut, Path: dscPath, Expect: http.StatusNoContent},
		Default:     DSCDefault(),
	}
}

// DSCServer is one member of the session cache cluster
type DSCServer struct {
	IP              string
	ServicePort     *int
	ReplicationPort *int
}

// DSCConfig is the typed desired state of the session cache
type DSCConfig struct {
	WorkerThreads         *int
	MaxSessionLifetime    *int
	ClientGrace           *int
	ConnectionIdleTimeout *int
	ServicePort           *int
	ReplicationPort       *int
	Servers               []DSCServer
}

// Record converts the typed configuration to a canonical record
func (c DSCConfig) Record() types.Record {
	rec := types.Record{}
	setInt(rec, "worker_threads", c.WorkerThreads)
	setInt(rec, "max_session_lifetime", c.MaxSessionLifetime)
	setInt(rec, "client_grace", c.ClientGrace)
	setInt(rec, "connection_idle_timeout", c.ConnectionIdleTimeout)
	setInt(rec, "service_port", c.ServicePort)
	setInt(rec, "replication_port", c.ReplicationPort)
	if c.Servers != nil {
		servers := make([]any, 0, len(c.Servers))
		for _, s := range c.Servers {
			server := map[string]any{"ip": s.IP}
			if s.ServicePort != nil {
				server["service_port"] = *s.ServicePort
			}
			if s.ReplicationPort != nil {
				server["replication_port"] = *s.ReplicationPort
			}
			servers = append(servers, server)
		}
		rec["servers"] = servers
	}
	return rec
}
