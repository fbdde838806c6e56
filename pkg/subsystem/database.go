package subsystem

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/types"
)

const databasePath = "/isam/cluster/v2"

// DatabaseFields maps the high-volume runtime database (HVDB) settings
var DatabaseFields = mapper.FieldMap{
	{Canonical: "db_type", Wire: "hvdb_db_type"},
	{Canonical: "address", Wire: "hvdb_address"},
	{Canonical: "port", Wire: "hvdb_port"},
	{Canonical: "user", Wire: "hvdb_user"},
	{Canonical: "password", Wire: "hvdb_password", WriteOnly: true},
	{Canonical: "db_name", Wire: "hvdb_db_name"},
	{Canonical: "secure", Wire: "hvdb_db_secure", Bool: true},
	{Canonical: "db2_alt_address", Wire: "hvdb_db2_alt_address"},
	{Canonical: "db2_alt_port", Wire: "hvdb_db2_alt_port"},
	{Canonical: "truststore", Wire: "hvdb_db_truststore"},
	{Canonical: "driver_type", Wire: "hvdb_driver_type"},
	{Canonical: "failover_servers", Wire: "hvdb_failover_servers", Kind: mapper.RecordList, Elem: mapper.FieldMap{
		{Canonical: "address", Wire: "address"},
		{Canonical: "port", Wire: "port"},
		{Canonical: "order", Wire: "order"},
	}},
}

var databaseTypes = map[string]bool{"db2": true, "postgresql": true, "oracle": true}

// Database is the HVDB configuration. It has no default, so deleted is
// rejected. An unconfigured appliance is set up through POST.
func Database() *reconciler.Definition {
	return &reconciler.Definition{
		Name:        "database",
		Description: "High-volume runtime database connection",
		Fields:      DatabaseFields,
		Read:        reconciler.Endpoint{Method: http.MethodGet, Path: databasePath},
		Update:      &reconciler.Endpoint{Method: http.MethodPut, Path: databasePath},
		Create:      &reconciler.Endpoint{Method: http.MethodPost, Path: databasePath},
		Check:       checkDatabase,
	}
}

func checkDatabase(want types.Record) error {
	var result *multierror.Error
	for _, key := range []string{"db_type", "address", "port", "user", "db_name", "secure"} {
		if v, _ := want.Get(key); v == nil {
			result = multierror.Append(result, fmt.Errorf("parameter %s is required", key))
		}
	}
	if v, _ := want.Get("db_type"); v != nil {
		if s, ok := v.(string); !ok || !databaseTypes[s] {
			result = multierror.Append(result, fmt.Errorf("parameter db_type must be one of db2, postgresql, oracle, got %v", v))
		}
	}
	return result.ErrorOrNil()
}

// FailoverServer is one PostgreSQL failover server
type FailoverServer struct {
	Address string
	Port    int
	Order   int
}

// DatabaseConfig is the typed desired state of the database subsystem.
// Nil fields are left unchanged on the appliance.
type DatabaseConfig struct {
	DBType          *string
	Address         *string
	Port            *int
	User            *string
	Password        *string
	DBName          *string
	Secure          *bool
	DB2AltAddress   *string
	DB2AltPort      *int
	Truststore      *string
	DriverType      *string
	FailoverServers []FailoverServer
}

// Record converts the typed configuration to a canonical record
func (c DatabaseConfig) Record() types.Record {
	rec := types.Record{}
	setString(rec, "db_type", c.DBType)
	setString(rec, "address", c.Address)
	setInt(rec, "port", c.Port)
	setString(rec, "user", c.User)
	setString(rec, "password", c.Password)
	setString(rec, "db_name", c.DBName)
	if c.Secure != nil {
		rec["secure"] = *c.Secure
	}
	setString(rec, "db2_alt_address", c.DB2AltAddress)
	setInt(rec, "db2_alt_port", c.DB2AltPort)
	setString(rec, "truststore", c.Truststore)
	setString(rec, "driver_type", c.DriverType)
	if c.FailoverServers != nil {
		servers := make([]any, 0, len(c.FailoverServers))
		for _, s := range c.FailoverServers {
			servers = append(servers, map[string]any{
				"address": s.Address,
				"port":    s.Port,
				"order":   s.Order,
			})
		}
		rec["failover_servers"] = servers
	}
	return rec
}

func setString(rec types.Record, key string, v *string) {
	if v != nil {
		rec[key] = *v
	}
}

func setInt(rec types.Record, key string, v *int) {
	if v != nil {
		rec[key] = *v
	}
}
