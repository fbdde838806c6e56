package subsystem

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/isvactl/pkg/client/fake"
	"github.com/cuemby/isvactl/pkg/isvaerr"
	"github.com/cuemby/isvactl/pkg/mapper"
	"github.com/cuemby/isvactl/pkg/reconciler"
	"github.com/cuemby/isvactl/pkg/types"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func ctx() context.Context    { return context.Background() }

func newReconciler(a *fake.Appliance) *reconciler.Reconciler {
	return reconciler.NewReconciler(a, zerolog.Nop())
}

// sampleWire builds a wire record with a distinct value for every field
func sampleWire(fm mapper.FieldMap) types.WireRecord {
	wire := types.WireRecord{}
	for i, f := range fm {
		switch f.Kind {
		case mapper.RecordList:
			wire[f.Wire] = []any{map[string]any(sampleWire(f.Elem))}
		case mapper.List:
			wire[f.Wire] = []any{fmt.Sprintf("%s-a", f.Wire), fmt.Sprintf("%s-b", f.Wire)}
		default:
			if f.Bool {
				wire[f.Wire] = i%2 == 0
				continue
			}
			wire[f.Wire] = fmt.Sprintf("value-%d", i)
		}
	}
	return wire
}

func TestFieldMapsRoundTrip(t *testing.T) {
	maps := map[string]mapper.FieldMap{
		"database":           DatabaseFields,
		"dsc":                DSCFields,
		"admin_settings":     AdminFields,
		"advanced_tuning":    AdvancedTuningFields,
		"application_locale": ApplicationLocaleFields,
		"lmi_status":         LMIStatusFields,
		"facts":              FactsFields,
		"service_agreements": ServiceAgreementsFields,
		"setup_complete":     SetupCompleteFields,
		"activation":         ActivationFields,
	}

	for name, fm := range maps {
		t.Run(name, func(t *testing.T) {
			wire := sampleWire(fm)
			rec, err := mapper.ToCanonical(wire, fm)
			require.NoError(t, err)

			for _, f := range fm {
				v, ok := rec.Get(f.Canonical)
				require.True(t, ok, f.Canonical)
				assert.NotNil(t, v, f.Canonical)
			}

			back, err := mapper.ToWire(rec, fm)
			require.NoError(t, err)
			for _, f := range fm {
				if f.Writable() {
					assert.Equal(t, wire[f.Wire], back[f.Wire], f.Wire)
				} else {
					assert.NotContains(t, back, f.Wire)
				}
			}
		})
	}
}

func TestFieldMapsHaveUniqueKeys(t *testing.T) {
	for _, name := range Names() {
		def, err := Lookup(name, Options{Offering: "wga"})
		require.NoError(t, err)

		canonical := map[string]bool{}
		wire := map[string]bool{}
		for _, f := range def.Fields {
			assert.False(t, canonical[f.Canonical], "%s: duplicate canonical key %s", name, f.Canonical)
			assert.False(t, wire[f.Wire], "%s: duplicate wire key %s", name, f.Wire)
			canonical[f.Canonical] = true
			wire[f.Wire] = true
		}
	}
}

func TestLookup(t *testing.T) {
	names := Names()
	assert.True(t, sort.StringsAreSorted(names))
	assert.Contains(t, names, "dsc")
	assert.Contains(t, names, "activation")

	def, err := Lookup("dsc", Options{})
	require.NoError(t, err)
	assert.Equal(t, "dsc", def.Name)
	assert.True(t, def.Supports(types.OperationDeleted))

	_, err = Lookup("firewall", Options{})
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	_, err = Lookup("activation", Options{})
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))

	def, err = Lookup("activation", Options{Offering: "mga"})
	require.NoError(t, err)
	assert.Equal(t, "/isam/capabilities/mga/v1", def.Read.Path)
}

func TestSupportedOperations(t *testing.T) {
	tests := []struct {
		name     string
		replaced bool
		deleted  bool
	}{
		{"database", true, false},
		{"dsc", true, true},
		{"admin_settings", true, false},
		{"advanced_tuning", false, false},
		{"application_locale", false, false},
		{"lmi_status", false, false},
		{"service_agreements", true, false},
		{"setup_complete", true, false},
		{"facts", false, false},
		{"activations", false, false},
		{"activation", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := Lookup(tt.name, Options{Offering: "wga"})
			require.NoError(t, err)
			assert.True(t, def.Supports(types.OperationGathered))
			assert.Equal(t, tt.replaced, def.Supports(types.OperationReplaced))
			assert.Equal(t, tt.deleted, def.Supports(types.OperationDeleted))
		})
	}
}

func TestDatabaseConfigRecord(t *testing.T) {
	cfg := DatabaseConfig{
		DBType:  strPtr("postgresql"),
		Address: strPtr("db.example.com"),
		Port:    intPtr(5432),
		User:    strPtr("isva"),
		DBName:  strPtr("hvdb"),
		Secure:  boolPtr(true),
		FailoverServers: []FailoverServer{
			{Address: "db2.example.com", Port: 5432, Order: 1},
		},
	}
	rec := cfg.Record()

	assert.Equal(t, "postgresql", rec["db_type"])
	assert.NotContains(t, rec, "password")
	assert.NotContains(t, rec, "truststore")
	require.NoError(t, mapper.Validate(rec, DatabaseFields))
	require.NoError(t, checkDatabase(rec))

	wire, err := mapper.ToWire(rec, DatabaseFields)
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"address": "db2.example.com", "port": 5432, "order": 1}}, wire["hvdb_failover_servers"])
}

func TestDatabaseCheck(t *testing.T) {
	err := checkDatabase(types.Record{"db_type": "mysql", "address": "db"})
	require.Error(t, err)
	for _, msg := range []string{"db_type must be one of", "port is required", "user is required", "secure is required"} {
		assert.Contains(t, err.Error(), msg)
	}
}

func TestDatabaseCreatedThroughPost(t *testing.T) {
	a := fake.New().Resource(databasePath, map[string]any{}, map[string]int{
		http.MethodPost: http.StatusOK,
		http.MethodPut:  http.StatusOK,
	})

	desired := DatabaseConfig{
		DBType:   strPtr("db2"),
		Address:  strPtr("db.example.com"),
		Port:     intPtr(50000),
		User:     strPtr("isva"),
		Password: strPtr("secret"),
		DBName:   strPtr("HVDB"),
		Secure:   boolPtr(false),
	}.Record()

	res, err := newReconciler(a).Converge(ctx(), Database(), types.Invocation{Operation: types.OperationReplaced, Desired: desired})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	require.Len(t, a.CallsTo(http.MethodPost, databasePath), 1)
	assert.Empty(t, a.CallsTo(http.MethodPut, databasePath))

	payload := a.CallsTo(http.MethodPost, databasePath)[0].Payload.(map[string]any)
	assert.Equal(t, "secret", payload["hvdb_password"])
	assert.Equal(t, false, payload["hvdb_db_secure"])
}

func TestDatabaseDeletedRejected(t *testing.T) {
	a := fake.New()
	_, err := newReconciler(a).Converge(ctx(), Database(), types.Invocation{Operation: types.OperationDeleted})
	assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))
	assert.Empty(t, a.Calls)
}

func TestDSCDeletedAtDefaults(t *testing.T) {
	a := fake.New().Resource(dscPath, map[string]any(DSCDefault()), map[string]int{http.MethodPut: http.StatusNoContent})

	res, err := newReconciler(a).Converge(ctx(), DSC(), types.Invocation{Operation: types.OperationDeleted})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, a.Writes())
}

func TestDSCConfigConverges(t *testing.T) {
	a := fake.New().Resource(dscPath, map[string]any(DSCDefault()), map[string]int{http.MethodPut: http.StatusNoContent})
	r := newReconciler(a)

	desired := DSCConfig{
		WorkerThreads: intPtr(32),
		Servers: []DSCServer{
			{IP: "10.0.0.1", ServicePort: intPtr(443), ReplicationPort: intPtr(444)},
			{IP: "10.0.0.2"},
		},
	}.Record()

	res, err := r.Converge(ctx(), DSC(), types.Invocation{Operation: types.OperationReplaced, Desired: desired})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 32, res.Diff.After["worker_threads"])
	assert.NotContains(t, res.Diff.After, "client_grace")

	res, err = r.Converge(ctx(), DSC(), types.Invocation{Operation: types.OperationReplaced, Desired: desired})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, a.Writes(), 1)
}

func TestLMIStatusUnwrapsSingleton(t *testing.T) {
	a := fake.New().Respond(http.MethodGet, "/lmi", http.StatusOK, []any{map[string]any{"start_time": "2024-05-01 10:00:00"}})

	res, err := newReconciler(a).Gather(ctx(), LMIStatus())
	require.NoError(t, err)
	assert.Equal(t, types.Record{"start_time": "2024-05-01 10:00:00"}, res.Gathered)
}

func TestServiceAgreementsOnlyAccept(t *testing.T) {
	const path = "/setup_service_agreements/accepted"
	tests := []struct {
		name    string
		desired types.Record
		wantErr bool
		writes  int
	}{
		{name: "accept", desired: types.Record{"accepted": true}, writes: 1},
		{name: "accept as string", desired: types.Record{"accepted": "yes"}, writes: 1},
		{name: "decline", desired: types.Record{"accepted": false}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := fake.New().Resource(path, map[string]any{"accepted": false}, map[string]int{http.MethodPut: http.StatusOK})
			_, err := newReconciler(a).Converge(ctx(), ServiceAgreements(),
				types.Invocation{Operation: types.OperationReplaced, Desired: tt.desired})
			if tt.wantErr {
				assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))
				assert.Empty(t, a.Calls)
				return
			}
			require.NoError(t, err)
			assert.Len(t, a.CallsTo(http.MethodPut, path), tt.writes)
		})
	}
}

func TestSetupComplete(t *testing.T) {
	t.Run("completes once", func(t *testing.T) {
		a := fake.New().Resource("/setup_complete", map[string]any{"configured": false}, map[string]int{http.MethodPut: http.StatusOK})
		r := newReconciler(a)
		inv := types.Invocation{Operation: types.OperationReplaced, Desired: types.Record{"configured": "yes"}}

		res, err := r.Converge(ctx(), SetupComplete(), inv)
		require.NoError(t, err)
		assert.True(t, res.Changed)

		puts := a.CallsTo(http.MethodPut, "/setup_complete")
		require.Len(t, puts, 1)
		assert.Nil(t, puts[0].Payload, "completing setup sends no body")
	})

	t.Run("already configured", func(t *testing.T) {
		a := fake.New().Respond(http.MethodGet, "/setup_complete", http.StatusOK, map[string]any{"configured": true})
		res, err := newReconciler(a).Converge(ctx(), SetupComplete(),
			types.Invocation{Operation: types.OperationReplaced, Desired: types.Record{"configured": true}})
		require.NoError(t, err)
		assert.False(t, res.Changed)
		assert.Empty(t, a.Writes())
	})

	t.Run("cannot be undone", func(t *testing.T) {
		a := fake.New()
		_, err := newReconciler(a).Converge(ctx(), SetupComplete(),
			types.Invocation{Operation: types.OperationReplaced, Desired: types.Record{"configured": false}})
		assert.True(t, isvaerr.Is(err, isvaerr.KindValidation))
		assert.Empty(t, a.Calls)
	})
}

func TestPendingChanges(t *testing.T) {
	a := fake.New().
		Respond(http.MethodGet, PendingChangesPath+"/count", http.StatusOK, map[string]any{"count": 0}).
		Respond(http.MethodPut, PendingChangesPath, http.StatusOK, map[string]any{})
	r := newReconciler(a)

	n, err := PendingCount(ctx(), a)
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := r.Run(ctx(), DeployPending(), false)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, a.Writes())

	a.Respond(http.MethodGet, PendingChangesPath+"/count", http.StatusOK, map[string]any{"count": 3})
	res, err = r.Run(ctx(), DeployPending(), false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Len(t, a.CallsTo(http.MethodPut, PendingChangesPath), 1)

	a.Respond(http.MethodGet, PendingChangesPath+"/count", http.StatusOK, map[string]any{"count": "many"})
	_, err = PendingCount(ctx(), a)
	assert.True(t, isvaerr.Is(err, isvaerr.KindMapping))
}

func TestDockerPublish(t *testing.T) {
	a := fake.New().Respond(http.MethodPut, "/docker/publish", http.StatusCreated, map[string]any{"filename": "isva_2024.snapshot"})
	r := newReconciler(a)

	res, err := r.Run(ctx(), DockerPublish(), true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, types.Record{"filename": "check_mode.snapshot"}, res.Diff.After)
	assert.Empty(t, a.Writes())

	res, err = r.Run(ctx(), DockerPublish(), false)
	require.NoError(t, err)
	assert.Equal(t, types.Record{"filename": "isva_2024.snapshot"}, res.Diff.After)

	a.Respond(http.MethodPut, "/docker/stop", http.StatusNoContent, nil)
	res, err = r.Run(ctx(), DockerStop(), false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
}
