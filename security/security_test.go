package security

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adrianmcphee/geobase"
)

func newTestService(t *testing.T) (*Service, *observer.ObservedLogs) {
	t.Helper()
	cfg := geobase.DefaultConfig()
	cfg.DataPath = t.TempDir()
	core, logs := observer.New(zap.InfoLevel)
	store := geobase.NewDocumentStoreWithObservability(
		geobase.NewConnector(cfg),
		geobase.NewZapLogger(zap.New(core)),
		nil,
	)
	t.Cleanup(func() { store.Connector().Close() })
	return New(store), logs
}

func peoplePerms() Permissions {
	return Permissions{
		Create: {UserList: []string{"ops@example.com"}, Checks: map[string]bool{LoginCheck: true}},
		Delete: {UserList: []string{}, Checks: map[string]bool{LoginCheck: true, "dual_factor": true}},
	}
}

func TestService_CreateAndReadFeature(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	id, err := svc.Create(ctx, PeopleFeature, peoplePerms())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a generated id")
	}

	recs := svc.Read(ctx)
	if !reflect.DeepEqual(recs[PeopleFeature], peoplePerms()) {
		t.Errorf("Read()[people] = %+v", recs[PeopleFeature])
	}

	perms, ok := svc.ReadFeature(ctx, PeopleFeature)
	if !ok {
		t.Fatal("ReadFeature(people) not found")
	}
	if !perms[Delete].Checks["dual_factor"] {
		t.Errorf("delete checks = %+v", perms[Delete].Checks)
	}

	if _, ok := svc.ReadFeature(ctx, "billing"); ok {
		t.Error("unknown feature should not be found")
	}
}

func TestService_ReadFallsBackWhenEmpty(t *testing.T) {
	svc, logs := newTestService(t)

	recs := svc.Read(context.Background())
	if !reflect.DeepEqual(recs, DefaultRecords()) {
		t.Errorf("Read() = %+v, want built-in records", recs)
	}
	if logs.FilterMessage("no security records stored, using built-in records").Len() != 1 {
		t.Errorf("expected a fallback log entry, got %v", logs.All())
	}
}

func TestService_ReadFallsBackWhenUnreachable(t *testing.T) {
	cfg := geobase.DefaultConfig()
	cfg.Mode = geobase.ModeCloud // no secret configured
	core, logs := observer.New(zap.WarnLevel)
	store := geobase.NewDocumentStoreWithObservability(
		geobase.NewConnector(cfg),
		geobase.NewZapLogger(zap.New(core)),
		nil,
	)
	svc := New(store)

	recs := svc.Read(context.Background())
	if !reflect.DeepEqual(recs, DefaultRecords()) {
		t.Errorf("Read() = %+v, want built-in records", recs)
	}
	if logs.FilterMessage("could not read security records, using built-in records").Len() != 1 {
		t.Errorf("expected a warning, got %v", logs.All())
	}
}

func TestService_ReadFeatureLoadsLazily(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	perms, ok := svc.ReadFeature(ctx, PeopleFeature)
	if !ok {
		t.Fatal("built-in people feature should be available before any Read")
	}
	if perms[Create].UserList[0] != "admin@geobase.local" {
		t.Errorf("people create users = %v", perms[Create].UserList)
	}

	// Loaded records are kept until the next Read
	_, _ = svc.Create(ctx, "billing", peoplePerms())
	if _, ok := svc.ReadFeature(ctx, "billing"); ok {
		t.Error("ReadFeature should serve the loaded records until Read is called")
	}
	svc.Read(ctx)
	if _, ok := svc.ReadFeature(ctx, "billing"); !ok {
		t.Error("billing should be visible after Read")
	}
}

func TestService_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	perms, _ := svc.ReadFeature(ctx, PeopleFeature)
	perms[Create].Checks[LoginCheck] = false

	again, _ := svc.ReadFeature(ctx, PeopleFeature)
	if !again[Create].Checks[LoginCheck] {
		t.Error("caller mutation leaked into loaded records")
	}
}

func TestService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Create(ctx, PeopleFeature, peoplePerms())

	changed, err := svc.Update(ctx, PeopleFeature, Permissions{
		Read: {UserList: []string{"auditor@example.com"}, Checks: map[string]bool{LoginCheck: true}},
	})
	if err != nil || !changed {
		t.Fatalf("Update = %v, %v", changed, err)
	}
	changed, err = svc.Update(ctx, PeopleFeature, Permissions{
		Read: {UserList: []string{"auditor@example.com"}, Checks: map[string]bool{LoginCheck: true}},
	})
	if err != nil || changed {
		t.Errorf("repeated Update = %v, %v; want no change", changed, err)
	}

	recs := svc.Read(ctx)
	if len(recs[PeopleFeature]) != 3 {
		t.Errorf("expected create, read and delete permissions, got %+v", recs[PeopleFeature])
	}

	if _, err := svc.Update(ctx, "billing", peoplePerms()); !geobase.IsNotFound(err) {
		t.Errorf("Update missing feature: expected ErrNotFound, got %v", err)
	}

	if n, err := svc.Delete(ctx, PeopleFeature); err != nil || n != 1 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
	if _, err := svc.Delete(ctx, PeopleFeature); !geobase.IsNotFound(err) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		feature string
		perms   Permissions
	}{
		{"EmptyName", "", peoplePerms()},
		{"NoPermissions", PeopleFeature, nil},
		{"UnknownOperation", PeopleFeature, Permissions{"approve": {}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.feature, tt.perms)
			if !errors.Is(err, geobase.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestService_Features(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, _ = svc.Create(ctx, "zones", peoplePerms())
	_, _ = svc.Create(ctx, "accounts", peoplePerms())

	features := svc.Features(ctx)
	if len(features) != 2 || features[0].Name != "accounts" || features[1].Name != "zones" {
		t.Errorf("Features = %+v", features)
	}
}
