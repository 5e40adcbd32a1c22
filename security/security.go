// Package security stores per-feature access records.
//
// Each record names a feature and, for each CRUD operation, the users allowed
// to perform it and the checks (login, dual factor and so on) that apply.
// Records are stored and read back; evaluating them is up to the caller.
package security

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adrianmcphee/geobase"
	"github.com/adrianmcphee/geobase/internal/entity"
)

// Collection is the collection security records live in
const Collection = "security"

// FeatureNameField identifies the feature a record belongs to
const FeatureNameField = "feature_name"

// Operations a record can carry permissions for
const (
	Create = "create"
	Read   = "read"
	Update = "update"
	Delete = "delete"
)

// Permission field names and well-known checks
const (
	UserListField = "user_list"
	ChecksField   = "checks"
	LoginCheck    = "login"
)

// PeopleFeature is the feature covered by the built-in records
const PeopleFeature = "people"

// Permission lists who may perform one operation and which checks apply
type Permission struct {
	UserList []string        `json:"user_list"`
	Checks   map[string]bool `json:"checks"`
}

// Permissions maps an operation name to its permission
type Permissions map[string]Permission

// Feature is a feature name with its permissions
type Feature struct {
	Name        string
	Permissions Permissions
}

// DefaultRecords returns the built-in records used when the store holds none or is unreachable
func DefaultRecords() map[string]Permissions {
	return map[string]Permissions{
		PeopleFeature: {
			Create: {
				UserList: []string{"admin@geobase.local"},
				Checks:   map[string]bool{LoginCheck: true},
			},
		},
	}
}

// Service reads and writes security records and keeps the last loaded set in memory
type Service struct {
	repo   *entity.Repository[geobase.Document]
	logger geobase.Logger

	mu   sync.RWMutex
	recs map[string]Permissions
}

// New creates a security service over store
func New(store *geobase.DocumentStore) *Service {
	return &Service{
		repo: entity.New[geobase.Document](store, entity.Schema{
			Collection: Collection,
			Required:   []string{FeatureNameField},
			NaturalKey: []string{FeatureNameField},
		}),
		logger: geobase.WithFields(store.Logger(), "component", "security"),
	}
}

// Create stores permissions for a feature and returns the generated id
func (s *Service) Create(ctx context.Context, name string, perms Permissions) (string, error) {
	doc, err := toDocument(name, perms)
	if err != nil {
		return "", err
	}
	doc[FeatureNameField] = name
	return s.repo.CreateDocument(ctx, doc)
}

// Update replaces the permissions of the listed operations.
// It reports whether anything changed; a missing feature is ErrNotFound.
func (s *Service) Update(ctx context.Context, name string, perms Permissions) (bool, error) {
	set, err := toDocument(name, perms)
	if err != nil {
		return false, err
	}
	res, err := s.repo.Update(ctx, set, name)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Delete removes a feature's record; a missing feature is ErrNotFound
func (s *Service) Delete(ctx context.Context, name string) (int64, error) {
	return s.repo.Delete(ctx, name)
}

// Read loads every record keyed by feature name and keeps them for ReadFeature.
// When the store is empty or cannot be read, the built-in records are used instead.
func (s *Service) Read(ctx context.Context) map[string]Permissions {
	recs, err := s.load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("could not read security records, using built-in records", "error", err)
		recs = DefaultRecords()
	case len(recs) == 0:
		s.logger.Info("no security records stored, using built-in records")
		recs = DefaultRecords()
	}

	s.mu.Lock()
	s.recs = recs
	s.mu.Unlock()
	return copyRecords(recs)
}

// ReadFeature returns the permissions for one feature, loading records on first use
func (s *Service) ReadFeature(ctx context.Context, name string) (Permissions, bool) {
	s.mu.RLock()
	recs := s.recs
	s.mu.RUnlock()

	if len(recs) == 0 {
		s.Read(ctx)
		s.mu.RLock()
		recs = s.recs
		s.mu.RUnlock()
	}

	perms, ok := recs[name]
	if !ok {
		return nil, false
	}
	return copyPermissions(perms), true
}

// Features lists the loaded features in name order, loading records on first use
func (s *Service) Features(ctx context.Context) []Feature {
	s.mu.RLock()
	recs := s.recs
	s.mu.RUnlock()
	if len(recs) == 0 {
		recs = s.Read(ctx)
	}

	features := make([]Feature, 0, len(recs))
	for name, perms := range recs {
		features = append(features, Feature{Name: name, Permissions: copyPermissions(perms)})
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features
}

func (s *Service) load(ctx context.Context) (map[string]Permissions, error) {
	docs, err := s.repo.Store().ReadDict(ctx, Collection, FeatureNameField, true)
	if err != nil {
		return nil, err
	}
	recs := make(map[string]Permissions, len(docs))
	for name, doc := range docs {
		perms, err := fromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("feature %s: %w", name, err)
		}
		recs[name] = perms
	}
	return recs, nil
}

func toDocument(name string, perms Permissions) (geobase.Document, error) {
	if strings.TrimSpace(name) == "" {
		return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"field":  FeatureNameField,
			"reason": "feature name is empty",
		})
	}
	if len(perms) == 0 {
		return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
			"feature": name,
			"reason":  "no permissions given",
		})
	}
	doc := make(geobase.Document, len(perms))
	for op, perm := range perms {
		if !validOperation(op) {
			return nil, geobase.WithContext(geobase.ErrValidation, map[string]interface{}{
				"feature":   name,
				"operation": op,
				"reason":    "unknown operation",
			})
		}
		if perm.UserList == nil {
			perm.UserList = []string{}
		}
		if perm.Checks == nil {
			perm.Checks = map[string]bool{}
		}
		encoded, err := entity.ToDocument(perm)
		if err != nil {
			return nil, err
		}
		doc[op] = encoded
	}
	return doc, nil
}

func fromDocument(doc geobase.Document) (Permissions, error) {
	perms := make(Permissions)
	for _, op := range []string{Create, Read, Update, Delete} {
		raw, ok := doc[op]
		if !ok {
			continue
		}
		section, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: operation %s is not an object", geobase.ErrStorage, op)
		}
		var perm Permission
		if err := entity.FromDocument(section, &perm); err != nil {
			return nil, err
		}
		perms[op] = perm
	}
	return perms, nil
}

func validOperation(op string) bool {
	switch op {
	case Create, Read, Update, Delete:
		return true
	}
	return false
}

func copyRecords(recs map[string]Permissions) map[string]Permissions {
	out := make(map[string]Permissions, len(recs))
	for name, perms := range recs {
		out[name] = copyPermissions(perms)
	}
	return out
}

func copyPermissions(perms Permissions) Permissions {
	out := make(Permissions, len(perms))
	for op, p := range perms {
		cp := Permission{UserList: append([]string(nil), p.UserList...)}
		if p.Checks != nil {
			cp.Checks = make(map[string]bool, len(p.Checks))
			for k, v := range p.Checks {
				cp.Checks[k] = v
			}
		}
		out[op] = cp
	}
	return out
}
