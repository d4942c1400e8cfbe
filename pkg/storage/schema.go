package storage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/orneryd/tierdb/pkg/index"
	"github.com/orneryd/tierdb/pkg/models"
)

// ErrConstraintViolation is matched by errors from a node write that breaks
// a schema constraint.
var ErrConstraintViolation = errors.New("storage: constraint violation")

// ConstraintType is the kind of a node constraint.
type ConstraintType string

const (
	// ConstraintExists requires the property to be set.
	ConstraintExists ConstraintType = "EXISTS"
	// ConstraintUnique forbids two nodes of the kind sharing a value. It is
	// only enforced by managers with indexing.
	ConstraintUnique ConstraintType = "UNIQUE"
)

// Constraint restricts one indexed property of one node kind.
//
// Only properties a variant reports through IndexedFields can be
// constrained; everything else, Metadata included, is free-form.
type Constraint struct {
	Name     string
	Type     ConstraintType
	Kind     models.NodeKind
	Property string
}

func (c Constraint) validate() error {
	switch {
	case c.Name == "":
		return errors.New("constraint name required")
	case c.Type != ConstraintExists && c.Type != ConstraintUnique:
		return fmt.Errorf("constraint %s: unknown type %q", c.Name, c.Type)
	case c.Kind == "":
		return fmt.Errorf("constraint %s: node kind required", c.Name)
	case c.Property == "" || c.Property == models.PropNodeType:
		return fmt.Errorf("constraint %s: invalid property %q", c.Name, c.Property)
	}
	return nil
}

// ConstraintError describes a rejected node write.
type ConstraintError struct {
	Constraint Constraint
	NodeID     models.NodeID
	// Conflict is the node already holding the value, for unique
	// constraints.
	Conflict models.NodeID
}

func (e *ConstraintError) Error() string {
	c := e.Constraint
	if c.Type == ConstraintUnique {
		return fmt.Sprintf("constraint %s: %s %s.%s already used by %s", c.Name, c.Kind, e.NodeID, c.Property, e.Conflict)
	}
	return fmt.Sprintf("constraint %s: %s %s requires %s", c.Name, c.Kind, e.NodeID, c.Property)
}

func (e *ConstraintError) Is(target error) bool { return target == ErrConstraintViolation }

// Schema holds the node constraints a StorageManager checks on insert.
// One Schema may be shared by many managers.
//
// Example:
//
//	schema := storage.NewSchema()
//	err := schema.AddConstraint(storage.Constraint{
//		Name:     "page_url_unique",
//		Type:     storage.ConstraintUnique,
//		Kind:     models.KindScrapedPage,
//		Property: "url",
//	})
//
// Thread Safety:
//
//	Schema is safe for concurrent use.
type Schema struct {
	mu          sync.RWMutex
	constraints map[string]Constraint
	byKind      map[models.NodeKind][]Constraint
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		constraints: make(map[string]Constraint),
		byKind:      make(map[models.NodeKind][]Constraint),
	}
}

// DefaultSchema requires the parent reference of every child record: a
// message or summary names its chat, an attachment its message, and a
// scraped page its URL.
func DefaultSchema() *Schema {
	s := NewSchema()
	for _, c := range []Constraint{
		{Name: "message_chat", Type: ConstraintExists, Kind: models.KindMessage, Property: "chat_id"},
		{Name: "summary_chat", Type: ConstraintExists, Kind: models.KindSummary, Property: "chat_id"},
		{Name: "attachment_message", Type: ConstraintExists, Kind: models.KindAttachment, Property: "message_id"},
		{Name: "scraped_page_url", Type: ConstraintExists, Kind: models.KindScrapedPage, Property: "url"},
	} {
		if err := s.AddConstraint(c); err != nil {
			panic(err)
		}
	}
	return s
}

// AddConstraint registers c. Names are unique within a schema.
func (s *Schema) AddConstraint(c Constraint) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.constraints[c.Name]; dup {
		return fmt.Errorf("constraint %s already exists", c.Name)
	}
	s.constraints[c.Name] = c
	s.byKind[c.Kind] = append(s.byKind[c.Kind], c)
	return nil
}

// DropConstraint removes the constraint called name and reports whether it
// existed.
func (s *Schema) DropConstraint(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.constraints[name]
	if !ok {
		return false
	}
	delete(s.constraints, name)
	s.byKind[c.Kind] = slices.DeleteFunc(s.byKind[c.Kind], func(o Constraint) bool { return o.Name == name })
	return true
}

// Constraints returns every constraint ordered by name.
func (s *Schema) Constraints() []Constraint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Constraint, 0, len(s.constraints))
	for _, c := range s.constraints {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Constraint) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Schema) forKind(kind models.NodeKind) []Constraint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byKind[kind])
}

// ValidateNode checks n against the existence constraints of its kind.
func (s *Schema) ValidateNode(n models.Node) error {
	return s.validateTxn(nil, nil, n)
}

// validateTxn checks n inside the write transaction that stores it. Unique
// constraints read the structural index through txn and are skipped when
// indexes is nil. Store updates are serialized, so no other write can claim
// the value between the check and the commit.
func (s *Schema) validateTxn(txn *badger.Txn, indexes *index.Manager, n models.Node) error {
	constraints := s.forKind(n.Kind())
	if len(constraints) == 0 {
		return nil
	}
	values := make(map[string]string, len(constraints))
	for _, f := range n.IndexedFields() {
		values[f.Property] = f.Value
	}
	for _, c := range constraints {
		value, ok := values[c.Property]
		switch c.Type {
		case ConstraintExists:
			if !ok {
				return &ConstraintError{Constraint: c, NodeID: n.ID()}
			}
		case ConstraintUnique:
			if !ok || txn == nil || indexes == nil {
				continue
			}
			holders, err := indexes.NodesByPropertyTxn(txn, c.Property, value)
			if err != nil {
				return err
			}
			if len(holders) == 0 {
				continue
			}
			// Property keys are shared by every kind indexing the name.
			sameKind, err := indexes.NodesByPropertyTxn(txn, models.PropNodeType, string(c.Kind))
			if err != nil {
				return err
			}
			for _, id := range holders {
				if models.NodeID(id) != n.ID() && slices.Contains(sameKind, id) {
					return &ConstraintError{Constraint: c, NodeID: n.ID(), Conflict: models.NodeID(id)}
				}
			}
		}
	}
	return nil
}
