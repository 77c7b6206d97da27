package assembler

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// KeySet records the primary keys a parent table has materialized.
type KeySet struct {
	table string
	keys  map[string]struct{}
}

func NewKeySet(table string) *KeySet {
	return &KeySet{table: table, keys: make(map[string]struct{})}
}

// Add registers key. Adding the same key twice is a defect and panics.
func (k *KeySet) Add(key string) {
	if _, dup := k.keys[key]; dup {
		panic(fmt.Sprintf("%s: duplicate key %q", k.table, key))
	}
	k.keys[key] = struct{}{}
}

func (k *KeySet) Has(key string) bool {
	_, ok := k.keys[key]
	return ok
}

func (k *KeySet) Len() int { return len(k.keys) }

// MustResolve panics with a ReferentialError when key was never added.
func (k *KeySet) MustResolve(child, key string) {
	if !k.Has(key) {
		panic(&apperrors.ReferentialError{Child: child, Parent: k.table, Key: key})
	}
}

// CheckReferences verifies that every non-null value of child.fk matches a
// parent.pk value. It returns the first dangling reference found.
func CheckReferences(child *models.Table, fk string, parent *models.Table, pk string) error {
	parents := make(map[string]struct{}, parent.Len())
	for _, v := range parent.Values(pk) {
		parents[fmt.Sprint(v)] = struct{}{}
	}
	for _, v := range child.Values(fk) {
		if v == nil {
			continue
		}
		key := fmt.Sprint(v)
		if _, ok := parents[key]; !ok {
			return &apperrors.ReferentialError{Child: child.Name, Parent: parent.Name, Key: key}
		}
	}
	return nil
}
