package sink

import (
	"fmt"
	"regexp"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// maxIdentifier is the shortest identifier limit among supported databases
// (MySQL allows 64, Postgres 63).
const maxIdentifier = 63

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IdentifierError reports a schema, prefix, table or column name that
// cannot be used as a SQL identifier.
type IdentifierError struct {
	Field       string
	Value       string
	Fingerprint string
}

func (e *IdentifierError) Error() string {
	if e.Fingerprint != "" {
		return fmt.Sprintf("%s %q looks like SQL injection (fingerprint %s)", e.Field, e.Value, e.Fingerprint)
	}
	return fmt.Sprintf("%s %q is not a plain SQL identifier", e.Field, e.Value)
}

func (e *IdentifierError) Unwrap() error { return apperrors.ErrUnsafeIdentifier }

// CheckConfig rejects schema and table prefix values that are not plain
// identifiers or that libinjection flags.
func CheckConfig(cfg config.SinkConfig) error {
	for _, f := range []struct{ field, value string }{
		{"schema", cfg.Schema},
		{"table_prefix", cfg.TablePrefix},
	} {
		if f.value == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(f.value); isSQLi {
			return &IdentifierError{Field: f.field, Value: f.value, Fingerprint: string(fingerprint)}
		}
		if !identifierPattern.MatchString(f.value) {
			return &IdentifierError{Field: f.field, Value: f.value}
		}
	}
	return nil
}

// CheckTable verifies the prefixed table name and every column name.
func CheckTable(prefix string, t *models.Table) error {
	name := prefix + t.Name
	if len(name) > maxIdentifier || !identifierPattern.MatchString(name) {
		return &IdentifierError{Field: "table", Value: name}
	}
	for _, col := range t.Columns {
		if len(col.Name) > maxIdentifier || !identifierPattern.MatchString(col.Name) {
			return &IdentifierError{Field: "column", Value: col.Name}
		}
	}
	return nil
}
