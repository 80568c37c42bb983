package reviewstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"folio/internal/fileutil"
	"folio/internal/services"
)

// SchemaVersion is written to every cascade document.
const SchemaVersion = "2.0"

// CheckSchema rejects versions whose major component is not supported. An
// empty version is accepted as the current one.
func CheckSchema(version string, supportedMajors ...int) error {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil
	}
	head, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return fmt.Errorf("%w: %q", services.ErrSchemaVersion, version)
	}
	for _, candidate := range supportedMajors {
		if candidate == major {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", services.ErrSchemaVersion, version)
}

type versioned interface {
	schemaVersion() string
}

// readDoc decodes a cascade document and checks its schema version. It
// reports whether the document existed.
func readDoc(path, what string, doc versioned) (bool, error) {
	exists, err := fileutil.ReadJSON(path, doc)
	if err != nil {
		return exists, services.Wrap(services.ErrValidation, what, "read", "", err)
	}
	if !exists {
		return false, nil
	}
	if err := CheckSchema(doc.schemaVersion(), 2); err != nil {
		return true, services.Wrap(services.ErrSchemaVersion, what, "read", "", err)
	}
	return true, nil
}

func writeDoc(path, what string, doc any) error {
	if err := fileutil.WriteJSONAtomic(path, doc); err != nil {
		return services.Wrap(services.ErrPersistence, what, "write", "", err)
	}
	return nil
}

// Timestamp formats t the way every document stores times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
