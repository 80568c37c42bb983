package decisions

import (
	"folio/internal/fileutil"
	"folio/internal/reviewstore"
	"folio/internal/services"
)

func readChoices(path string, doc *Doc) (bool, error) {
	exists, err := fileutil.ReadJSON(path, doc)
	if err != nil {
		return exists, services.Wrap(services.ErrValidation, "choices", "read", "", err)
	}
	if !exists {
		return false, nil
	}
	if err := reviewstore.CheckSchema(doc.SchemaVersion, 2); err != nil {
		return true, services.Wrap(services.ErrSchemaVersion, "choices", "read", "", err)
	}
	return true, nil
}

func writeChoices(path string, doc *Doc) error {
	if err := fileutil.WriteJSONAtomic(path, doc); err != nil {
		return services.Wrap(services.ErrPersistence, "choices", "write", "", err)
	}
	return nil
}
