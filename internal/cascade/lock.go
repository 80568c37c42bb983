package cascade

import (
	"github.com/gofrs/flock"

	"folio/internal/services"
)

// lockBook takes the exclusive writer lock of a book. The returned function
// releases it.
func (e *Engine) lockBook(book string) (func(), error) {
	if err := e.reviews.EnsureReviewsDir(book); err != nil {
		return nil, err
	}
	path := e.reviews.LockPath(book)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "cascade", "lock", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrLocked, "cascade", "lock", "another folio process is reviewing "+book, nil)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			e.logger.Warn("failed to release book lock", "lock", path, "error", err)
		}
	}, nil
}
