package manager

import "errors"

// errUnchanged lets a mutation report that there is nothing to persist.
var errUnchanged = errors.New("unchanged")

// commit runs mutate on a copy of *ref and persists the result. *ref is
// replaced only after persist succeeds, so a failed write leaves it exactly
// as it was.
func commit[T any](ref *[]T, mutate func(work []T) ([]T, error), persist func([]T) error) error {
	work := make([]T, len(*ref))
	copy(work, *ref)
	work, err := mutate(work)
	if err != nil {
		return err
	}
	if err := persist(work); err != nil {
		return err
	}
	*ref = work
	return nil
}
