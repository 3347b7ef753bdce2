package repo

import "github.com/google/uuid"

// isJobID reports whether id can be bound to a uuid column. Anything else
// would fail in Postgres with invalid_text_representation.
func isJobID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
