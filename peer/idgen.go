package peer

import "github.com/google/uuid"

// newUUIDConnectionID allocates a fresh connection id
// step 5 ("allocate a fresh UUID connection_id").
func newUUIDConnectionID() string {
	return uuid.New().String()
}
