// Package values contains domain value objects that encapsulate
// primitive types with validation and such.
package values

import (
	"fmt"

	"github.com/google/uuid"
)

// CorrelationID links an issued grant request to its eventual asynchronous
// result. One ID is assigned per outstanding request and is never reused.
type CorrelationID struct {
	value uuid.UUID
}

// NewCorrelationID creates a new random correlation ID
func NewCorrelationID() CorrelationID {
	return CorrelationID{value: uuid.New()}
}

// ParseCorrelationID parses a string into a CorrelationID
func ParseCorrelationID(s string) (CorrelationID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return CorrelationID{}, fmt.Errorf("invalid correlation ID: %w", err)
	}
	return CorrelationID{value: id}, nil
}

// MustParseCorrelationID parses a string or panics (for tests only)
func MustParseCorrelationID(s string) CorrelationID {
	id, err := ParseCorrelationID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation
func (c CorrelationID) String() string {
	return c.value.String()
}

// IsZero returns true if this is the zero value
func (c CorrelationID) IsZero() bool {
	return c.value == uuid.Nil
}

// Equals checks if two CorrelationIDs are equal
func (c CorrelationID) Equals(other CorrelationID) bool {
	return c.value == other.value
}

// MarshalJSON implements json.Marshaler
func (c CorrelationID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.value.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *CorrelationID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 {
		return fmt.Errorf("invalid correlation ID JSON")
	}
	s = s[1 : len(s)-1]

	id, err := ParseCorrelationID(s)
	if err != nil {
		return err
	}
	*c = id
	return nil
}
