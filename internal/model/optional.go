package model

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// OptionalUUID tells "absent" apart from an explicit JSON null in partial updates.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func SetUUID(id uuid.UUID) OptionalUUID {
	return OptionalUUID{Set: true, Value: &id}
}

func ClearUUID() OptionalUUID {
	return OptionalUUID{Set: true}
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (o OptionalUUID) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsZero reports an absent value, so `omitzero` leaves the field out of a patch.
func (o OptionalUUID) IsZero() bool {
	return !o.Set
}
