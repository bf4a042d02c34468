package utils

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseObjectID parses a client supplied id, reporting failures against field.
func ParseObjectID(field, value string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, NewValidationError(field, fmt.Sprintf("Invalid pk \"%s\" - object does not exist.", value))
	}
	return id, nil
}

// ParseObjectIDs parses a list of ids and drops duplicates, keeping the first occurrence order.
func ParseObjectIDs(field string, values []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(values))
	seen := make(map[primitive.ObjectID]struct{}, len(values))
	for _, v := range values {
		id, err := ParseObjectID(field, v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}
