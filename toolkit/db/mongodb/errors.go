// toolkit/db/mongodb/errors.go
package mongodb

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes the lessons care about.
const (
	CodeNamespaceNotFound         = 26
	CodeDocumentValidationFailure = 121
	CodeDuplicateKey              = 11000
)

// IsDup reports whether err is a duplicate-key error (E11000).
// Falls back to a text check because some hosts only surface "E11000" in
// the message.
func IsDup(err error) bool {
	if err == nil {
		return false
	}
	if hasCode(err, CodeDuplicateKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "e11000") || strings.Contains(s, "duplicate key")
}

// IsValidationFailure reports whether err is a $jsonSchema rejection
// (DocumentValidationFailure, code 121).
func IsValidationFailure(err error) bool {
	return hasCode(err, CodeDocumentValidationFailure)
}

// IsNamespaceNotFound reports whether err says the collection does not
// exist. Dropping or indexing a missing collection returns it on older servers.
func IsNamespaceNotFound(err error) bool {
	return hasCode(err, CodeNamespaceNotFound)
}

// hasCode walks the write, bulk-write and command error shapes the driver
// returns and reports whether any of them carries code.
func hasCode(err error, code int) bool {
	if err == nil {
		return false
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			if we.Code == code {
				return true
			}
		}
		if bwe.WriteConcernError != nil && bwe.WriteConcernError.Code == code {
			return true
		}
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == code {
				return true
			}
		}
		if we.WriteConcernError != nil && we.WriteConcernError.Code == code {
			return true
		}
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) && int(ce.Code) == code {
		return true
	}

	return false
}
