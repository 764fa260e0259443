package repository

import (
	"errors"

	"github.com/lib/pq"
)

// ErrAlreadyClaimed means another worker already holds the run claim.
var ErrAlreadyClaimed = errors.New("automation run already claimed")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
