package service

import (
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ReferenceNumberLength is the length of settlement reference numbers.
const ReferenceNumberLength = 10

// NewReferenceNumber returns a random lowercase alphanumeric reference for a
// bill settlement. The bills table enforces uniqueness.
func NewReferenceNumber() string {
	id := uuid.New()
	s := new(big.Int).SetBytes(id[:]).Text(36)
	if len(s) < ReferenceNumberLength {
		s = strings.Repeat("0", ReferenceNumberLength-len(s)) + s
	}
	return s[len(s)-ReferenceNumberLength:]
}
