package register

import (
	"math/rand/v2"
	"strings"
)

// GenerateEmployeeNo returns a random 10-digit identifier for a new user
// record. Terminals key everything on this number, so the backend may
// override it with its own deviceStudentId during provisioning.
func GenerateEmployeeNo() string {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteByte('0' + byte(rand.IntN(10)))
	}
	return b.String()
}

// isNumeric reports whether s is a non-empty run of ASCII digits.
func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
