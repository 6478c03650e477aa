//go:build race

package auth

import "golang.org/x/crypto/bcrypt"

func defaultCodeHashCost() int {
	// race builds are slow enough that the default cost times out concurrent verification tests
	return bcrypt.MinCost
}
