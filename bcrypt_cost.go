//go:build !race

package auth

import "golang.org/x/crypto/bcrypt"

func defaultCodeHashCost() int {
	return bcrypt.DefaultCost
}
