package room

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"canvaslab/internal/protocol"
)

// ErrWrongPassword rejects a join whose password matches neither hash.
var ErrWrongPassword = errors.New("invalid room password")

// HashPassword bcrypt-hashes a plaintext password. An empty password
// hashes to the empty string, which means "slot unset".
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// authorize maps a supplied password to a role given the room's hashes:
//
//   - both unset: everyone is admin, password ignored
//   - admin only: match or reject
//   - readonly only: match gives readonly, an empty password still gives
//     admin (kept for rooms created before admin passwords existed)
//   - both set: admin match wins, then readonly match, else reject
func authorize(adminHash, readonlyHash, password string) (protocol.Role, error) {
	switch {
	case adminHash == "" && readonlyHash == "":
		return protocol.RoleAdmin, nil
	case readonlyHash == "":
		if CheckPassword(adminHash, password) {
			return protocol.RoleAdmin, nil
		}
		return "", ErrWrongPassword
	case adminHash == "":
		if CheckPassword(readonlyHash, password) {
			return protocol.RoleReadonly, nil
		}
		if password == "" {
			return protocol.RoleAdmin, nil
		}
		return "", ErrWrongPassword
	default:
		if CheckPassword(adminHash, password) {
			return protocol.RoleAdmin, nil
		}
		if CheckPassword(readonlyHash, password) {
			return protocol.RoleReadonly, nil
		}
		return "", ErrWrongPassword
	}
}
