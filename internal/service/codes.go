package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"unicode"
)

const (
	backupCodeCount  = 8
	backupCodeDigits = 8
)

// generateOTP devuelve el codigo de 6 digitos y su hash salado "salt:hash".
func generateOTP() (string, string, error) {
	code, err := randomDigits(6)
	if err != nil {
		return "", "", err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", "", err
	}
	saltStr := base64.StdEncoding.EncodeToString(salt)
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])

	return code, saltStr + ":" + hash, nil
}

func verifyOTP(code, stored string) bool {
	if !isValidOTPCode(code) {
		return false
	}
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return false
	}
	saltStr := parts[0]
	expectedHash := parts[1]
	hashBytes := sha256.Sum256([]byte(saltStr + ":" + code))
	hash := base64.StdEncoding.EncodeToString(hashBytes[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(expectedHash)) == 1
}

func isValidOTPCode(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func randomDigits(n int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", n, v.Int64()), nil
}

// newOpaqueToken devuelve el token en claro (para el correo) y su digest
// (para la base de datos).
func newOpaqueToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := hex.EncodeToString(raw)
	return token, digestToken(token), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// generateBackupCodes devuelve codigos unicos en claro y sus digests.
func generateBackupCodes() ([]string, []string, error) {
	seen := make(map[string]struct{}, backupCodeCount)
	codes := make([]string, 0, backupCodeCount)
	digests := make([]string, 0, backupCodeCount)
	for len(codes) < backupCodeCount {
		code, err := randomDigits(backupCodeDigits)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		digests = append(digests, digestToken(code))
	}
	return codes, digests, nil
}

// matchBackupCode devuelve el indice del digest que corresponde a code, o -1.
func matchBackupCode(digests []string, code string) int {
	code = strings.TrimSpace(code)
	if len(code) != backupCodeDigits {
		return -1
	}
	candidate := []byte(digestToken(code))
	found := -1
	for i, d := range digests {
		if subtle.ConstantTimeCompare(candidate, []byte(d)) == 1 {
			found = i
		}
	}
	return found
}
