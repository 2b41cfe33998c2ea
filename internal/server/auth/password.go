package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	HashAlgorithmArgon2id = "argon2id"
	HashAlgorithmBcrypt   = "bcrypt"
)

var (
	ErrUnsupportedHash = errors.New("unsupported password hash format")
	// ErrPasswordTooLong is returned by Hash when the algorithm cannot take
	// the whole password.
	ErrPasswordTooLong = errors.New("password too long for hash algorithm")
)

// MaxBcryptPasswordBytes is the most bcrypt reads of a password.
const MaxBcryptPasswordBytes = 72

// PasswordHasher hashes passwords with a slow salted one-way function. The salt
// and cost parameters travel inside the encoded hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is (false, nil);
	// an error means the hash itself could not be used.
	Verify(password, hash string) (bool, error)
}

var (
	_ PasswordHasher = (*Argon2Hasher)(nil)
	_ PasswordHasher = (*BcryptHasher)(nil)
	_ PasswordHasher = (*MultiHasher)(nil)
)

// Argon2Hasher produces PHC-formatted argon2id hashes:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
type Argon2Hasher struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func NewArgon2Hasher(iterations, memoryKiB uint32) *Argon2Hasher {
	return &Argon2Hasher{
		Memory:      memoryKiB,
		Iterations:  iterations,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (a *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, a.Iterations, a.Memory, a.Parallelism, a.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		a.Memory,
		a.Iterations,
		a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (a *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	params, salt, key, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)

	return subtle.ConstantTimeCompare(key, computed) == 1, nil
}

func decodeArgon2(encoded string) (*Argon2Hasher, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, nil, ErrUnsupportedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}

	params := &Argon2Hasher{}
	var p uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &p); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if p == 0 || p > 255 {
		return nil, nil, nil, fmt.Errorf("invalid parallelism %d", p)
	}
	params.Parallelism = uint8(p)

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid salt encoding: %w", err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid key encoding: %w", err)
	}
	if params.Iterations == 0 {
		return nil, nil, nil, errors.New("invalid parameters: zero iterations")
	}
	if len(salt) == 0 || len(key) == 0 {
		return nil, nil, nil, errors.New("invalid hash: empty salt or key")
	}
	params.KeyLength = uint32(len(key))

	return params, salt, key, nil
}

type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{Cost: cost}
}

func (b *BcryptHasher) Hash(password string) (string, error) {
	if len(password) > MaxBcryptPasswordBytes {
		return "", fmt.Errorf("bcrypt: %w: %d bytes, limit %d", ErrPasswordTooLong, len(password), MaxBcryptPasswordBytes)
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func (b *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: %w", err)
	}
}

// MultiHasher hashes with the configured algorithm and verifies any hash it
// recognises, so stored hashes survive a change of algorithm.
type MultiHasher struct {
	primary PasswordHasher
	argon2  *Argon2Hasher
	bcrypt  *BcryptHasher
}

// NewPasswordHasher builds a MultiHasher whose Hash uses algorithm.
func NewPasswordHasher(algorithm string, bcryptCost int, argon2Iterations, argon2MemoryKiB uint32) (*MultiHasher, error) {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d outside [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if argon2Iterations == 0 || argon2MemoryKiB == 0 {
		return nil, errors.New("argon2 iterations and memory must be positive")
	}

	m := &MultiHasher{
		argon2: NewArgon2Hasher(argon2Iterations, argon2MemoryKiB),
		bcrypt: NewBcryptHasher(bcryptCost),
	}

	switch algorithm {
	case HashAlgorithmArgon2id:
		m.primary = m.argon2
	case HashAlgorithmBcrypt:
		m.primary = m.bcrypt
	default:
		return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
	}
	return m, nil
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.primary.Hash(password)
}

func (m *MultiHasher) Verify(password, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "$argon2id$"):
		return m.argon2.Verify(password, hash)
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return m.bcrypt.Verify(password, hash)
	default:
		return false, ErrUnsupportedHash
	}
}
