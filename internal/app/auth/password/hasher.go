package password

import (
	"errors"
	"fmt"
	"strings"

	customErrors "github.com/Miraines/MoonyAndStarry/credential-service/internal/domain/auth/errors"
	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"

	DefaultBcryptCost       = 10
	DefaultArgon2Iterations = 2
)

// bcrypt ignores everything past 72 bytes, so longer input is rejected
// rather than silently truncated.
const maxPasswordBytes = 72

// Hasher produces salted one-way digests and checks plaintext against them.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// MultiHasher hashes with the configured algorithm and verifies any digest
// produced by a supported one, picked by the digest prefix.
type MultiHasher struct {
	algorithm   string
	bcryptCost  int
	argonParams *argon2id.Params
	pepper      string
}

// New builds a hasher. workFactor is the bcrypt cost or the argon2id
// iteration count; zero selects the default for the algorithm.
func New(algorithm string, workFactor int, pepper string) (*MultiHasher, error) {
	h := &MultiHasher{
		algorithm:  algorithm,
		bcryptCost: DefaultBcryptCost,
		argonParams: &argon2id.Params{
			Memory:      64 * 1024, // 64 MiB
			Iterations:  DefaultArgon2Iterations,
			Parallelism: 4,
			SaltLength:  16,
			KeyLength:   32,
		},
		pepper: pepper,
	}

	switch algorithm {
	case AlgorithmBcrypt:
		if workFactor != 0 {
			if workFactor < bcrypt.MinCost || workFactor > bcrypt.MaxCost {
				return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", workFactor, bcrypt.MinCost, bcrypt.MaxCost)
			}
			h.bcryptCost = workFactor
		}
	case AlgorithmArgon2id:
		if workFactor < 0 {
			return nil, fmt.Errorf("argon2id iterations must be positive, got %d", workFactor)
		}
		if workFactor != 0 {
			h.argonParams.Iterations = uint32(workFactor)
		}
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}

	return h, nil
}

func (h *MultiHasher) Hash(plaintext string) (string, error) {
	peppered := plaintext + h.pepper
	if len(peppered) > maxPasswordBytes {
		return "", customErrors.NewInvalidArgument("password too long")
	}

	switch h.algorithm {
	case AlgorithmArgon2id:
		digest, err := argon2id.CreateHash(peppered, h.argonParams)
		if err != nil {
			return "", customErrors.WrapInternal(err, "argon2id hash")
		}
		return digest, nil
	default:
		digest, err := bcrypt.GenerateFromPassword([]byte(peppered), h.bcryptCost)
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", customErrors.NewInvalidArgument("password too long")
		}
		if err != nil {
			return "", customErrors.WrapInternal(err, "bcrypt hash")
		}
		return string(digest), nil
	}
}

// Verify never reports an error: an unparseable digest simply does not match.
func (h *MultiHasher) Verify(plaintext, digest string) bool {
	peppered := plaintext + h.pepper

	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		ok, err := argon2id.ComparePasswordAndHash(peppered, digest)
		return err == nil && ok
	case strings.HasPrefix(digest, "$2a$"),
		strings.HasPrefix(digest, "$2b$"),
		strings.HasPrefix(digest, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(peppered)) == nil
	default:
		return false
	}
}
