package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

var errMalformedHash = errors.New("malformed password hash")

// PasswordHasher hashes passwords one way and verifies candidates against
// stored hashes. Stored hashes are self-describing (PHC style prefix), so
// hashes made by an older algorithm keep verifying after an upgrade.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(ctx context.Context, password, encoded string) bool
	NeedsRehash(encoded string) bool
	// Dummy returns a valid hash that no real password is expected to match.
	Dummy() string
}

// Argon2Params are the argon2id cost parameters.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2Params mirrors the cost used for master key derivation:
// one pass over 64 MiB with four lanes.
var DefaultArgon2Params = Argon2Params{Time: 1, MemoryKiB: 64 * 1024, Threads: 4, SaltLen: 16, KeyLen: 32}

// Argon2Hasher produces argon2id hashes encoded as
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// with unpadded standard base64 salt and key. It also verifies bcrypt
// hashes ($2a$, $2b$, $2y$) so accounts created before the switch to
// argon2id can still log in and be rehashed.
type Argon2Hasher struct {
	params Argon2Params
	logger logging.Logger
	dummy  string
}

func NewArgon2Hasher(params Argon2Params, logger logging.Logger) (*Argon2Hasher, error) {
	if params.SaltLen == 0 {
		params.SaltLen = DefaultArgon2Params.SaltLen
	}
	if params.KeyLen == 0 {
		params.KeyLen = DefaultArgon2Params.KeyLen
	}
	if params.Time == 0 || params.Threads == 0 || params.MemoryKiB < 8*uint32(params.Threads) {
		return nil, fmt.Errorf("invalid argon2 parameters: %+v", params)
	}
	h := &Argon2Hasher{params: params, logger: logger.With("module", "password_hasher")}

	dummy, err := h.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	h.dummy = dummy
	return h, nil
}

// Dummy returns a valid hash of a fixed password. Verifying against it costs
// the same as a real verification, which hides whether a username exists.
func (h *Argon2Hasher) Dummy() string {
	return h.dummy
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt, err := common.GenerateRandByteArray(int(h.params.SaltLen))
	if err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version,
		h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A malformed or unknown
// hash never matches; the anomaly is logged without the hash itself.
func (h *Argon2Hasher) Verify(ctx context.Context, password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, argon2idPrefix):
		params, salt, key, err := decodeArgon2id(encoded)
		if err != nil {
			h.logger.Warn(ctx, "stored password hash is malformed", "scheme", "argon2id", "error", err)
			return false
		}
		candidate := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Threads, uint32(len(key)))
		return subtle.ConstantTimeCompare(key, candidate) == 1

	case isBcrypt(encoded):
		err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
		if err == nil {
			return true
		}
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			h.logger.Warn(ctx, "stored password hash is malformed", "scheme", "bcrypt", "error", err)
		}
		return false

	default:
		h.logger.Warn(ctx, "stored password hash has unknown scheme")
		return false
	}
}

// NeedsRehash is true for hashes from another scheme or with cost
// parameters different from the configured ones.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	if !strings.HasPrefix(encoded, argon2idPrefix) {
		return true
	}
	params, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return true
	}
	return params.Time != h.params.Time ||
		params.MemoryKiB != h.params.MemoryKiB ||
		params.Threads != h.params.Threads ||
		uint32(len(salt)) != h.params.SaltLen ||
		uint32(len(key)) != h.params.KeyLen
}

func isBcrypt(encoded string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(encoded, p) {
			return true
		}
	}
	return false
}

func decodeArgon2id(encoded string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return p, nil, nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: version: %v", errMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported version %d", errMalformedHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("%w: parameters: %v", errMalformedHash, err)
	}
	if p.Time == 0 || p.Threads == 0 || p.MemoryKiB == 0 {
		return p, nil, nil, fmt.Errorf("%w: zero parameter", errMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: salt: %v", errMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, fmt.Errorf("%w: key", errMalformedHash)
	}

	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}
