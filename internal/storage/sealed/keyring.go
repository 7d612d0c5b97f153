// Package sealed stores secrets encrypted at rest inside any kvstore.Store.
//
// A Keyring derives a master key from a passphrase with Argon2id and a salt
// persisted in the backend. Each service gets its own HKDF subkey, and every
// entry is sealed with an AEAD whose associated data binds it to its service,
// account and accessibility class, so ciphertext cannot be moved between
// entries.
//
// Entries are addressed as sealed/<service>/<account> in the backend.
package sealed

import (
	"context"
	"crypto/cipher"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

const (
	keyPrefix    = "sealed/"
	metaKey      = keyPrefix + ".meta"
	metaVersion  = 1
	verifyPlain  = "kvobserve-sealed-v1"
	infoVerify   = "kvobserve sealed verify"
	infoUnlocked = "kvobserve sealed when-unlocked"
	infoAfter    = "kvobserve sealed after-first-unlock"
)

// Errors returned by the keyring.
var (
	ErrWrongPassphrase = errors.New("sealed: wrong passphrase")
	ErrEmptyPassphrase = errors.New("sealed: empty passphrase")
	ErrInvalidService  = errors.New("sealed: invalid service name")
	ErrTampered        = errors.New("sealed: entry failed authentication")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// metadata is persisted at sealed/.meta on first unlock.
type metadata struct {
	Version   int       `json:"version"`
	Algorithm Algorithm `json:"algorithm"`
	Salt      []byte    `json:"salt"`
	KDF       KDFParams `json:"kdf"`
	Verify    []byte    `json:"verify"`
}

// Keyring holds the keys protecting sealed entries.
//
// A new keyring is locked. Unlock derives the keys; Lock wipes the keys of
// AccessibleWhenUnlocked entries while AccessibleAfterFirstUnlock entries
// stay readable until the keyring is dropped.
type Keyring struct {
	backend kvstore.Store
	params  KDFParams
	algo    Algorithm
	logger  *slog.Logger

	mu        sync.RWMutex
	algorithm Algorithm
	unlocked  []byte // root for AccessibleWhenUnlocked; nil while locked
	afterOnce []byte // root for AccessibleAfterFirstUnlock; nil until first unlock
}

// Option configures a Keyring.
type Option func(*Keyring)

// WithKDFParams sets the Argon2id parameters used when the keyring is
// initialized. Existing keyrings keep the parameters they were created with.
func WithKDFParams(p KDFParams) Option {
	return func(k *Keyring) {
		k.params = p
	}
}

// WithAlgorithm sets the AEAD used when the keyring is initialized.
func WithAlgorithm(a Algorithm) Option {
	return func(k *Keyring) {
		k.algo = a
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keyring) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// NewKeyring returns a locked keyring over backend.
func NewKeyring(backend kvstore.Store, opts ...Option) *Keyring {
	k := &Keyring{
		backend: backend,
		params:  DefaultKDFParams(),
		algo:    preferredAlgorithm(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Unlock derives the keyring keys from passphrase. The first unlock of an
// empty backend initializes it with a fresh salt; later unlocks must use the
// same passphrase.
func (k *Keyring) Unlock(ctx context.Context, passphrase []byte) error {
	if len(passphrase) == 0 {
		return ErrEmptyPassphrase
	}

	meta, err := k.loadMeta(ctx)
	if err != nil {
		return err
	}
	if meta == nil {
		meta, err = k.initMeta(ctx, passphrase)
		if err != nil {
			return err
		}
	}

	master := meta.KDF.deriveMaster(passphrase, meta.Salt)
	defer clear(master)

	if err := verify(meta, master); err != nil {
		k.logger.Warn("keyring unlock rejected")
		return err
	}

	unlocked, err := deriveSubkey(master, infoUnlocked)
	if err != nil {
		return err
	}
	after, err := deriveSubkey(master, infoAfter)
	if err != nil {
		clear(unlocked)
		return err
	}

	k.mu.Lock()
	clear(k.unlocked)
	clear(k.afterOnce)
	k.algorithm = meta.Algorithm
	k.unlocked = unlocked
	k.afterOnce = after
	k.mu.Unlock()

	k.logger.Info("keyring unlocked", "algorithm", string(meta.Algorithm))
	return nil
}

// Lock wipes the keys of AccessibleWhenUnlocked entries.
func (k *Keyring) Lock() {
	k.mu.Lock()
	clear(k.unlocked)
	k.unlocked = nil
	k.mu.Unlock()

	k.logger.Info("keyring locked")
}

// Locked reports whether AccessibleWhenUnlocked entries are unavailable.
func (k *Keyring) Locked() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.unlocked == nil
}

// Store returns the sealed store for service. New entries are written with
// the given accessibility.
func (k *Keyring) Store(service string, access Accessibility) (*Store, error) {
	if service == "" || strings.Contains(service, "/") || strings.HasPrefix(service, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidService, service)
	}
	if !access.valid() {
		return nil, fmt.Errorf("sealed: unknown accessibility %d", access)
	}
	return &Store{keyring: k, service: service, access: access}, nil
}

// aead returns the cipher for service entries of class access, or
// kvstore.ErrLocked when its root key is unavailable.
func (k *Keyring) aead(service string, access Accessibility) (cipher.AEAD, error) {
	k.mu.RLock()
	root := k.unlocked
	if access == AccessibleAfterFirstUnlock {
		root = k.afterOnce
	}
	if root == nil {
		k.mu.RUnlock()
		return nil, kvstore.ErrLocked
	}
	key, err := deriveSubkey(root, "service "+service)
	algo := k.algorithm
	k.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	defer clear(key)

	return newAEAD(algo, key)
}

func (k *Keyring) loadMeta(ctx context.Context) (*metadata, error) {
	data, found, err := k.backend.Get(ctx, metaKey)
	if err != nil {
		return nil, kvstore.IOError(metaKey, err)
	}
	if !found {
		return nil, nil
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, kvstore.ErrDecode.WithKey(metaKey).WithCause(err)
	}
	if meta.Version != metaVersion {
		return nil, kvstore.ErrDecode.WithKey(metaKey).
			WithDetails(fmt.Sprintf("unsupported keyring version %d", meta.Version))
	}
	return &meta, nil
}

func (k *Keyring) initMeta(ctx context.Context, passphrase []byte) (*metadata, error) {
	salt, err := newSalt()
	if err != nil {
		return nil, err
	}
	meta := &metadata{
		Version:   metaVersion,
		Algorithm: k.algo,
		Salt:      salt,
		KDF:       k.params,
	}

	master := meta.KDF.deriveMaster(passphrase, salt)
	defer clear(master)

	vk, err := deriveSubkey(master, infoVerify)
	if err != nil {
		return nil, err
	}
	defer clear(vk)
	aead, err := newAEAD(meta.Algorithm, vk)
	if err != nil {
		return nil, err
	}
	meta.Verify, err = seal(aead, []byte(verifyPlain), []byte(metaKey))
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return nil, kvstore.ErrEncode.WithKey(metaKey).WithCause(err)
	}
	if err := k.backend.Set(ctx, metaKey, data); err != nil {
		return nil, kvstore.IOError(metaKey, err)
	}

	k.logger.Info("keyring initialized",
		"algorithm", string(meta.Algorithm),
		"kdf_time", meta.KDF.Time,
		"kdf_memory_kib", meta.KDF.MemoryKiB)
	return meta, nil
}

func verify(meta *metadata, master []byte) error {
	vk, err := deriveSubkey(master, infoVerify)
	if err != nil {
		return err
	}
	defer clear(vk)

	aead, err := newAEAD(meta.Algorithm, vk)
	if err != nil {
		return err
	}
	plain, err := open(aead, meta.Verify, []byte(metaKey))
	if err != nil || string(plain) != verifyPlain {
		return ErrWrongPassphrase
	}
	return nil
}
