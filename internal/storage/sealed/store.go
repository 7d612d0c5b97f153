package sealed

import (
	"context"
	"errors"
	"strings"

	"github.com/yndnr/kvobserve-go/pkg/kvstore"
)

// Accessibility controls when a sealed entry can be read or written.
type Accessibility uint8

const (
	// AccessibleWhenUnlocked entries need an unlocked keyring.
	AccessibleWhenUnlocked Accessibility = iota + 1
	// AccessibleAfterFirstUnlock entries stay available after Lock once the
	// keyring has been unlocked.
	AccessibleAfterFirstUnlock
)

func (a Accessibility) valid() bool {
	return a == AccessibleWhenUnlocked || a == AccessibleAfterFirstUnlock
}

// String returns the accessibility name.
func (a Accessibility) String() string {
	switch a {
	case AccessibleWhenUnlocked:
		return "when-unlocked"
	case AccessibleAfterFirstUnlock:
		return "after-first-unlock"
	default:
		return "unknown"
	}
}

// ParseAccessibility parses the names returned by Accessibility.String.
func ParseAccessibility(s string) (Accessibility, error) {
	switch s {
	case "", "when-unlocked":
		return AccessibleWhenUnlocked, nil
	case "after-first-unlock":
		return AccessibleAfterFirstUnlock, nil
	default:
		return 0, kvstore.ErrInvalidArgument.WithDetails("unknown accessibility " + s)
	}
}

const entryVersion = 1

// Store is the kvstore.Store view of one service's sealed entries. Keys are
// account names.
//
// Writes fail with kvstore.ErrLocked when the key for the store's
// accessibility class is unavailable; reads fail the same way for entries
// whose class is unavailable. Deletes never need a key.
type Store struct {
	keyring *Keyring
	service string
	access  Accessibility
}

// Service returns the store's service name.
func (s *Store) Service() string {
	return s.service
}

// Get opens the entry for account.
func (s *Store) Get(ctx context.Context, account string) ([]byte, bool, error) {
	key := s.entryKey(account)
	data, found, err := s.keyring.backend.Get(ctx, key)
	if err != nil {
		return nil, false, kvstore.IOError(account, err)
	}
	if !found {
		return nil, false, nil
	}

	if len(data) < 2 || data[0] != entryVersion || !Accessibility(data[1]).valid() {
		return nil, false, kvstore.ErrStoreIO.WithKey(account).WithCause(ErrTampered)
	}
	access := Accessibility(data[1])

	aead, err := s.keyring.aead(s.service, access)
	if err != nil {
		return nil, false, withKey(err, account)
	}
	plain, err := open(aead, data[2:], s.additionalData(account, access))
	if err != nil {
		return nil, false, kvstore.ErrStoreIO.WithKey(account).WithCause(ErrTampered)
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, true, nil
}

// Set seals value for account, replacing any existing entry.
func (s *Store) Set(ctx context.Context, account string, value []byte) error {
	aead, err := s.keyring.aead(s.service, s.access)
	if err != nil {
		return withKey(err, account)
	}

	ct, err := seal(aead, value, s.additionalData(account, s.access))
	if err != nil {
		return kvstore.ErrEncode.WithKey(account).WithCause(err)
	}
	entry := make([]byte, 0, 2+len(ct))
	entry = append(entry, entryVersion, byte(s.access))
	entry = append(entry, ct...)

	return kvstore.IOError(account, s.keyring.backend.Set(ctx, s.entryKey(account), entry))
}

// Delete removes the entry for account. Removing an absent entry succeeds.
func (s *Store) Delete(ctx context.Context, account string) error {
	return kvstore.IOError(account, s.keyring.backend.Delete(ctx, s.entryKey(account)))
}

// Keys lists account names with the given prefix. The backend must
// implement kvstore.Scanner.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	scanner, ok := s.keyring.backend.(kvstore.Scanner)
	if !ok {
		return nil, kvstore.ErrInvalidArgument.WithDetails("backend does not support key listing")
	}
	base := keyPrefix + s.service + "/"
	keys, err := scanner.Keys(ctx, base+prefix)
	if err != nil {
		return nil, kvstore.IOError(prefix, err)
	}
	accounts := make([]string, 0, len(keys))
	for _, k := range keys {
		accounts = append(accounts, strings.TrimPrefix(k, base))
	}
	return accounts, nil
}

func (s *Store) entryKey(account string) string {
	return keyPrefix + s.service + "/" + account
}

func (s *Store) additionalData(account string, access Accessibility) []byte {
	ad := make([]byte, 0, len(keyPrefix)+len(s.service)+len(account)+3)
	ad = append(ad, keyPrefix...)
	ad = append(ad, s.service...)
	ad = append(ad, 0)
	ad = append(ad, account...)
	ad = append(ad, 0, byte(access))
	return ad
}

func withKey(err error, key string) error {
	var kvErr *kvstore.Error
	if errors.As(err, &kvErr) {
		return kvErr.WithKey(key)
	}
	return kvstore.ErrStoreIO.WithKey(key).WithCause(err)
}
