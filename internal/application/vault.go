package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ericfisherdev/calsync/internal/domain/model"
	"github.com/ericfisherdev/calsync/internal/domain/port/driven"
)

// credentialKeyPrefix prefixes the account id in credential store keys.
const credentialKeyPrefix = "token."

// CredentialKey returns the store key for an account's credential.
func CredentialKey(accountID string) string {
	return credentialKeyPrefix + accountID
}

// CredentialVault is a read-through, write-through cache over a
// CredentialStore. Concurrent misses for one key share a single store read.
// A read that races with a write or delete never repopulates the cache with
// the value it read, so the cache cannot go stale behind the vault's own
// writes. Every read compares the store generation with the one the cache
// was built at and drops the cache when another process has written.
type CredentialVault struct {
	store driven.CredentialStore

	mu         sync.Mutex
	cache      map[string][]byte
	versions   map[string]uint64
	epoch      uint64
	generation int64
	synced     bool
	loads      singleflight.Group
}

// NewCredentialVault wraps store with an in-memory cache.
func NewCredentialVault(store driven.CredentialStore) *CredentialVault {
	return &CredentialVault{
		store:    store,
		cache:    make(map[string][]byte),
		versions: make(map[string]uint64),
	}
}

// Get returns the bytes stored under key, or nil if there are none.
func (v *CredentialVault) Get(ctx context.Context, key string) ([]byte, error) {
	gen, err := v.store.Generation(ctx)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	// Generations only grow; a lower reading raced a newer one and is ignored.
	if !v.synced || gen > v.generation {
		v.clearLocked()
		v.generation = gen
		v.synced = true
	}
	if cached, ok := v.cache[key]; ok {
		v.mu.Unlock()
		return cloneBytes(cached), nil
	}
	version, epoch := v.versions[key], v.epoch
	v.mu.Unlock()

	// Loads are shared per key, version and epoch, so a read issued after a
	// write or a cache reset never joins a load that started before it.
	res, err, _ := v.loads.Do(fmt.Sprintf("%s#%d#%d", key, version, epoch), func() (any, error) {
		return v.store.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	value, _ := res.([]byte)

	v.mu.Lock()
	if v.versions[key] == version && v.epoch == epoch {
		v.cache[key] = cloneBytes(value)
	}
	v.mu.Unlock()

	return cloneBytes(value), nil
}

// Set writes value to the store and then to the cache.
func (v *CredentialVault) Set(ctx context.Context, key string, value []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.versions[key]++
	before, genErr := v.store.Generation(ctx)
	if err := v.store.Set(ctx, key, value); err != nil {
		delete(v.cache, key)
		return err
	}
	v.cache[key] = cloneBytes(value)

	// When this write is known to be the only change between the two
	// readings, the cache can move to the new generation. Entries from
	// before an unseen change are dropped. Otherwise the next read resets.
	after, err := v.store.Generation(ctx)
	if genErr != nil || err != nil || after != before+1 {
		return nil
	}
	if !v.synced || before != v.generation {
		v.clearLocked()
		v.cache[key] = cloneBytes(value)
	}
	v.generation = after
	v.synced = true
	return nil
}

// Delete removes key from the store and the cache. The cache is rebuilt on
// the next read.
func (v *CredentialVault) Delete(ctx context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.versions[key]++
	delete(v.cache, key)
	return v.store.Delete(ctx, key)
}

// clearLocked drops every cached entry. The caller holds mu.
func (v *CredentialVault) clearLocked() {
	v.epoch++
	v.cache = make(map[string][]byte)
}

// LoadCredential returns the stored credential for accountID, or nil if the
// account has none.
func (v *CredentialVault) LoadCredential(ctx context.Context, accountID string) (*model.Credential, error) {
	data, err := v.Get(ctx, CredentialKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("load credential for %s: %w", accountID, err)
	}
	if data == nil {
		return nil, nil
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decode credential for %s: %w", accountID, err)
	}
	if cred.AccountID == "" {
		cred.AccountID = accountID
	}
	return &cred, nil
}

// SaveCredential replaces the stored credential for cred.AccountID.
func (v *CredentialVault) SaveCredential(ctx context.Context, cred model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode credential for %s: %w", cred.AccountID, err)
	}
	if err := v.Set(ctx, CredentialKey(cred.AccountID), data); err != nil {
		return fmt.Errorf("save credential for %s: %w", cred.AccountID, err)
	}
	return nil
}

// DeleteCredential removes the stored credential for accountID.
func (v *CredentialVault) DeleteCredential(ctx context.Context, accountID string) error {
	if err := v.Delete(ctx, CredentialKey(accountID)); err != nil {
		return fmt.Errorf("delete credential for %s: %w", accountID, err)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
