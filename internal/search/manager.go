package search

import (
	"context"
	"fmt"
	"log"
	"sync"

	"mailbridge-backend/internal/mail/domain"
	"mailbridge-backend/internal/mail/repository"
	"mailbridge-backend/pkg/embeddings"
)

// Manager owns one search index per account. The live index is held in
// memory; every mutation re-serializes it onto the account row so the
// persisted blob always reflects the last insert.
type Manager struct {
	accountRepo repository.AccountRepository
	provider    embeddings.Provider

	mu      sync.Mutex
	indexes map[string]*Index
	locks   map[string]*sync.RWMutex
}

// NewManager creates a new index manager.
func NewManager(accountRepo repository.AccountRepository, provider embeddings.Provider) *Manager {
	return &Manager{
		accountRepo: accountRepo,
		provider:    provider,
		indexes:     make(map[string]*Index),
		locks:       make(map[string]*sync.RWMutex),
	}
}

// accountLock returns the per-account lock guarding the live index.
// Writers hold it exclusively: two concurrent inserts would otherwise
// both load the old blob and the second persist would discard the
// first's document. Readers hold it shared so a search never observes
// an insert mid-mutation.
func (m *Manager) accountLock(accountID string) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.RWMutex{}
		m.locks[accountID] = lock
	}
	return lock
}

// Initialize loads the account's persisted index, restoring it if
// present. A corrupt blob falls back to an empty index - the mirror is
// the source of truth and the index is rebuildable. A fresh empty index
// is persisted immediately so the blob always exists after Initialize.
func (m *Manager) Initialize(accountID string) error {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	blob, err := m.accountRepo.LoadBinaryIndex(accountID)
	if err != nil {
		return err
	}

	if len(blob) > 0 {
		idx, restoreErr := Restore(blob)
		if restoreErr == nil {
			m.setIndex(accountID, idx)
			return nil
		}
		log.Printf("[SearchIndex] Corrupt index blob for account %s, rebuilding empty: %v", accountID, restoreErr)
	}

	idx := NewIndex(m.provider.Dimensions())
	m.setIndex(accountID, idx)
	return m.persist(accountID, idx)
}

// Insert adds one document and re-persists the whole index. O(index size)
// per write; acceptable for per-account document counts.
func (m *Manager) Insert(accountID string, doc Document) error {
	lock := m.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	idx := m.getIndex(accountID)
	if idx == nil {
		return domain.ErrIndexNotInitialized
	}

	idx.Insert(doc)
	return m.persist(accountID, idx)
}

// Search runs a pure lexical query over the account's live index.
func (m *Manager) Search(accountID, term string) ([]Hit, error) {
	lock := m.accountLock(accountID)
	lock.RLock()
	defer lock.RUnlock()

	idx := m.getIndex(accountID)
	if idx == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	return idx.Search(term), nil
}

// VectorSearch embeds the prompt and runs a hybrid query: lexical match
// on the prompt text combined with cosine similarity on the embeddings
// field, floored at SimilarityFloor and capped at numResults. The
// embedding call happens before the lock is taken so a slow provider
// never stalls concurrent inserts.
func (m *Manager) VectorSearch(ctx context.Context, accountID, prompt string, numResults int) ([]Hit, error) {
	if m.getIndex(accountID) == nil {
		return nil, domain.ErrIndexNotInitialized
	}

	vector, err := m.provider.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	lock := m.accountLock(accountID)
	lock.RLock()
	defer lock.RUnlock()

	idx := m.getIndex(accountID)
	if idx == nil {
		return nil, domain.ErrIndexNotInitialized
	}
	return idx.HybridSearch(prompt, vector, numResults)
}

// IsInitialized reports whether an account has a live index.
func (m *Manager) IsInitialized(accountID string) bool {
	return m.getIndex(accountID) != nil
}

// DocumentCount returns the live index size for an account.
func (m *Manager) DocumentCount(accountID string) int {
	lock := m.accountLock(accountID)
	lock.RLock()
	defer lock.RUnlock()

	idx := m.getIndex(accountID)
	if idx == nil {
		return 0
	}
	return idx.Len()
}

func (m *Manager) persist(accountID string, idx *Index) error {
	blob, err := idx.Serialize()
	if err != nil {
		return fmt.Errorf("failed to serialize index: %w", err)
	}
	if err := m.accountRepo.SaveBinaryIndex(accountID, blob); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}
	return nil
}

func (m *Manager) getIndex(accountID string) *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexes[accountID]
}

func (m *Manager) setIndex(accountID string, idx *Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indexes[accountID] = idx
}
