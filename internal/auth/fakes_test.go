package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/pawhaven/pawhaven-backend/internal/models"
)

var errBoom = errors.New("boom")

// memPersister is the in-memory Persister used across the package tests.
type memPersister struct {
	mu            sync.Mutex
	user          *models.UserProfile
	authenticated bool
	providerKeys  map[string]string

	saveErr error
	loadErr error
}

func newMemPersister() *memPersister {
	return &memPersister{providerKeys: make(map[string]string)}
}

func (p *memPersister) SaveSession(user *models.UserProfile, authenticated bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	if user != nil {
		u := *user
		p.user = &u
	} else {
		p.user = nil
	}
	p.authenticated = authenticated
	return nil
}

func (p *memPersister) LoadSession() (*models.UserProfile, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return nil, false, p.loadErr
	}
	if p.user == nil {
		return nil, false, nil
	}
	u := *p.user
	return &u, p.authenticated, nil
}

func (p *memPersister) ClearSession() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.user = nil
	p.authenticated = false
	return nil
}

func (p *memPersister) ClearProviderState() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.providerKeys {
		if strings.HasPrefix(k, ProviderKeyPrefix) {
			delete(p.providerKeys, k)
		}
	}
	return nil
}

func (p *memPersister) snapshot() (*models.UserProfile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.user == nil {
		return nil, p.authenticated
	}
	u := *p.user
	return &u, p.authenticated
}

// memProfiles is the in-memory Profiles store used across the package tests.
type memProfiles struct {
	mu      sync.Mutex
	rows    map[string]models.UserProfile
	getErr  error
	insErr  error
	updErr  error
	getCnt  int
	insCnt  int
	updCnt  int
}

func newMemProfiles() *memProfiles {
	return &memProfiles{rows: make(map[string]models.UserProfile)}
}

func (m *memProfiles) GetByID(_ context.Context, id string) (*models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCnt++
	if m.getErr != nil {
		return nil, m.getErr
	}
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &row, nil
}

func (m *memProfiles) Insert(_ context.Context, p *models.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insCnt++
	if m.insErr != nil {
		return m.insErr
	}
	m.rows[p.ID] = *p
	return nil
}

func (m *memProfiles) Update(_ context.Context, id string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updCnt++
	if m.updErr != nil {
		return m.updErr
	}
	row, ok := m.rows[id]
	if !ok {
		return ErrProfileNotFound
	}
	for field, value := range fields {
		switch field {
		case "username":
			row.Username = value
		case "email":
			row.Email = value
		case "profile_image":
			row.ProfileImage = value
		}
	}
	m.rows[id] = row
	return nil
}

// silentNotifier swallows notifications and remembers the last ones.
type silentNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *silentNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *silentNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *silentNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}
