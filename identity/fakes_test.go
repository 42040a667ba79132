package identity

import (
	"context"
	"errors"
	"sync"

	"taskboard/domain"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
	profiles map[string]domain.Profile
	tasks    map[string]int
	calls    []string

	failPurge   error
	failProfile error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{
		accounts: map[string]domain.Account{},
		profiles: map[string]domain.Profile{},
		tasks:    map[string]int{},
	}
}

func (m *memAccounts) record(call string) {
	m.calls = append(m.calls, call)
}

func (m *memAccounts) InsertAccount(ctx context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("insert-account")
	email := domain.NormalizeEmail(a.Email)
	if _, ok := m.accounts[email]; ok {
		return &domain.ValidationError{Fields: map[string]string{"email": "Email is already registered"}}
	}
	a.Email = email
	m.accounts[email] = a
	return nil
}

func (m *memAccounts) GetAccount(ctx context.Context, email string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[domain.NormalizeEmail(email)]
	if !ok {
		return domain.Account{}, &domain.NotFoundError{Kind: "account", ID: email}
	}
	return a, nil
}

func (m *memAccounts) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = domain.NormalizeEmail(email)
	a, ok := m.accounts[email]
	if !ok {
		return &domain.NotFoundError{Kind: "account", ID: email}
	}
	a.PasswordHash = hash
	m.accounts[email] = a
	return nil
}

func (m *memAccounts) DeleteAccount(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete-account")
	email = domain.NormalizeEmail(email)
	if _, ok := m.accounts[email]; !ok {
		return &domain.NotFoundError{Kind: "account", ID: email}
	}
	delete(m.accounts, email)
	return nil
}

func (m *memAccounts) UpsertProfile(ctx context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p
	return nil
}

func (m *memAccounts) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, &domain.NotFoundError{Kind: "profile", ID: userID}
	}
	return p, nil
}

func (m *memAccounts) DeleteProfile(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete-profile")
	if m.failProfile != nil {
		return m.failProfile
	}
	delete(m.profiles, userID)
	return nil
}

func (m *memAccounts) DeleteOwnerTasks(ctx context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete-tasks")
	if m.failPurge != nil {
		return 0, m.failPurge
	}
	n := m.tasks[owner]
	delete(m.tasks, owner)
	return n, nil
}

type memQueue struct {
	mu       sync.Mutex
	commands []domain.QueuedCommand
	mail     []domain.Command
	acked    []string
	fail     error
}

func (q *memQueue) EnqueueCommand(ctx context.Context, cmd domain.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.commands = append(q.commands, domain.QueuedCommand{Command: cmd, MessageID: cmd.ID, PopReceipt: "r-" + cmd.ID})
	return nil
}

func (q *memQueue) EnqueueMail(ctx context.Context, cmd domain.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return q.fail
	}
	q.mail = append(q.mail, cmd)
	return nil
}

func (q *memQueue) DequeueCommand(ctx context.Context) (*domain.QueuedCommand, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fail != nil {
		return nil, q.fail
	}
	if len(q.commands) == 0 {
		return nil, nil
	}
	c := q.commands[0]
	return &c, nil
}

func (q *memQueue) AckCommand(ctx context.Context, c domain.QueuedCommand) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, pending := range q.commands {
		if pending.MessageID == c.MessageID {
			q.commands = append(q.commands[:i], q.commands[i+1:]...)
			q.acked = append(q.acked, c.MessageID)
			return nil
		}
	}
	return errors.New("unknown message")
}
