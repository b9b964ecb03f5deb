package repofake

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/go-auth-session-server/opaquetokens"
)

var _ opaquetokens.Repo = (*FakeTokenRepo)(nil)

type FakeTokenRepo struct {
	tokens map[string]*opaquetokens.Token
	lock   sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens: make(map[string]*opaquetokens.Token),
	}
}

func (tr *FakeTokenRepo) Create(_ context.Context, token *opaquetokens.Token) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	if _, ok := tr.tokens[token.Token]; ok {
		return errors.New("duplicate token")
	}
	stored := *token
	tr.tokens[token.Token] = &stored
	return nil
}

func (tr *FakeTokenRepo) FindByToken(_ context.Context, token string, tokenType opaquetokens.Type) (*opaquetokens.Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	t, ok := tr.tokens[token]
	if !ok || t.Type != tokenType {
		return nil, opaquetokens.ErrNotFound
	}
	found := *t
	return &found, nil
}

func (tr *FakeTokenRepo) MarkUsed(_ context.Context, token string) (bool, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	t, ok := tr.tokens[token]
	if !ok || t.IsUsed {
		return false, nil
	}
	t.IsUsed = true
	return true, nil
}

// All returns copies of every stored token
func (tr *FakeTokenRepo) All() []opaquetokens.Token {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	all := make([]opaquetokens.Token, 0, len(tr.tokens))
	for _, t := range tr.tokens {
		all = append(all, *t)
	}
	return all
}

// Put stores token as is, replacing any existing record
func (tr *FakeTokenRepo) Put(token opaquetokens.Token) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[token.Token] = &token
}
