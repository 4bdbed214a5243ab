// Copyright 2026 The BigFin Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package accounts

type MockRepository struct {
	Accounts map[string]*Account
	Err      error
}

func NewMockRepo() *MockRepository {
	repo := &MockRepository{Accounts: make(map[string]*Account)}
	for i := range systemChart {
		repo.Accounts[systemChart[i].Code] = systemChart[i]
	}
	return repo
}

func (r *MockRepository) GetAccount(code string) (*Account, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Accounts[code], nil
}

func (r *MockRepository) GetAccounts() ([]*Account, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	var out []*Account
	for _, acct := range r.Accounts {
		out = append(out, acct)
	}
	return out, nil
}

func (r *MockRepository) CreateAccount(acct *Account) error {
	if r.Err != nil {
		return r.Err
	}
	r.Accounts[acct.Code] = acct
	return nil
}
