package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	TokenEnv    = "TWEETGRAPH_BEARER_TOKEN"
	ClientIDEnv = "TWEETGRAPH_CLIENT_ID"
)

// EnvironmentStore is a read-only store answering every profile with
// $TWEETGRAPH_BEARER_TOKEN
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(*Credential) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	token := os.Getenv(TokenEnv)
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &Credential{
		Profile:      profile,
		BearerToken:  token,
		ClientID:     os.Getenv(ClientIDEnv),
		LastModified: time.Time{},
	}, nil
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return []*Credential{}, nil
	}
	return []*Credential{cred}, nil
}

func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(string) bool {
	return os.Getenv(TokenEnv) != ""
}
