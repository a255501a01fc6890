package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/medicore/portal/pkg/common/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords;
// callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

type Credential struct {
	Username     string      `yaml:"username"`
	Password     string      `yaml:"password,omitempty"`
	PasswordHash string      `yaml:"password_hash,omitempty"`
	Role         models.Role `yaml:"role"`
	Name         string      `yaml:"name"`
}

type CredentialsConfig struct {
	Users []Credential `yaml:"users"`
}

type CredentialSet struct {
	byUsername map[string]Credential
}

func NewCredentialSet(creds []Credential) *CredentialSet {
	set := &CredentialSet{byUsername: make(map[string]Credential, len(creds))}
	for _, c := range creds {
		set.byUsername[c.Username] = c
	}
	return set
}

// LoadCredentials reads the credential table from a YAML file. An empty path
// falls back to the built-in demo users.
func LoadCredentials(path string) (*CredentialSet, error) {
	if path == "" {
		return DefaultCredentials(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	var cfg CredentialsConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Users) == 0 {
		return nil, errors.New("no credentials configured")
	}
	for _, c := range cfg.Users {
		if c.Username == "" || c.Role == "" {
			return nil, fmt.Errorf("credential entry missing username or role")
		}
		if c.Password == "" && c.PasswordHash == "" {
			return nil, fmt.Errorf("credential entry for %q has no password or password_hash", c.Username)
		}
	}
	return NewCredentialSet(cfg.Users), nil
}

// DefaultCredentials is the demo user table. Plaintext passwords here are a
// carried-over weakness of the source system; deployments should load a file
// with bcrypt password_hash entries instead.
func DefaultCredentials() *CredentialSet {
	return NewCredentialSet([]Credential{
		{Username: "Patient", Password: "AAAAAAAA", Role: models.RolePatient, Name: "Liao"},
		{Username: "DoctorWu", Password: "DDDDDDDD", Role: models.RoleDoctor, Name: "Doctor Wu"},
		{Username: "Manager", Password: "XXXXXXXX", Role: models.RoleManager, Name: "Manager"},
	})
}

func (s *CredentialSet) Authenticate(username, password string) (models.Identity, error) {
	cred, ok := s.byUsername[username]
	if !ok {
		return models.Identity{}, ErrInvalidCredentials
	}
	if !cred.verify(password) {
		return models.Identity{}, ErrInvalidCredentials
	}
	return models.Identity{Role: cred.Role, Name: cred.Name}, nil
}

func (c Credential) verify(password string) bool {
	if c.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
}
