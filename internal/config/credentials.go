package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"github.com/zalando/go-keyring"

	"github.com/jonathan/autoapply/internal/types"
)

// KeyringService groups the portal passwords in the OS keychain.
const KeyringService = "autoapply"

type portalEnv struct {
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

type credentialsEnv struct {
	Dice     portalEnv `env:", prefix=DICE_"`
	LinkedIn portalEnv `env:", prefix=LINKEDIN_"`
	Indeed   portalEnv `env:", prefix=INDEED_"`

	// Single-portal mode.
	Email    string `env:"EMAIL"`
	Password string `env:"PASSWORD"`
}

func (e credentialsEnv) forPortal(p types.Portal) types.Credentials {
	var pe portalEnv
	switch p {
	case types.PortalDice:
		pe = e.Dice
	case types.PortalLinkedIn:
		pe = e.LinkedIn
	case types.PortalIndeed:
		pe = e.Indeed
	}
	if pe.Email == "" {
		return types.Credentials{Email: e.Email, Password: e.Password}
	}
	return types.Credentials{Email: pe.Email, Password: pe.Password}
}

// LoadCredentials resolves the login of every portal from lookuper (the
// process environment when nil). Portal-specific variables win over EMAIL and
// PASSWORD. A password that is still missing is looked up in the keychain.
func LoadCredentials(ctx context.Context, lookuper envconfig.Lookuper) (map[types.Portal]types.Credentials, error) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}

	var env credentialsEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &env,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	creds := make(map[types.Portal]types.Credentials, len(types.Portals))
	for _, p := range types.Portals {
		c := env.forPortal(p)
		if c.Email != "" && c.Password == "" {
			pw, err := KeyringPassword(p, c.Email)
			if err != nil {
				return nil, err
			}
			c.Password = pw
		}
		creds[p] = c
	}
	return creds, nil
}

// KeyringAccount is the keychain account name for a portal login.
func KeyringAccount(p types.Portal, email string) string {
	return fmt.Sprintf("%s:%s", p, strings.ToLower(strings.TrimSpace(email)))
}

// KeyringPassword returns the stored password, or "" when none is stored.
func KeyringPassword(p types.Portal, email string) (string, error) {
	pw, err := keyring.Get(KeyringService, KeyringAccount(p, email))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s password from keychain: %w", p, err)
	}
	return pw, nil
}

// SetKeyringPassword stores password for the portal login in the keychain.
func SetKeyringPassword(p types.Portal, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, KeyringAccount(p, email), password)
}

// DeleteKeyringPassword removes a stored password.
func DeleteKeyringPassword(p types.Portal, email string) error {
	if strings.TrimSpace(email) == "" {
		return errors.New("email is empty")
	}
	return keyring.Delete(KeyringService, KeyringAccount(p, email))
}
