package checkout

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"git.home.luguber.info/inful/litebuilder/internal/config"
)

// buildAuth converts an AuthConfig into a go-git transport auth method.
// A nil config means anonymous access.
func buildAuth(authCfg *config.AuthConfig) (transport.AuthMethod, error) {
	if authCfg == nil {
		return nil, nil
	}
	switch authCfg.Type {
	case "token":
		// Forges accept tokens as basic auth with any non-empty username.
		return &http.BasicAuth{Username: "token", Password: authCfg.Token}, nil
	case "basic":
		return &http.BasicAuth{Username: authCfg.Username, Password: authCfg.Password}, nil
	case "ssh":
		user := authCfg.Username
		if user == "" {
			user = "git"
		}
		keys, err := gitssh.NewPublicKeysFromFile(user, authCfg.KeyPath, authCfg.Password)
		if err != nil {
			return nil, fmt.Errorf("load ssh key %s: %w", authCfg.KeyPath, err)
		}
		return keys, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", authCfg.Type)
	}
}
