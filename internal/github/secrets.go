package github

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/crypto/nacl/box"
)

// sealedBoxKeySize is the libsodium public key length.
const sealedBoxKeySize = 32

// CreateEnvironment creates or updates a deployment environment.
func (c *Client) CreateEnvironment(ctx context.Context, repo, name string) error {
	return c.doJSON(ctx, http.MethodPut,
		c.repoPath(repo)+"/environments/"+url.PathEscape(name), struct{}{}, nil)
}

// DeleteEnvironment removes an environment. Used only by rollback.
func (c *Client) DeleteEnvironment(ctx context.Context, repo, name string) error {
	return c.doJSON(ctx, http.MethodDelete,
		c.repoPath(repo)+"/environments/"+url.PathEscape(name), nil, nil)
}

// RepoPublicKey fetches the key repo-level secrets are sealed against.
func (c *Client) RepoPublicKey(ctx context.Context, repo string) (PublicKey, error) {
	var key PublicKey

	err := c.doJSON(ctx, http.MethodGet, c.repoPath(repo)+"/actions/secrets/public-key", nil, &key)
	if err != nil {
		return PublicKey{}, err
	}

	return key, nil
}

// EnvironmentPublicKey fetches the sealing key of one environment.
func (c *Client) EnvironmentPublicKey(ctx context.Context, repo, environment string) (PublicKey, error) {
	var key PublicKey

	path := c.repoPath(repo) + "/environments/" + url.PathEscape(environment) + "/secrets/public-key"

	err := c.doJSON(ctx, http.MethodGet, path, nil, &key)
	if err != nil {
		return PublicKey{}, err
	}

	return key, nil
}

// SetRepoSecret seals and stores one repo-level actions secret.
func (c *Client) SetRepoSecret(ctx context.Context, repo, name, value string) error {
	key, keyErr := c.RepoPublicKey(ctx, repo)
	if keyErr != nil {
		return keyErr
	}

	payload, sealErr := sealedSecretPayload(key, value)
	if sealErr != nil {
		return sealErr
	}

	return c.doJSON(ctx, http.MethodPut,
		c.repoPath(repo)+"/actions/secrets/"+url.PathEscape(name), payload, nil)
}

// SetEnvironmentSecret seals and stores one environment-scoped secret.
func (c *Client) SetEnvironmentSecret(ctx context.Context, repo, environment, name, value string) error {
	key, keyErr := c.EnvironmentPublicKey(ctx, repo, environment)
	if keyErr != nil {
		return keyErr
	}

	payload, sealErr := sealedSecretPayload(key, value)
	if sealErr != nil {
		return sealErr
	}

	path := c.repoPath(repo) + "/environments/" + url.PathEscape(environment) +
		"/secrets/" + url.PathEscape(name)

	return c.doJSON(ctx, http.MethodPut, path, payload, nil)
}

// DeleteEnvironmentSecret removes an environment-scoped secret. Used
// only by rollback.
func (c *Client) DeleteEnvironmentSecret(ctx context.Context, repo, environment, name string) error {
	path := c.repoPath(repo) + "/environments/" + url.PathEscape(environment) +
		"/secrets/" + url.PathEscape(name)

	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// DeleteRepoSecret removes a repo-level secret. Used only by rollback.
func (c *Client) DeleteRepoSecret(ctx context.Context, repo, name string) error {
	return c.doJSON(ctx, http.MethodDelete,
		c.repoPath(repo)+"/actions/secrets/"+url.PathEscape(name), nil, nil)
}

// SetVariable creates an actions variable, updating in place when it
// already exists.
func (c *Client) SetVariable(ctx context.Context, repo, name, value string) error {
	variable := Variable{Name: name, Value: value}

	err := c.doJSON(ctx, http.MethodPost, c.repoPath(repo)+"/actions/variables", variable, nil)
	if err == nil {
		return nil
	}

	if statusCode(err) != http.StatusConflict {
		return err
	}

	return c.doJSON(ctx, http.MethodPatch,
		c.repoPath(repo)+"/actions/variables/"+url.PathEscape(name), variable, nil)
}

// DeleteVariable removes an actions variable. Used only by rollback.
func (c *Client) DeleteVariable(ctx context.Context, repo, name string) error {
	return c.doJSON(ctx, http.MethodDelete,
		c.repoPath(repo)+"/actions/variables/"+url.PathEscape(name), nil, nil)
}

// sealedSecret is the encrypted secret write payload.
type sealedSecret struct {
	EncryptedValue string `json:"encrypted_value"`
	KeyID          string `json:"key_id"`
}

// sealedSecretPayload encrypts value against the server public key
// with an anonymous sealed box, the scheme the secrets API requires.
func sealedSecretPayload(key PublicKey, value string) (sealedSecret, error) {
	raw, decodeErr := base64.StdEncoding.DecodeString(key.Key)
	if decodeErr != nil {
		return sealedSecret{}, fmt.Errorf("decode public key: %w", decodeErr)
	}

	if len(raw) != sealedBoxKeySize {
		return sealedSecret{}, fmt.Errorf("public key is %d bytes, want %d", len(raw), sealedBoxKeySize)
	}

	var publicKey [sealedBoxKeySize]byte

	copy(publicKey[:], raw)

	sealed, sealErr := box.SealAnonymous(nil, []byte(value), &publicKey, rand.Reader)
	if sealErr != nil {
		return sealedSecret{}, fmt.Errorf("seal secret: %w", sealErr)
	}

	return sealedSecret{
		EncryptedValue: base64.StdEncoding.EncodeToString(sealed),
		KeyID:          key.KeyID,
	}, nil
}
