package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
)

const defaultServiceAccountTokenPath = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// VaultClient reads the faucet signing credential from a Vault KV v2 mount.
type VaultClient struct {
	http         *resty.Client
	kvSecretPath string
	role         string
	token        string
}

type loginResponse struct {
	Auth *struct {
		ClientToken string `json:"client_token"`
	} `json:"auth"`
	Errors []string `json:"errors"`
}

type kvResponse struct {
	Data *struct {
		Data map[string]interface{} `json:"data"`
	} `json:"data"`
	Errors []string `json:"errors"`
}

// New logs in with the pod's Kubernetes service account token.
func New(addr, kvSecretPath, role string) (*VaultClient, error) {
	jwt, err := os.ReadFile(defaultServiceAccountTokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account token: %w", err)
	}
	return NewWithJWT(addr, kvSecretPath, role, string(jwt))
}

func NewWithJWT(addr, kvSecretPath, role, jwt string) (*VaultClient, error) {
	vc := &VaultClient{
		http:         resty.New().SetBaseURL(strings.TrimRight(addr, "/")),
		kvSecretPath: strings.Trim(kvSecretPath, "/"),
		role:         role,
	}

	token, err := vc.login(jwt)
	if err != nil {
		return nil, err
	}
	vc.token = token
	return vc, nil
}

func (vc *VaultClient) login(jwt string) (string, error) {
	var result loginResponse
	resp, err := vc.http.R().
		SetBody(map[string]string{"jwt": jwt, "role": vc.role}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/auth/kubernetes/login")
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("vault authentication failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("vault authentication error: %s", strings.Join(result.Errors, "; "))
	}
	if result.Auth == nil || result.Auth.ClientToken == "" {
		return "", fmt.Errorf("vault returned empty client_token")
	}

	return result.Auth.ClientToken, nil
}

// GetKV returns a single string value from the configured secret path.
func (vc *VaultClient) GetKV(secretKey string) (string, error) {
	var result kvResponse
	resp, err := vc.http.R().
		SetHeader("X-Vault-Token", vc.token).
		SetResult(&result).
		SetError(&result).
		Get("/v1/" + vc.kvSecretPath)
	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("vault KV get failed with status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	if len(result.Errors) > 0 {
		return "", fmt.Errorf("vault KV get error: %s", strings.Join(result.Errors, "; "))
	}
	if result.Data == nil || result.Data.Data == nil {
		return "", fmt.Errorf("vault response missing nested 'data' field")
	}

	raw, ok := result.Data.Data[secretKey]
	if !ok {
		return "", fmt.Errorf("secret key '%s' not found", secretKey)
	}
	secret, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secret value for key '%s' is not a string", secretKey)
	}

	return secret, nil
}
