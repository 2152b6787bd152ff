package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ExtensionStore reads parameters through the AWS Parameters and Secrets
// Lambda extension listening on localhost. The extension caches values
// across invocations of the same execution environment.
type ExtensionStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewExtensionStore targets the extension on the given port. The session
// token of the function's role authenticates each request.
func NewExtensionStore(port int) *ExtensionStore {
	return &ExtensionStore{
		baseURL: fmt.Sprintf("http://localhost:%d", port),
		token:   os.Getenv("AWS_SESSION_TOKEN"),
		client:  &http.Client{Timeout: 3 * time.Second},
	}
}

type extensionResponse struct {
	Parameter struct {
		Name  string `json:"Name"`
		Value string `json:"Value"`
	} `json:"Parameter"`
}

// GetParameter returns the decrypted value of the named parameter.
func (s *ExtensionStore) GetParameter(ctx context.Context, name string) (string, error) {
	u := s.baseURL + "/systemsmanager/parameters/get?name=" + url.QueryEscape(name) + "&withDecryption=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Aws-Parameters-Secrets-Token", s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extension get parameter %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extension get parameter %s: status %d: %s", name, resp.StatusCode, body)
	}

	var out extensionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode extension response: %w", err)
	}
	if out.Parameter.Value == "" {
		return "", fmt.Errorf("extension parameter %s has no value", name)
	}
	return out.Parameter.Value, nil
}
