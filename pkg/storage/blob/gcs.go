package blob

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jordanvela/cliphive-backend/pkg/config"
	"github.com/jordanvela/cliphive-backend/pkg/httprange"
	"github.com/jordanvela/cliphive-backend/pkg/logger"
)

const (
	tokenEndpoint = "https://oauth2.googleapis.com/token"
	scope         = "https://www.googleapis.com/auth/devstorage.read_write"
	storageHost   = "https://storage.googleapis.com"
	pingTimeout   = 5 * time.Second
	metadataToken = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"
)

// GCSStore talks to Google Cloud Storage over its JSON API with a hand-rolled
// authenticated HTTP client, mirroring the platform's other GCP access.
type GCSStore struct {
	httpClient  *http.Client
	bucket      string
	tokenSource *tokenSource

	// host overrides the storage endpoint; empty means the public API.
	host string
}

func (s *GCSStore) hostURL() string {
	if s.host != "" {
		return s.host
	}
	return storageHost
}

func closeBody(ctx context.Context, logg *logger.Logger, body io.Closer, msg string) {
	if body == nil {
		return
	}
	if err := body.Close(); err != nil && logg != nil {
		logg.Warn(ctx, msg)
	}
}

// NewGCSStore resolves credentials (explicit JSON, credentials file, or the
// GCE metadata server) and verifies bucket access before returning.
func NewGCSStore(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*GCSStore, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}

	var ts *tokenSource
	var err error
	switch {
	case gcp.CredentialsJSON != "":
		ts, err = newServiceAccountTokenSource(httpClient, gcp.CredentialsJSON)
	case gcp.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(gcp.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		ts, err = newServiceAccountTokenSource(httpClient, string(raw))
	default:
		ts = newMetadataTokenSource(httpClient)
	}
	if err != nil {
		return nil, err
	}

	store := &GCSStore{
		httpClient:  httpClient,
		bucket:      cfg.BucketName,
		tokenSource: ts,
	}

	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "gcs blob store initialized")
	}

	return store, nil
}

// Ping performs an object-level list check (requires storage.objects.list).
func (s *GCSStore) Ping(ctx context.Context) error {
	if s == nil || s.tokenSource == nil {
		return errors.New("gcs store not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", s.hostURL(), url.PathEscape(s.bucket))
	resp, err := s.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gcs object check failed: %s", resp.Status)
	}
	return nil
}

// Put streams the payload via the media upload endpoint under a fresh key.
func (s *GCSStore) Put(ctx context.Context, contentType, fileName string, r io.Reader) (Object, error) {
	return s.PutKey(ctx, NewKey(fileName), contentType, r)
}

// PutKey streams the payload under a previously issued key.
func (s *GCSStore) PutKey(ctx context.Context, key, contentType string, r io.Reader) (Object, error) {
	if err := ValidateKey(key); err != nil {
		return Object{}, err
	}

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		s.hostURL(), url.PathEscape(s.bucket), url.QueryEscape(key))

	headers := map[string]string{"Content-Type": contentType}
	resp, err := s.do(ctx, http.MethodPost, u, headers, r)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(ctx, nil, resp.Body, "gcs: closing upload response body failed")

	if resp.StatusCode != http.StatusOK {
		return Object{}, statusError(resp)
	}

	var body struct {
		Size        string    `json:"size"`
		ContentType string    `json:"contentType"`
		TimeCreated time.Time `json:"timeCreated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Object{}, fmt.Errorf("decoding upload response: %w", err)
	}
	size, err := strconv.ParseInt(body.Size, 10, 64)
	if err != nil {
		return Object{}, fmt.Errorf("parsing object size: %w", err)
	}

	return Object{
		Key:         key,
		SizeBytes:   size,
		ContentType: body.ContentType,
		CreatedAt:   body.TimeCreated,
	}, nil
}

// Stat fetches object metadata.
func (s *GCSStore) Stat(ctx context.Context, key string) (Info, error) {
	if err := ValidateKey(key); err != nil {
		return Info{}, ErrNotFound
	}

	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?fields=size,contentType",
		s.hostURL(), url.PathEscape(s.bucket), url.PathEscape(key))

	resp, err := s.do(ctx, http.MethodGet, u, nil, nil)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(ctx, nil, resp.Body, "gcs: closing stat response body failed")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Info{}, ErrNotFound
	default:
		return Info{}, statusError(resp)
	}

	var body struct {
		Size        string `json:"size"`
		ContentType string `json:"contentType"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Info{}, fmt.Errorf("decoding stat response: %w", err)
	}
	size, err := strconv.ParseInt(body.Size, 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("parsing object size: %w", err)
	}
	return Info{SizeBytes: size, ContentType: body.ContentType}, nil
}

// OpenRange issues a ranged media download. GCS normally honors Range and
// answers 206; a 200 full-body answer degrades to reading the whole object
// and discarding the prefix so the caller never sees the wrong bytes.
func (s *GCSStore) OpenRange(ctx context.Context, key string, spec httprange.Spec) (io.ReadCloser, int64, error) {
	if err := ValidateKey(key); err != nil {
		return nil, 0, ErrNotFound
	}

	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media",
		s.hostURL(), url.PathEscape(s.bucket), url.PathEscape(key))

	headers := map[string]string{
		"Range": fmt.Sprintf("bytes=%d-%d", spec.Start, spec.End),
	}
	resp, err := s.do(ctx, http.MethodGet, u, headers, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return resp.Body, spec.Length(), nil
	case http.StatusOK:
		// Range ignored and the full object returned. Discard the prefix and
		// cap the remainder so the caller still receives exactly the
		// requested span.
		if spec.Start > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, spec.Start); err != nil {
				_ = resp.Body.Close()
				return nil, 0, fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
		}
		return &spanReadCloser{
			Reader: io.LimitReader(resp.Body, spec.Length()),
			closer: resp.Body,
		}, spec.Length(), nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, 0, ErrNotFound
	default:
		err := statusError(resp)
		_ = resp.Body.Close()
		return nil, 0, err
	}
}

// Delete removes the object; a 404 is treated as success.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return nil
	}

	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s",
		s.hostURL(), url.PathEscape(s.bucket), url.PathEscape(key))

	resp, err := s.do(ctx, http.MethodDelete, u, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(ctx, nil, resp.Body, "gcs: closing delete response body failed")

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return statusError(resp)
	}
}

// spanReadCloser bounds a response body to the requested span while keeping
// the underlying connection closable.
type spanReadCloser struct {
	io.Reader
	closer io.Closer
}

func (s *spanReadCloser) Close() error {
	return s.closer.Close()
}

func (s *GCSStore) do(ctx context.Context, method, u string, headers map[string]string, body io.Reader) (*http.Response, error) {
	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return s.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(b))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		if detail != "" {
			return fmt.Errorf("%w: %s: %s", ErrUnavailable, resp.Status, detail)
		}
		return fmt.Errorf("%w: %s", ErrUnavailable, resp.Status)
	}
	if detail != "" {
		return fmt.Errorf("gcs request failed: %s: %s", resp.Status, detail)
	}
	return fmt.Errorf("gcs request failed: %s", resp.Status)
}

type tokenSource struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	fetch  func(context.Context) (string, time.Time, error)
}

func (t *tokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Until(t.expiry) > time.Minute {
		return t.token, nil
	}

	token, expiry, err := t.fetch(ctx)
	if err != nil {
		return "", err
	}
	t.token = token
	t.expiry = expiry
	return token, nil
}

func newServiceAccountTokenSource(client *http.Client, jsonCreds string) (*tokenSource, error) {
	var creds struct {
		ClientEmail string `json:"client_email"`
		PrivateKey  string `json:"private_key"`
		TokenURI    string `json:"token_uri"`
	}
	if err := json.Unmarshal([]byte(jsonCreds), &creds); err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	if creds.ClientEmail == "" || creds.PrivateKey == "" {
		return nil, errors.New("invalid service account credentials")
	}
	tokenURI := creds.TokenURI
	if tokenURI == "" {
		tokenURI = tokenEndpoint
	}
	priv, err := parsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, err
	}

	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			return fetchServiceAccountToken(ctx, client, creds.ClientEmail, priv, tokenURI)
		},
	}, nil
}

func newMetadataTokenSource(client *http.Client) *tokenSource {
	return &tokenSource{
		fetch: func(ctx context.Context) (string, time.Time, error) {
			return fetchMetadataToken(ctx, client)
		},
	}
}

func fetchServiceAccountToken(ctx context.Context, client *http.Client, email string, key *rsa.PrivateKey, tokenURI string) (string, time.Time, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	now := time.Now()
	claims := map[string]any{
		"iss":   email,
		"scope": scope,
		"aud":   tokenURI,
		"exp":   now.Add(time.Hour).Unix(),
		"iat":   now.Unix(),
	}
	payloadBytes, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadBytes)
	unsigned := header + "." + payload
	signature, err := signJWT(unsigned, key)
	if err != nil {
		return "", time.Time{}, err
	}
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", unsigned+"."+signature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { closeBody(ctx, nil, resp.Body, "gcs: closing token response body failed") }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.AccessToken, time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second), nil
}

func fetchMetadataToken(ctx context.Context, client *http.Client) (string, time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataToken, nil)
	if err != nil {
		return "", time.Time{}, err
	}
	req.Header.Set("Metadata-Flavor", "Google")
	resp, err := client.Do(req)
	if err != nil {
		return "", time.Time{}, err
	}

	defer func() { closeBody(ctx, nil, resp.Body, "gcs: closing metadata response body failed") }()

	if resp.StatusCode != http.StatusOK {
		return "", time.Time{}, fmt.Errorf("metadata token request returned %s", resp.Status)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", time.Time{}, err
	}

	return tokenResp.AccessToken, time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second), nil
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid private key")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		if priv, ok := key.(*rsa.PrivateKey); ok {
			return priv, nil
		}
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.New("unsupported private key format")
	}
	return priv, nil
}

func signJWT(unsigned string, key *rsa.PrivateKey) (string, error) {
	hash := sha256.Sum256([]byte(unsigned))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(signature), nil
}
