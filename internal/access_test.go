package internal_test

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/krelinga/go-libs/deep"
	"github.com/krelinga/go-libs/exam"
	"github.com/krelinga/lesson-video-pipeline/internal"
)

var issueTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testSigningKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func testAccessConfig() *internal.AccessConfig {
	return &internal.AccessConfig{
		CDNBaseURL:     "https://cdn.example.com/",
		KeyID:          "K2JCJMDEHXQW5F",
		CookieDomain:   ".example.com",
		CookieTTL:      24 * time.Hour,
		ManifestURLTTL: time.Hour,
	}
}

func newTestIssuer(t *testing.T, key *rsa.PrivateKey) *internal.AccessIssuer {
	t.Helper()
	issuer, err := internal.NewAccessIssuer(testAccessConfig(), key)
	if err != nil {
		t.Fatalf("failed to create issuer: %v", err)
	}
	return issuer.WithClock(func() time.Time { return issueTime })
}

func decodeCloudFront(t *testing.T, s string) []byte {
	t.Helper()
	r := strings.NewReplacer("-", "+", "_", "=", "~", "/")
	b, err := base64.StdEncoding.DecodeString(r.Replace(s))
	if err != nil {
		t.Fatalf("failed to decode %q: %v", s, err)
	}
	return b
}

type cloudFrontPolicy struct {
	Statement []struct {
		Resource  string `json:"Resource"`
		Condition struct {
			DateLessThan struct {
				EpochTime int64 `json:"AWS:EpochTime"`
			} `json:"DateLessThan"`
		} `json:"Condition"`
	} `json:"Statement"`
}

func TestNewAccessIssuerRequiresKey(t *testing.T) {
	key := testSigningKey(t)

	if _, err := internal.NewAccessIssuer(testAccessConfig(), nil); !errors.Is(err, internal.ErrMissingSigningKey) {
		t.Fatalf("expected ErrMissingSigningKey for nil key, got %v", err)
	}
	cfg := testAccessConfig()
	cfg.KeyID = ""
	_, err := internal.NewAccessIssuer(cfg, key)
	if !errors.Is(err, internal.ErrMissingSigningKey) || !errors.Is(err, internal.ErrConfiguration) {
		t.Fatalf("expected ErrMissingSigningKey wrapping ErrConfiguration, got %v", err)
	}
}

func TestCourseCookies(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	key := testSigningKey(t)
	issuer := newTestIssuer(t, key)

	signed, err := issuer.CourseCookies("c1")
	if err != nil {
		t.Fatalf("failed to sign cookies: %v", err)
	}

	exam.Equal(e, env, "K2JCJMDEHXQW5F", signed.KeyID)
	exam.Equal(e, env, true, issueTime.Add(86400*time.Second).Equal(signed.ExpiresAt))
	if signed.Policy == "" || signed.Signature == "" {
		t.Fatalf("expected non-empty policy and signature")
	}

	byName := map[string]*http.Cookie{}
	for _, c := range signed.Cookies {
		byName[c.Name] = c
		exam.Equal(e, env, true, c.HttpOnly)
		exam.Equal(e, env, true, c.Secure)
		exam.Equal(e, env, http.SameSiteNoneMode, c.SameSite)
		exam.Equal(e, env, ".example.com", c.Domain)
		exam.Equal(e, env, "/", c.Path)
		exam.Equal(e, env, 0, c.MaxAge)
		exam.Equal(e, env, true, c.Expires.IsZero())
		exam.Equal(e, env, true, c.Value != "")
	}
	exam.Equal(e, env, 3, len(byName))
	for _, name := range []string{"CloudFront-Policy", "CloudFront-Signature", "CloudFront-Key-Pair-Id"} {
		if byName[name] == nil {
			t.Fatalf("missing cookie %s", name)
		}
	}
	exam.Equal(e, env, "K2JCJMDEHXQW5F", byName["CloudFront-Key-Pair-Id"].Value)

	rawPolicy := decodeCloudFront(t, signed.Policy)
	var policy cloudFrontPolicy
	if err := json.Unmarshal(rawPolicy, &policy); err != nil {
		t.Fatalf("failed to parse policy %s: %v", rawPolicy, err)
	}
	if len(policy.Statement) != 1 {
		t.Fatalf("expected one statement, got %s", rawPolicy)
	}
	exam.Equal(e, env, "https://cdn.example.com/courses/c1/*", policy.Statement[0].Resource)
	exam.Equal(e, env, issueTime.Unix()+86400, policy.Statement[0].Condition.DateLessThan.EpochTime)

	digest := sha1.Sum(rawPolicy)
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA1, digest[:], decodeCloudFront(t, signed.Signature)); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestSignCookiesCustomTTL(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	issuer := newTestIssuer(t, testSigningKey(t))

	signed, err := issuer.SignCookies("https://cdn.example.com/courses/c2/", 90*time.Second)
	if err != nil {
		t.Fatalf("failed to sign cookies: %v", err)
	}
	var policy cloudFrontPolicy
	if err := json.Unmarshal(decodeCloudFront(t, signed.Policy), &policy); err != nil {
		t.Fatalf("failed to parse policy: %v", err)
	}
	exam.Equal(e, env, "https://cdn.example.com/courses/c2/*", policy.Statement[0].Resource)
	exam.Equal(e, env, issueTime.Unix()+90, policy.Statement[0].Condition.DateLessThan.EpochTime)
}

func TestManifestURL(t *testing.T) {
	e := exam.New(t)
	env := deep.NewEnv()
	issuer := newTestIssuer(t, testSigningKey(t))

	signed, err := issuer.ManifestURL("courses/c1/l1/l1.m3u8")
	if err != nil {
		t.Fatalf("failed to sign URL: %v", err)
	}
	exam.Equal(e, env, true, issueTime.Add(time.Hour).Equal(signed.ExpiresAt))

	u, err := url.Parse(signed.URL)
	if err != nil {
		t.Fatalf("signed URL does not parse: %v", err)
	}
	exam.Equal(e, env, "cdn.example.com", u.Host)
	exam.Equal(e, env, "/courses/c1/l1/l1.m3u8", u.Path)
	q := u.Query()
	exam.Equal(e, env, strconv.FormatInt(issueTime.Add(time.Hour).Unix(), 10), q.Get("Expires"))
	exam.Equal(e, env, "K2JCJMDEHXQW5F", q.Get("Key-Pair-Id"))
	exam.Equal(e, env, true, q.Get("Signature") != "")
}

func TestLoadSigningKey(t *testing.T) {
	key := testSigningKey(t)
	dir := t.TempDir()

	path := filepath.Join(dir, "cf.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	loaded, err := internal.LoadSigningKey(path)
	if err != nil {
		t.Fatalf("failed to load key: %v", err)
	}
	if !loaded.Equal(key) {
		t.Fatalf("loaded key differs from written key")
	}

	if _, err := internal.LoadSigningKey(filepath.Join(dir, "missing.pem")); !errors.Is(err, internal.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for missing key file, got %v", err)
	}
}
