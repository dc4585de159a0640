package internal

import (
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/cloudfront/sign"
)

// SignedURL is a CloudFront canned-policy URL for a single object.
type SignedURL struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignedCookies is the CloudFront-Policy, CloudFront-Signature and
// CloudFront-Key-Pair-Id triple for a path prefix.
type SignedCookies struct {
	Policy    string
	Signature string
	KeyID     string
	ExpiresAt time.Time
	Cookies   []*http.Cookie
}

// AccessIssuer signs CloudFront credentials for lesson playback. It never
// stores what it issues.
type AccessIssuer struct {
	keyID        string
	key          *rsa.PrivateKey
	cdnBaseURL   string
	cookieDomain string
	cookieTTL    time.Duration
	urlTTL       time.Duration
	now          func() time.Time
}

// LoadSigningKey reads a PEM encoded RSA private key for a CloudFront key group.
func LoadSigningKey(path string) (*rsa.PrivateKey, error) {
	key, err := sign.LoadPEMPrivKeyFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load CloudFront signing key: %v", ErrConfiguration, err)
	}
	return key, nil
}

// NewAccessIssuer returns ErrMissingSigningKey when key or cfg.KeyID is absent.
func NewAccessIssuer(cfg *AccessConfig, key *rsa.PrivateKey) (*AccessIssuer, error) {
	if key == nil || cfg == nil || cfg.KeyID == "" {
		return nil, ErrMissingSigningKey
	}
	issuer := &AccessIssuer{
		keyID:        cfg.KeyID,
		key:          key,
		cdnBaseURL:   strings.TrimRight(cfg.CDNBaseURL, "/"),
		cookieDomain: cfg.CookieDomain,
		cookieTTL:    cfg.CookieTTL,
		urlTTL:       cfg.ManifestURLTTL,
		now:          time.Now,
	}
	if issuer.cookieTTL <= 0 {
		issuer.cookieTTL = DefaultCookieTTL
	}
	if issuer.urlTTL <= 0 {
		issuer.urlTTL = DefaultManifestURLTTL
	}
	return issuer, nil
}

// WithClock replaces the time source used to compute expiry.
func (i *AccessIssuer) WithClock(now func() time.Time) *AccessIssuer {
	i.now = now
	return i
}

// SignURL signs resourceURL with a canned policy expiring at expires.
func (i *AccessIssuer) SignURL(resourceURL string, expires time.Time) (*SignedURL, error) {
	signed, err := sign.NewURLSigner(i.keyID, i.key).Sign(resourceURL, expires)
	if err != nil {
		return nil, fmt.Errorf("failed to sign URL: %w", err)
	}
	credentialsIssuedTotal.WithLabelValues("url").Inc()
	return &SignedURL{URL: signed, ExpiresAt: expires.UTC().Truncate(time.Second)}, nil
}

// ManifestURL signs the CDN URL of a lesson's master playlist.
func (i *AccessIssuer) ManifestURL(manifestKey string) (*SignedURL, error) {
	return i.SignURL(i.cdnBaseURL+"/"+strings.TrimLeft(manifestKey, "/"), i.now().Add(i.urlTTL))
}

// SignCookies grants access to every object under resourcePathPrefix for
// ttl. The cookies are session cookies scoped to the configured domain.
func (i *AccessIssuer) SignCookies(resourcePathPrefix string, ttl time.Duration) (*SignedCookies, error) {
	expires := i.now().Add(ttl).UTC().Truncate(time.Second)
	policy := &sign.Policy{
		Statements: []sign.Statement{
			{
				Resource: resourcePathPrefix + "*",
				Condition: sign.Condition{
					DateLessThan: sign.NewAWSEpochTime(expires),
				},
			},
		},
	}

	signer := sign.NewCookieSigner(i.keyID, i.key, func(o *sign.CookieOptions) {
		o.Path = "/"
		o.Domain = i.cookieDomain
		o.Secure = true
	})
	cookies, err := signer.SignWithPolicy(policy)
	if err != nil {
		return nil, fmt.Errorf("failed to sign cookies: %w", err)
	}

	result := &SignedCookies{KeyID: i.keyID, ExpiresAt: expires, Cookies: cookies}
	for _, c := range cookies {
		c.HttpOnly = true
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
		switch c.Name {
		case sign.CookiePolicyName:
			result.Policy = c.Value
		case sign.CookieSignatureName:
			result.Signature = c.Value
		}
	}
	credentialsIssuedTotal.WithLabelValues("cookie").Inc()
	return result, nil
}

// CourseCookies grants access to every lesson of a course for the
// configured cookie lifetime.
func (i *AccessIssuer) CourseCookies(courseID string) (*SignedCookies, error) {
	return i.SignCookies(i.cdnBaseURL+"/"+GenerateCoursePrefix(courseID), i.cookieTTL)
}
