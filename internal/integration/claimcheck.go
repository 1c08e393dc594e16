package integration

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const ProviderGCS = "gcs"

var ErrInvalidClaimCheck = errors.New("invalid claim check")

// Locator is the storage context a consumer needs besides the object key.
type Locator struct {
	Provider string
	Project  string
	Location string
	Bucket   string
}

// ClaimCheck points at a stored artifact. Its token form is
// provider:project:location:bucket:objectKey:checksum. Only the object key
// may contain ':'; it is recovered as everything between the bucket and the
// last delimiter.
type ClaimCheck struct {
	Provider  string `json:"provider"`
	Project   string `json:"project"`
	Location  string `json:"location"`
	Bucket    string `json:"bucket"`
	ObjectKey string `json:"object_key"`
	Checksum  string `json:"checksum"`
}

func (c ClaimCheck) Validate() error {
	if strings.TrimSpace(c.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidClaimCheck)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidClaimCheck)
	}
	if strings.TrimSpace(c.ObjectKey) == "" {
		return fmt.Errorf("%w: object key is required", ErrInvalidClaimCheck)
	}
	if strings.TrimSpace(c.Checksum) == "" {
		return fmt.Errorf("%w: checksum is required", ErrInvalidClaimCheck)
	}
	for name, v := range map[string]string{
		"provider": c.Provider,
		"project":  c.Project,
		"location": c.Location,
		"bucket":   c.Bucket,
		"checksum": c.Checksum,
	} {
		if strings.Contains(v, ":") {
			return fmt.Errorf("%w: %s must not contain ':'", ErrInvalidClaimCheck, name)
		}
	}
	return nil
}

// Format renders the token. Call Validate first when the parts are untrusted.
func (c ClaimCheck) Format() string {
	return strings.Join([]string{c.Provider, c.Project, c.Location, c.Bucket, c.ObjectKey, c.Checksum}, ":")
}

func (c ClaimCheck) String() string { return c.Format() }

func ParseClaimCheck(token string) (ClaimCheck, error) {
	token = strings.TrimSpace(token)
	parts := strings.SplitN(token, ":", 5)
	if len(parts) != 5 {
		return ClaimCheck{}, fmt.Errorf("%w: expected 6 fields in %q", ErrInvalidClaimCheck, token)
	}
	rest := parts[4]
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return ClaimCheck{}, fmt.Errorf("%w: missing checksum in %q", ErrInvalidClaimCheck, token)
	}
	c := ClaimCheck{
		Provider:  parts[0],
		Project:   parts[1],
		Location:  parts[2],
		Bucket:    parts[3],
		ObjectKey: rest[:i],
		Checksum:  rest[i+1:],
	}
	if err := c.Validate(); err != nil {
		return ClaimCheck{}, err
	}
	return c, nil
}

// ClaimCheckFromURL derives a claim check from the public url an object store
// handed out. Recognized forms:
//
//	https://<host>/<bucket>/<key>
//	<emulator>/storage/v1/b/<bucket>/o/<key>?alt=media
//	https://<cdn>/<key> (bucket taken from loc)
func ClaimCheckFromURL(loc Locator, rawURL, checksum string) (ClaimCheck, error) {
	bucket, key, err := SplitObjectURL(rawURL, loc.Bucket)
	if err != nil {
		return ClaimCheck{}, err
	}
	provider := strings.TrimSpace(loc.Provider)
	if provider == "" {
		provider = ProviderGCS
	}
	c := ClaimCheck{
		Provider:  provider,
		Project:   strings.TrimSpace(loc.Project),
		Location:  strings.TrimSpace(loc.Location),
		Bucket:    bucket,
		ObjectKey: key,
		Checksum:  strings.TrimSpace(checksum),
	}
	if err := c.Validate(); err != nil {
		return ClaimCheck{}, err
	}
	return c, nil
}

// SplitObjectURL returns the bucket and object key addressed by rawURL.
// defaultBucket is used when the url carries only a key.
func SplitObjectURL(rawURL, defaultBucket string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: url %q is not absolute", ErrInvalidClaimCheck, rawURL)
	}
	p := strings.TrimPrefix(u.EscapedPath(), "/")

	if rest, ok := strings.CutPrefix(p, "storage/v1/b/"); ok {
		b, k, found := strings.Cut(rest, "/o/")
		if !found {
			return "", "", fmt.Errorf("%w: malformed emulator url %q", ErrInvalidClaimCheck, rawURL)
		}
		return unescapePair(b, k, rawURL)
	}

	first, rest, found := strings.Cut(p, "/")
	if found && (defaultBucket == "" || first == defaultBucket) {
		return unescapePair(first, rest, rawURL)
	}
	if defaultBucket == "" {
		return "", "", fmt.Errorf("%w: cannot find bucket in %q", ErrInvalidClaimCheck, rawURL)
	}
	return unescapePair(defaultBucket, p, rawURL)
}

func unescapePair(bucket, key, rawURL string) (string, string, error) {
	b, errB := url.PathUnescape(bucket)
	k, errK := url.PathUnescape(key)
	if errB != nil || errK != nil || b == "" || k == "" {
		return "", "", fmt.Errorf("%w: cannot find bucket and key in %q", ErrInvalidClaimCheck, rawURL)
	}
	return b, k, nil
}
