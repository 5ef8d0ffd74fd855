package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Keyer builds cache keys for rendered frames.
type Keyer interface {
	// FrameKey identifies the output of rendering the template with hash
	// templateHash over the source frame with hash sourceHash.
	FrameKey(templateHash, sourceHash string, opts FrameKeyOpts) string
}

// FrameKeyOpts holds the render inputs besides template and source that
// change the output.
type FrameKeyOpts struct {
	Vars    map[string]any
	Format  string
	Quality int
	Debug   bool
	// Assets fingerprints the image and font files the template reads,
	// so editing one invalidates the frames that used it.
	Assets []string
}

// DefaultKeyer produces keys of the form "frame:<sha256>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

func (DefaultKeyer) FrameKey(templateHash, sourceHash string, opts FrameKeyOpts) string {
	return hashKey("frame", templateHash, sourceHash, opts.Vars, opts.Format, opts.Quality, opts.Debug, opts.Assets)
}

// ScopedKeyer prefixes every key of an inner keyer, so several projects
// can share one redis instance without colliding.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer uses
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) FrameKey(templateHash, sourceHash string, opts FrameKeyOpts) string {
	return k.prefix + k.inner.FrameKey(templateHash, sourceHash, opts)
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hashKey joins prefix with the digest of the JSON encoding of parts.
// encoding/json sorts map keys, so equal variable maps give equal keys.
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return fmt.Sprintf("%s:%s", prefix, Hash(data))
}
