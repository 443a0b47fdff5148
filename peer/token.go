package peer

import (
	"bytes"
	"fmt"
)

// AuthToken identifies a remote or local party involved in a peer
// relationship. There are two concrete forms: a Trust token, identified by a
// name known in advance, and a Challenge token, identified by a public key
// learned during authorization.
type AuthToken interface {
	// Kind returns the discriminant used to order distinct token variants
	// against one another.
	Kind() tokenKind

	// Less reports whether this token sorts strictly before other. The
	// ordering is lexicographic on kind, then on the token's own bytes,
	// and is the tie-breaker used for simultaneous connections.
	Less(other AuthToken) bool

	// Equal reports whether this token is identical to other.
	Equal(other AuthToken) bool

	// String renders the token for logs and map keys. Trust and
	// Challenge tokens never collide in this encoding.
	String() string
}

type tokenKind uint8

const (
	kindTrust tokenKind = iota
	kindChallenge
)

// TrustToken is a token authenticated by a well-known identity string.
type TrustToken struct {
	Identity string
}

// Trust constructs a Trust token for the given identity.
func Trust(identity string) TrustToken {
	return TrustToken{Identity: identity}
}

func (t TrustToken) Kind() tokenKind { return kindTrust }

func (t TrustToken) Less(other AuthToken) bool {
	if t.Kind() != other.Kind() {
		return t.Kind() < other.Kind()
	}
	o := other.(TrustToken)
	return t.Identity < o.Identity
}

func (t TrustToken) Equal(other AuthToken) bool {
	o, ok := other.(TrustToken)
	return ok && o.Identity == t.Identity
}

func (t TrustToken) String() string {
	return fmt.Sprintf("Trust(%s)", t.Identity)
}

// ChallengeToken is a token authenticated by a public key learned via the
// authorization handshake.
type ChallengeToken struct {
	PublicKey []byte
}

// Challenge constructs a Challenge token for the given public key.
func Challenge(publicKey []byte) ChallengeToken {
	cp := make([]byte, len(publicKey))
	copy(cp, publicKey)
	return ChallengeToken{PublicKey: cp}
}

func (c ChallengeToken) Kind() tokenKind { return kindChallenge }

func (c ChallengeToken) Less(other AuthToken) bool {
	if c.Kind() != other.Kind() {
		return c.Kind() < other.Kind()
	}
	o := other.(ChallengeToken)
	return bytes.Compare(c.PublicKey, o.PublicKey) < 0
}

func (c ChallengeToken) Equal(other AuthToken) bool {
	o, ok := other.(ChallengeToken)
	return ok && bytes.Equal(o.PublicKey, c.PublicKey)
}

func (c ChallengeToken) String() string {
	return fmt.Sprintf("Challenge(%x)", c.PublicKey)
}

// TokenPair is the unique key for a logical peer: a remote token paired with
// the local token the remote is required to present itself to.
type TokenPair struct {
	Remote AuthToken
	Local  AuthToken
}

// NewTokenPair builds the key for a peer identified by remote, reachable
// under the local identity local.
func NewTokenPair(remote, local AuthToken) TokenPair {
	return TokenPair{Remote: remote, Local: local}
}

// String renders both halves of the pair, matching the original's log line
// convention of never showing the remote token alone when more than one
// local identity is in play.
func (p TokenPair) String() string {
	return fmt.Sprintf("%s (local: %s)", p.Remote, p.Local)
}

// key returns a canonical, comparable string usable as a Go map key. A
// TokenPair cannot itself be a map key because ChallengeToken carries a
// byte slice.
func (p TokenPair) key() string {
	return fmt.Sprintf("%d:%s|%d:%s", p.Remote.Kind(), p.Remote, p.Local.Kind(), p.Local)
}

// Equal reports whether two pairs name the same peer under the same local
// identity.
func (p TokenPair) Equal(other TokenPair) bool {
	return p.Remote.Equal(other.Remote) && p.Local.Equal(other.Local)
}
