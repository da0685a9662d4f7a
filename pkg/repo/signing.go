package repo

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitodb/pkg/object"
	"golang.org/x/crypto/ssh"
)

const commitSignaturePrefix = "sshsig-v1"

var (
	// ErrUnsigned is returned when verifying a commit without a signature.
	ErrUnsigned = errors.New("commit is not signed")
	// ErrBadSignature is returned when a signature does not verify.
	ErrBadSignature = errors.New("bad commit signature")
)

// NewSSHSigner returns a CommitSigner producing
// "sshsig-v1:<format>:<base64 public key>:<base64 signature>".
func NewSSHSigner(signer ssh.Signer) CommitSigner {
	pubB64 := base64.StdEncoding.EncodeToString(signer.PublicKey().Marshal())
	return func(payload []byte) (string, error) {
		sig, err := signer.Sign(rand.Reader, payload)
		if err != nil {
			return "", err
		}
		sigB64 := base64.StdEncoding.EncodeToString(sig.Blob)
		return fmt.Sprintf("%s:%s:%s:%s", commitSignaturePrefix, sig.Format, pubB64, sigB64), nil
	}
}

// VerifyCommitSignature checks c.Signature against the commit's signing
// payload and returns the embedded public key on success.
func VerifyCommitSignature(c *object.Commit) (ssh.PublicKey, error) {
	if strings.TrimSpace(c.Signature) == "" {
		return nil, ErrUnsigned
	}
	parts := strings.SplitN(strings.TrimSpace(c.Signature), ":", 4)
	if len(parts) != 4 || parts[0] != commitSignaturePrefix {
		return nil, fmt.Errorf("%w: unrecognized signature encoding", ErrBadSignature)
	}

	pubRaw, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", ErrBadSignature, err)
	}
	pub, err := ssh.ParsePublicKey(pubRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %w", ErrBadSignature, err)
	}
	blob, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %w", ErrBadSignature, err)
	}

	sig := &ssh.Signature{Format: parts[1], Blob: blob}
	if err := pub.Verify(object.CommitSigningPayload(c), sig); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}
	return pub, nil
}
