package repo

import (
	"errors"
	"fmt"

	"github.com/odvcencio/gitodb/pkg/object"
	"go.uber.org/zap"
)

// CommitSigner signs canonical commit payload bytes and returns an encoded
// signature string to be persisted in Commit.Signature.
type CommitSigner func(payload []byte) (string, error)

// CommitRequest describes a commit to compose.
type CommitRequest struct {
	Tree    object.Hash
	Parents []object.Hash
	Message string
	Author  object.Signature
	// Committer defaults to Author when nil.
	Committer *object.Signature
	// Signer, when set, signs the commit before it is written.
	Signer CommitSigner
}

// CommitTree composes and stores a commit. Tree must name a stored tree and
// every parent a stored commit; otherwise an error wrapping
// object.ErrPrecondition (or object.ErrNotFound) is returned and nothing is
// written.
func (r *Repo) CommitTree(req CommitRequest) (object.Hash, error) {
	if err := r.requireKind(req.Tree, object.KindTree); err != nil {
		return object.ZeroHash, fmt.Errorf("commit-tree: tree: %w", err)
	}
	for _, p := range req.Parents {
		if err := r.requireKind(p, object.KindCommit); err != nil {
			return object.ZeroHash, fmt.Errorf("commit-tree: parent: %w", err)
		}
	}

	c := &object.Commit{
		Tree:      req.Tree,
		Parents:   req.Parents,
		Author:    req.Author,
		Committer: req.Author,
		Message:   req.Message,
	}
	if req.Committer != nil {
		c.Committer = *req.Committer
	}
	if req.Signer != nil {
		sig, err := req.Signer(object.CommitSigningPayload(c))
		if err != nil {
			return object.ZeroHash, fmt.Errorf("commit-tree: sign commit: %w", err)
		}
		c.Signature = sig
	}

	h, err := r.Store.WriteCommit(c)
	if err != nil {
		return object.ZeroHash, fmt.Errorf("commit-tree: write commit: %w", err)
	}
	r.log.Debug("commit written", zap.Stringer("id", h), zap.Stringer("tree", req.Tree), zap.Int("parents", len(req.Parents)))
	return h, nil
}

func (r *Repo) requireKind(h object.Hash, want object.Kind) error {
	hdr, err := r.Store.Stat(h)
	if err != nil {
		return err
	}
	if hdr.Kind != want {
		return &object.KindMismatchError{ID: h, Got: hdr.Kind, Want: want}
	}
	return nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first. A missing
// ancestor ends the walk.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.Commit, error) {
	var commits []*object.Commit
	current := start

	for len(commits) < limit {
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) && len(commits) > 0 {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}
