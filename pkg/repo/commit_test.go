package repo

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/odvcencio/gitodb/pkg/object"
)

func testIdent(name string, secs int64) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(secs, 0).In(time.FixedZone("", 0))}
}

func snapshot(t *testing.T, r *Repo, files map[string]string) object.Hash {
	t.Helper()
	for p, content := range files {
		writeRepoFile(t, r.RootDir, p, content, 0o644)
	}
	h, err := r.WriteTree()
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return h
}

func objectCount(t *testing.T, r *Repo) int {
	t.Helper()
	hashes, err := r.Store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return len(hashes)
}

func TestCommitTree_WritesCanonicalCommit(t *testing.T) {
	r := initRepo(t)
	tree := snapshot(t, r, map[string]string{"README": "hi\n"})
	author := testIdent("alice", 1700000000)

	h, err := r.CommitTree(CommitRequest{Tree: tree, Message: "first\n", Author: author})
	if err != nil {
		t.Fatalf("CommitTree: %v", err)
	}

	kind, data, err := r.Store.ReadBytes(h)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if kind != object.KindCommit {
		t.Fatalf("kind = %s, want commit", kind)
	}
	want := "tree " + tree.String() + "\n" +
		"author alice <alice@example.com> 1700000000 +0000\n" +
		"committer alice <alice@example.com> 1700000000 +0000\n" +
		"\n" +
		"first\n"
	if string(data) != want {
		t.Errorf("commit =\n%s\nwant\n%s", data, want)
	}
}

func TestCommitTree_ParentsAndCommitter(t *testing.T) {
	r := initRepo(t)
	tree := snapshot(t, r, map[string]string{"a": "1"})
	root, err := r.CommitTree(CommitRequest{Tree: tree, Message: "root\n", Author: testIdent("a", 1)})
	if err != nil {
		t.Fatalf("CommitTree root: %v", err)
	}
	other, err := r.CommitTree(CommitRequest{Tree: tree, Message: "other\n", Author: testIdent("a", 2)})
	if err != nil {
		t.Fatalf("CommitTree other: %v", err)
	}

	committer := testIdent("b", 3)
	merge, err := r.CommitTree(CommitRequest{
		Tree:      tree,
		Parents:   []object.Hash{root, other},
		Message:   "merge\n",
		Author:    testIdent("a", 3),
		Committer: &committer,
	})
	if err != nil {
		t.Fatalf("CommitTree merge: %v", err)
	}

	c, err := r.Store.ReadCommit(merge)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if len(c.Parents) != 2 || c.Parents[0] != root || c.Parents[1] != other {
		t.Errorf("parents = %v, want [%s %s]", c.Parents, root, other)
	}
	if c.Committer.Name != "b" {
		t.Errorf("committer = %s", c.Committer)
	}

	log, err := r.Log(merge, 10)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 2 || log[1].Message != "root\n" {
		t.Errorf("log = %d commits", len(log))
	}
}

func TestCommitTree_Preconditions(t *testing.T) {
	r := initRepo(t)
	tree := snapshot(t, r, map[string]string{"f": "x"})
	blob, err := r.Store.WriteFromBytes(object.KindBlob, []byte("not a tree"))
	if err != nil {
		t.Fatalf("Write blob: %v", err)
	}
	missing := object.HashObject(object.KindTree, []byte("never stored"))
	before := objectCount(t, r)

	tests := []struct {
		name string
		req  CommitRequest
		want error
	}{
		{"blob as tree", CommitRequest{Tree: blob}, object.ErrPrecondition},
		{"missing tree", CommitRequest{Tree: missing}, object.ErrNotFound},
		{"tree as parent", CommitRequest{Tree: tree, Parents: []object.Hash{tree}}, object.ErrPrecondition},
		{"missing parent", CommitRequest{Tree: tree, Parents: []object.Hash{missing}}, object.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.req.Author = testIdent("a", 0)
			tc.req.Message = "m\n"
			_, err := r.CommitTree(tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if n := objectCount(t, r); n != before {
				t.Errorf("object count = %d, want %d", n, before)
			}
		})
	}

	var mismatch *object.KindMismatchError
	_, err = r.CommitTree(CommitRequest{Tree: blob, Author: testIdent("a", 0)})
	if !errors.As(err, &mismatch) || mismatch.Got != object.KindBlob {
		t.Errorf("err = %v, want KindMismatchError for blob", err)
	}
}

func TestCommitTree_SignerFailureWritesNothing(t *testing.T) {
	r := initRepo(t)
	tree := snapshot(t, r, map[string]string{"f": "x"})
	before := objectCount(t, r)

	_, err := r.CommitTree(CommitRequest{
		Tree:   tree,
		Author: testIdent("a", 0),
		Signer: func([]byte) (string, error) { return "", errors.New("agent unavailable") },
	})
	if err == nil || !strings.Contains(err.Error(), "agent unavailable") {
		t.Fatalf("err = %v", err)
	}
	if n := objectCount(t, r); n != before {
		t.Errorf("object count = %d, want %d", n, before)
	}
}

func TestLog_RespectsLimit(t *testing.T) {
	r := initRepo(t)
	tree := snapshot(t, r, map[string]string{"f": "x"})
	var head object.Hash
	for i := 0; i < 5; i++ {
		req := CommitRequest{Tree: tree, Message: "c\n", Author: testIdent("a", int64(i))}
		if !head.IsZero() {
			req.Parents = []object.Hash{head}
		}
		h, err := r.CommitTree(req)
		if err != nil {
			t.Fatalf("CommitTree %d: %v", i, err)
		}
		head = h
	}

	log, err := r.Log(head, 3)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("len(log) = %d, want 3", len(log))
	}
	if log[0].Author.When.Unix() != 4 || log[2].Author.When.Unix() != 2 {
		t.Errorf("log order = %d..%d", log[0].Author.When.Unix(), log[2].Author.When.Unix())
	}
}
