package object

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature identifies who authored or committed a change and when.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// String renders "Name <email> <unix-seconds> <+hhmm>".
func (s Signature) String() string {
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), s.When.Format("-0700"))
}

// ParseSignature parses the value of an author or committer header.
func ParseSignature(s string) (Signature, error) {
	open := strings.LastIndexByte(s, '<')
	closing := strings.LastIndexByte(s, '>')
	if open < 0 || closing < open {
		return Signature{}, fmt.Errorf("%w: signature %q: missing <email>", ErrFormat, s)
	}
	sig := Signature{
		Name:  strings.TrimSpace(s[:open]),
		Email: s[open+1 : closing],
	}
	when, err := ParseTimestamp(strings.TrimSpace(s[closing+1:]))
	if err != nil {
		return Signature{}, fmt.Errorf("signature %q: %w", s, err)
	}
	sig.When = when
	return sig, nil
}

// ParseTimestamp parses "<unix-seconds> <+hhmm>" into a time carrying the
// given fixed offset.
func ParseTimestamp(s string) (time.Time, error) {
	secsText, tz, ok := strings.Cut(s, " ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: want \"<seconds> <+hhmm>\"", ErrFormat, s)
	}
	secs, err := strconv.ParseInt(secsText, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrFormat, s, err)
	}
	offset, err := parseTZOffset(tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).In(time.FixedZone("", offset)), nil
}

func parseTZOffset(tz string) (int, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') || !isDecimal(tz[1:]) {
		return 0, fmt.Errorf("%w: timezone %q: want +hhmm", ErrFormat, tz)
	}
	hours, _ := strconv.Atoi(tz[1:3])
	minutes, _ := strconv.Atoi(tz[3:5])
	if minutes > 59 {
		return 0, fmt.Errorf("%w: timezone %q: minutes out of range", ErrFormat, tz)
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// Commit is a decoded commit payload.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    Signature
	Committer Signature
	// Signature is an optional detached signature over CommitSigningPayload.
	Signature string
	Message   string
}

// MarshalCommit serializes a commit:
//
//	tree H
//	parent H     (zero or more, in order)
//	author A
//	committer C
//	gpgsig S     (optional)
//
//	message
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	writeCommitHeaders(&buf, c)
	if sig := strings.TrimSpace(c.Signature); sig != "" {
		fmt.Fprintf(&buf, "gpgsig %s\n", sig)
	}
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// CommitSigningPayload returns the bytes a commit signature covers: the
// commit serialized without its signature header.
func CommitSigningPayload(c *Commit) []byte {
	var buf bytes.Buffer
	writeCommitHeaders(&buf, c)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func writeCommitHeaders(buf *bytes.Buffer, c *Commit) {
	fmt.Fprintf(buf, "tree %s\n", c.Tree)
	for _, p := range c.Parents {
		fmt.Fprintf(buf, "parent %s\n", p)
	}
	fmt.Fprintf(buf, "author %s\n", c.Author)
	fmt.Fprintf(buf, "committer %s\n", c.Committer)
}

// UnmarshalCommit parses a commit payload. Unknown headers and their
// continuation lines are skipped.
func UnmarshalCommit(data []byte) (*Commit, error) {
	header, message, ok := bytes.Cut(data, []byte("\n\n"))
	if !ok {
		return nil, fmt.Errorf("unmarshal commit: %w: missing header/message separator", ErrFormat)
	}

	c := &Commit{Message: string(message)}
	var sawTree, sawAuthor, sawCommitter bool
	for _, line := range strings.Split(string(header), "\n") {
		if strings.HasPrefix(line, " ") {
			continue
		}
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: %w: malformed header line %q", ErrFormat, line)
		}
		var err error
		switch key {
		case "tree":
			c.Tree, err = ParseHash(val)
			sawTree = true
		case "parent":
			var p Hash
			p, err = ParseHash(val)
			c.Parents = append(c.Parents, p)
		case "author":
			c.Author, err = ParseSignature(val)
			sawAuthor = true
		case "committer":
			c.Committer, err = ParseSignature(val)
			sawCommitter = true
		case "gpgsig":
			c.Signature = val
		}
		if err != nil {
			if !errors.Is(err, ErrFormat) {
				err = fmt.Errorf("%w: %w", ErrFormat, err)
			}
			return nil, fmt.Errorf("unmarshal commit: %s: %w", key, err)
		}
	}
	if !sawTree || !sawAuthor || !sawCommitter {
		return nil, fmt.Errorf("unmarshal commit: %w: missing tree, author or committer", ErrFormat)
	}
	return c, nil
}
