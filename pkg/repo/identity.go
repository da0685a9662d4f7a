package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitodb/pkg/object"
	"github.com/sethvargo/go-envconfig"
)

// identityEnv holds the environment overrides for commit identities.
type identityEnv struct {
	AuthorName     string `env:"GIT_AUTHOR_NAME"`
	AuthorEmail    string `env:"GIT_AUTHOR_EMAIL"`
	AuthorDate     string `env:"GIT_AUTHOR_DATE"`
	CommitterName  string `env:"GIT_COMMITTER_NAME"`
	CommitterEmail string `env:"GIT_COMMITTER_EMAIL"`
	CommitterDate  string `env:"GIT_COMMITTER_DATE"`
	User           string `env:"USER"`
}

// Identity resolves the author and committer for a new commit from the
// process environment, falling back to [user] in config.toml and then to
// $USER. Both timestamps default to now.
func (r *Repo) Identity(ctx context.Context, now time.Time) (author, committer object.Signature, err error) {
	return ResolveIdentity(ctx, r.Config.User, envconfig.OsLookuper(), now)
}

// ResolveIdentity is Identity with an explicit configuration and variable
// source.
func ResolveIdentity(ctx context.Context, user UserConfig, lookuper envconfig.Lookuper, now time.Time) (author, committer object.Signature, err error) {
	var env identityEnv
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &env, Lookuper: lookuper}); err != nil {
		return author, committer, fmt.Errorf("identity: %w", err)
	}

	name := firstNonEmpty(user.Name, env.User, "unknown")
	email := user.Email

	author = object.Signature{
		Name:  firstNonEmpty(env.AuthorName, name),
		Email: firstNonEmpty(env.AuthorEmail, email),
		When:  now,
	}
	if env.AuthorDate != "" {
		if author.When, err = parseDate(env.AuthorDate); err != nil {
			return author, committer, fmt.Errorf("identity: GIT_AUTHOR_DATE: %w", err)
		}
	}

	committer = object.Signature{
		Name:  firstNonEmpty(env.CommitterName, name),
		Email: firstNonEmpty(env.CommitterEmail, email),
		When:  now,
	}
	if env.CommitterDate != "" {
		if committer.When, err = parseDate(env.CommitterDate); err != nil {
			return author, committer, fmt.Errorf("identity: GIT_COMMITTER_DATE: %w", err)
		}
	}
	return author, committer, nil
}

// parseDate accepts "<unix> <+hhmm>", optionally with a leading "@".
func parseDate(s string) (time.Time, error) {
	return object.ParseTimestamp(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
