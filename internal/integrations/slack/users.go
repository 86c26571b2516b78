package slackbot

import (
	"context"
	"strings"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

type userDirectory interface {
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
}

// ResolveUserIDs turns configured alert mentions into Slack user IDs.
// Entries that already look like IDs pass through; names are matched
// case-insensitively against handle, real name and display name. The
// directory is only listed when at least one name needs resolving.
func ResolveUserIDs(ctx context.Context, dir userDirectory, identifiers []string, logger *zap.Logger) ([]string, []string, error) {
	var ids, names []string
	for _, raw := range identifiers {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if isLikelySlackID(val) {
			ids = append(ids, val)
		} else {
			names = append(names, val)
		}
	}
	if len(names) == 0 {
		return uniqueStrings(ids), nil, nil
	}

	users, err := dir.GetUsersContext(ctx)
	if err != nil {
		logger.Warn("slack user directory unavailable", zap.Error(err))
		return uniqueStrings(ids), names, err
	}

	nameToID := make(map[string]string)
	for _, user := range users {
		for _, n := range []string{user.Name, user.RealName, user.Profile.DisplayName} {
			n = strings.ToLower(strings.TrimSpace(n))
			if n == "" {
				continue
			}
			if _, exists := nameToID[n]; !exists {
				nameToID[n] = user.ID
			}
		}
	}

	var unresolved []string
	for _, name := range names {
		if id, ok := nameToID[strings.ToLower(name)]; ok {
			ids = append(ids, id)
		} else {
			unresolved = append(unresolved, name)
		}
	}
	logger.Debug("resolved alert mentions", zap.Int("ids", len(ids)), zap.Strings("unresolved", unresolved))
	return uniqueStrings(ids), unresolved, nil
}

func isLikelySlackID(val string) bool {
	if len(val) < 9 {
		return false
	}
	for i, r := range val {
		if i == 0 {
			if r != 'U' && r != 'W' {
				return false
			}
			continue
		}
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func uniqueStrings(vals []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range vals {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
