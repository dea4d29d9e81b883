package registry

import (
	"fmt"
	"sort"
	"strings"

	"memebot/pkg/memebot"
)

// ListFilter selects the ordering and subset returned by List.
type ListFilter string

const (
	// ListActive lists unarchived memes by most plays first. It is the default.
	ListActive ListFilter = "active"
	// ListMostPlayed lists unarchived memes by most plays first.
	ListMostPlayed ListFilter = "most"
	// ListLeastPlayed lists unarchived memes by fewest plays first.
	ListLeastPlayed ListFilter = "least"
	// ListNewest lists unarchived memes by most recent registration first.
	ListNewest ListFilter = "newest"
	// ListOldest lists unarchived memes by earliest registration first.
	ListOldest ListFilter = "oldest"
	// ListAll lists every meme by name.
	ListAll ListFilter = "all"
	// ListArchived lists archived memes by name.
	ListArchived ListFilter = "archived"
	// ListVoting lists every meme name present in any citizen's vote ledger.
	ListVoting ListFilter = "voting"
)

// ParseListFilter maps a user token to a list filter. The empty token selects
// the default active listing.
func ParseListFilter(token string) (ListFilter, error) {
	switch strings.ToLower(token) {
	case "":
		return ListActive, nil
	case "most":
		return ListMostPlayed, nil
	case "least":
		return ListLeastPlayed, nil
	case "newest", "new":
		return ListNewest, nil
	case "oldest", "old":
		return ListOldest, nil
	case "all":
		return ListAll, nil
	case "archived", "archives", "archive":
		return ListArchived, nil
	case "votes", "voting", "vote":
		return ListVoting, nil
	default:
		return "", fmt.Errorf("%w: unknown list filter %q", memebot.ErrValidation, token)
	}
}

// List returns meme names selected and ordered by filter. The voting filter
// reads the citizens' ledgers instead of the registry proper and marks
// archived memes with a trailing asterisk.
func (r *Registry) List(filter ListFilter, citizens []*memebot.Citizen) []string {
	if filter == ListVoting {
		return r.listVoting(citizens)
	}

	memes := append([]*memebot.Meme(nil), r.memes...)
	switch filter {
	case ListActive, ListMostPlayed:
		sort.SliceStable(memes, func(i, j int) bool { return memes[i].PlayCount > memes[j].PlayCount })
	case ListLeastPlayed:
		sort.SliceStable(memes, func(i, j int) bool { return memes[i].PlayCount < memes[j].PlayCount })
	case ListNewest:
		sort.SliceStable(memes, func(i, j int) bool { return memes[i].DateAdded.After(memes[j].DateAdded) })
	case ListOldest:
		sort.SliceStable(memes, func(i, j int) bool { return memes[i].DateAdded.Before(memes[j].DateAdded) })
	case ListAll, ListArchived:
		sort.SliceStable(memes, func(i, j int) bool {
			return strings.ToLower(memes[i].Name) < strings.ToLower(memes[j].Name)
		})
	}

	names := make([]string, 0, len(memes))
	for _, meme := range memes {
		switch filter {
		case ListAll:
		case ListArchived:
			if !meme.Archived {
				continue
			}
		default:
			if meme.Archived {
				continue
			}
		}
		names = append(names, meme.Name)
	}

	return names
}

func (r *Registry) listVoting(citizens []*memebot.Citizen) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, citizen := range citizens {
		for memeName := range citizen.Votes {
			label := memeName
			if index, exists := r.Resolve(memeName); exists && r.memes[index].Archived {
				label += "*"
			}
			if _, duplicate := seen[label]; duplicate {
				continue
			}
			seen[label] = struct{}{}
			names = append(names, label)
		}
	}
	sort.Strings(names)

	return names
}

// renderBudget is the maximum rendered list size, one character under the
// platform's 2000-character message limit.
const renderBudget = 1999

// RenderList renders names as a fenced listing truncated to the rendering
// budget, or the no-memes indicator when nothing qualifies.
func RenderList(names []string) string {
	var builder strings.Builder
	builder.WriteString("```")
	for _, name := range names {
		if builder.Len()+len(name)+2 > renderBudget {
			continue
		}
		builder.WriteString(name)
		builder.WriteString(", ")
	}

	if builder.Len() <= 3 {
		return "```No memes :'(```"
	}

	return strings.TrimSuffix(builder.String(), ", ") + "```"
}
