package youtube

import (
	"context"
	"errors"
	"fmt"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/tree"
)

// ErrNoSortMenu means the page has no comments section, or one this package
// does not recognize.
var ErrNoSortMenu = errors.New("comment sort menu not found")

// Sort menu entries, by position.
const (
	sortTop    = 0
	sortNewest = 1
)

// ResolveSortMenu finds the comment sort menu in the session's initial data. When the
// comments section was not rendered eagerly, it follows the first continuation under
// the section list once and looks again in that response.
func ResolveSortMenu(ctx context.Context, s *Session, f Fetcher) ([]any, error) {
	if menu := sortMenuItems(s.InitialData); len(menu) > 0 {
		return menu, nil
	}

	section := tree.FirstMap(s.InitialData, "sectionListRenderer")
	ep, ok := tree.First(section, "continuationEndpoint")
	if !ok {
		return nil, ErrNoSortMenu
	}
	res, err := f.Fetch(ctx, Continuation(tree.Map(ep)))
	if err != nil {
		if errors.Is(err, ErrBadContinuation) {
			return nil, ErrNoSortMenu
		}
		return nil, fmt.Errorf("load comments section: %w", err)
	}
	if menu := sortMenuItems(res.Data); len(menu) > 0 {
		return menu, nil
	}
	return nil, ErrNoSortMenu
}

func sortMenuItems(data map[string]any) []any {
	if data == nil {
		return nil
	}
	r := tree.FirstMap(data, "sortFilterSubMenuRenderer")
	return tree.Slice(r["subMenuItems"])
}

// InitialContinuation picks the entry for the requested order: top comments first,
// or newest first.
func InitialContinuation(menu []any, newestFirst bool) (Continuation, error) {
	i := sortTop
	if newestFirst {
		i = sortNewest
	}
	if i >= len(menu) {
		return nil, fmt.Errorf("%w: no entry %d among %d", ErrNoSortMenu, i, len(menu))
	}
	c := Continuation(tree.Map(tree.Map(menu[i])["serviceEndpoint"]))
	if !c.Valid() {
		return nil, fmt.Errorf("%w: entry %d has no continuation", ErrNoSortMenu, i)
	}
	return c, nil
}
