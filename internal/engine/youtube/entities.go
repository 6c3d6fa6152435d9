package youtube

import (
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_ytcrawl/internal/engine/tree"
)

const heartedState = "TOOLBAR_HEART_STATE_HEARTED"

// MalformedEntityError reports a comment entity missing a required field.
// It aborts parsing of the whole page.
type MalformedEntityError struct {
	Field     string
	CommentID string
}

func (e *MalformedEntityError) Error() string {
	if e.CommentID == "" {
		return fmt.Sprintf("malformed comment entity: missing %s", e.Field)
	}
	return fmt.Sprintf("malformed comment entity %s: missing %s", e.CommentID, e.Field)
}

// ParseComments extracts the comments of one response page.
//
// Entities are emitted in the reverse of their order in the payload. Hearts are
// resolved through the page's toolbar state entities; a comment whose state key is
// absent is simply not hearted.
func ParseComments(videoID string, payload any) ([]Comment, error) {
	states := map[string]map[string]any{}
	for v := range tree.Search(payload, "engagementToolbarStateEntityPayload") {
		st := tree.Map(v)
		if st == nil {
			continue
		}
		if key := tree.Str(st["key"]); key != "" {
			states[key] = st
		}
	}

	raw := tree.All(payload, "commentEntityPayload")
	out := make([]Comment, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		c, err := parseEntity(videoID, tree.Map(raw[i]), states)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func parseEntity(videoID string, ent map[string]any, states map[string]map[string]any) (Comment, error) {
	props := tree.Map(ent["properties"])
	if props == nil {
		return Comment{}, &MalformedEntityError{Field: "properties"}
	}
	cid := tree.Str(props["commentId"])
	if cid == "" {
		return Comment{}, &MalformedEntityError{Field: "properties.commentId"}
	}
	author := tree.Map(ent["author"])
	if author == nil {
		return Comment{}, &MalformedEntityError{Field: "author", CommentID: cid}
	}
	toolbar := tree.Map(ent["toolbar"])
	if toolbar == nil {
		return Comment{}, &MalformedEntityError{Field: "toolbar", CommentID: cid}
	}

	votes := strings.TrimSpace(tree.Str(toolbar["likeCountNotliked"]))
	if votes == "" {
		votes = "0"
	}
	state := states[tree.Str(props["toolbarStateKey"])]

	return Comment{
		CID:     cid,
		VID:     videoID,
		Text:    tree.Str(tree.Path(props, "content", "content")),
		Time:    tree.Str(props["publishedTime"]),
		Author:  tree.Str(author["displayName"]),
		Channel: tree.Str(author["channelId"]),
		Votes:   votes,
		Replies: tree.Str(toolbar["replyCount"]),
		Photo:   tree.Str(author["avatarThumbnailUrl"]),
		Heart:   tree.Str(state["heartState"]) == heartedState,
		Reply:   strings.Contains(cid, "."),
	}, nil
}
