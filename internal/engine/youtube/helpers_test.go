package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func contJSON(token string) string {
	return fmt.Sprintf(`{"clickTrackingParams":"CAA=","commandMetadata":{"webCommandMetadata":{"sendPost":true,"apiUrl":"/youtubei/v1/next"}},"continuationCommand":{"token":%q,"request":"CONTINUATION_REQUEST_TYPE_WATCH_NEXT"}}`, token)
}

func cont(t testing.TB, token string) Continuation {
	t.Helper()
	var c Continuation
	require.NoError(t, json.Unmarshal([]byte(contJSON(token)), &c))
	return c
}

type entity struct {
	id, text, votes, stateKey string
}

func entityJSON(e entity) string {
	return fmt.Sprintf(`{"entityKey":"k-%[1]s","type":"ENTITY_MUTATION_TYPE_REPLACE","payload":{"commentEntityPayload":{"key":"k-%[1]s","properties":{"commentId":%[1]q,"content":{"content":%[2]q},"publishedTime":"1 day ago","toolbarStateKey":%[4]q},"author":{"displayName":"@user-%[1]s","channelId":"UC%[1]s","avatarThumbnailUrl":"https://yt3.ggpht.com/%[1]s.jpg"},"toolbar":{"likeCountNotliked":%[3]q,"replyCount":"2"}}}}`,
		e.id, e.text, e.votes, e.stateKey)
}

func stateJSON(key, heart string) string {
	return fmt.Sprintf(`{"entityKey":%[1]q,"payload":{"engagementToolbarStateEntityPayload":{"key":%[1]q,"heartState":%[2]q,"likeState":"TOOLBAR_LIKE_STATE_INDIFFERENT"}}}`, key, heart)
}

// pageData builds a /next response. next tokens hang off a comments-section reload
// command, reply tokens off a "show more replies" placeholder; reload commands are
// discovered before append actions.
func pageData(t testing.TB, next, replies []string, mutations ...string) map[string]any {
	t.Helper()
	var endpoints []string
	if len(next) > 0 {
		items := make([]string, len(next))
		for i, tok := range next {
			items[i] = fmt.Sprintf(`{"continuationItemRenderer":{"trigger":"CONTINUATION_TRIGGER_ON_ITEM_SHOWN","continuationEndpoint":%s}}`, contJSON(tok))
		}
		endpoints = append(endpoints, fmt.Sprintf(
			`{"reloadContinuationItemsCommand":{"targetId":"comments-section","slot":"RELOAD_CONTINUATION_SLOT_BODY","continuationItems":[%s]}}`,
			strings.Join(items, ",")))
	}
	if len(replies) > 0 {
		items := make([]string, len(replies))
		for i, tok := range replies {
			items[i] = fmt.Sprintf(`{"continuationItemRenderer":{"button":{"buttonRenderer":{"text":{"simpleText":"Show more replies"},"command":%s}}}}`, contJSON(tok))
		}
		endpoints = append(endpoints, fmt.Sprintf(
			`{"appendContinuationItemsAction":{"targetId":"comment-replies-item-Ugx","continuationItems":[%s]}}`,
			strings.Join(items, ",")))
	}
	raw := fmt.Sprintf(`{"responseContext":{"visitorData":"x"},"onResponseReceivedEndpoints":[%s],"frameworkUpdates":{"entityBatchUpdate":{"mutations":[%s]}}}`,
		strings.Join(endpoints, ","), strings.Join(mutations, ","))
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data), raw)
	return data
}

// scriptFetcher serves canned pages by token and records dispatch order.
type scriptFetcher struct {
	pages   map[string]map[string]any
	calls   []string
	onFetch func(token string)
}

func (f *scriptFetcher) Fetch(_ context.Context, c Continuation) (Result, error) {
	tok := c.Token()
	f.calls = append(f.calls, tok)
	if f.onFetch != nil {
		f.onFetch(tok)
	}
	p, ok := f.pages[tok]
	if !ok {
		return Result{}, nil
	}
	return Result{Kind: ResultData, Data: p}, nil
}

type fetchFunc func(ctx context.Context, c Continuation) (Result, error)

func (f fetchFunc) Fetch(ctx context.Context, c Continuation) (Result, error) { return f(ctx, c) }

func cids(cs []Comment) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.CID
	}
	return out
}
