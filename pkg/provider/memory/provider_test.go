package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

func keysOf(objs []provider.ObjectSummary) []string {
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		out = append(out, o.Key)
	}
	return out
}

func TestListWithDelimiter_GroupsByDelimiter(t *testing.T) {
	p := New("store")
	p.PutKeys("a/1.txt", "a/2.txt", "b/x.txt", "b/c/y.txt", "top.txt", "a-z.txt")

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/", "b/"}, res.CommonPrefixes)
	assert.Equal(t, []string{"a-z.txt", "top.txt"}, keysOf(res.Objects))
	assert.False(t, res.HasMore())

	res, err = p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "b/", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b/c/"}, res.CommonPrefixes)
	assert.Equal(t, []string{"b/x.txt"}, keysOf(res.Objects))
}

func TestListWithDelimiter_PartialPrefix(t *testing.T) {
	p := New("store")
	p.PutKeys("logs/app.log", "logs2/app.log", "other.txt")

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Prefix: "logs", Delimiter: "/"})
	require.NoError(t, err)
	assert.Equal(t, []string{"logs/", "logs2/"}, res.CommonPrefixes)
	assert.Empty(t, res.Objects)
}

func TestListWithDelimiter_Paginates(t *testing.T) {
	p := New("store", WithMaxKeys(2))
	p.PutKeys("d/1", "d/2", "d/3", "d/4", "d/5", "d/sub/x")

	ctx := context.Background()
	var (
		token    string
		keys     []string
		prefixes []string
		pages    int
	)
	for {
		res, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{Prefix: "d/", Delimiter: "/", ContinuationToken: token})
		require.NoError(t, err)
		pages++
		keys = append(keys, keysOf(res.Objects)...)
		prefixes = append(prefixes, res.CommonPrefixes...)
		if !res.HasMore() {
			break
		}
		token = res.ContinuationToken
	}

	assert.Equal(t, 3, pages)
	assert.Equal(t, []string{"d/1", "d/2", "d/3", "d/4", "d/5"}, keys)
	assert.Equal(t, []string{"d/sub/"}, prefixes)
}

func TestListWithDelimiter_NoDelimiterIsFlat(t *testing.T) {
	p := New("store")
	p.PutKeys("a/1", "a/b/2")

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.CommonPrefixes)
	assert.Equal(t, []string{"a/1", "a/b/2"}, keysOf(res.Objects))
}

func TestListWithDelimiter_InvalidCursor(t *testing.T) {
	p := New("store")
	p.PutKeys("a")

	_, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{ContinuationToken: "!!not-base64!!"})
	require.Error(t, err)
	assert.True(t, provider.IsInvalidCursor(err))
}

func TestListWithDelimiter_EmptyBucket(t *testing.T) {
	p := New("store")

	res, err := p.ListWithDelimiter(context.Background(), provider.ListWithDelimiterOptions{Delimiter: "/"})
	require.NoError(t, err)
	assert.Empty(t, res.Objects)
	assert.Empty(t, res.CommonPrefixes)
	assert.False(t, res.HasMore())
	assert.Equal(t, 0, p.Len())
}

func TestListWithDelimiter_CancelledContext(t *testing.T) {
	p := New("store")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
