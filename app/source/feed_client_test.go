package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportFeed(count int) string {
	var items strings.Builder
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&items, `
		<item>
			<title>Post %d</title>
			<link>https://legacy.example/post-%d/</link>
			<guid isPermaLink="false">https://legacy.example/?p=%d</guid>
			<pubDate>Mon, 04 May 2020 10:00:00 +0000</pubDate>
			<description><![CDATA[Excerpt %d]]></description>
			<content:encoded><![CDATA[<p><img src="https://legacy.example/wp-content/uploads/2020/%d.jpg"></p>]]></content:encoded>
			<wp:post_id>%d</wp:post_id>
		</item>`, i, i, i, i, i, 100+i)
	}

	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
	xmlns:content="http://purl.org/rss/1.0/modules/content/"
	xmlns:wp="http://wordpress.org/export/1.2/">
	<channel>
		<title>Legacy Blog</title>
		<link>https://legacy.example</link>
		<description>Export</description>` + items.String() + `
	</channel>
</rss>`
}

func writeFeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.xml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFeedClient_FetchPostsPage_Paging(t *testing.T) {
	client := NewFeedClient(&http.Client{}, writeFeedFile(t, exportFeed(5)), "post-migrate-test", 5*time.Second)
	ctx := context.Background()

	var sizes []int
	var ids []string
	for page := 0; ; page++ {
		posts, err := client.FetchPostsPage(ctx, page, 2)
		require.NoError(t, err)
		sizes = append(sizes, len(posts))
		for _, post := range posts {
			ids = append(ids, post.ID)
		}
		if len(posts) < 2 {
			break
		}
	}

	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, []string{"101", "102", "103", "104", "105"}, ids)
}

func TestFeedClient_FetchPostsPage_ItemFields(t *testing.T) {
	client := NewFeedClient(&http.Client{}, writeFeedFile(t, exportFeed(1)), "post-migrate-test", 5*time.Second)

	posts, err := client.FetchPostsPage(context.Background(), 0, 10)

	require.NoError(t, err)
	require.Len(t, posts, 1)

	post := posts[0]
	assert.Equal(t, "101", post.ID)
	assert.Equal(t, "Post 1", post.Title)
	assert.Equal(t, "https://legacy.example/post-1/", post.Link)
	assert.Equal(t, "Excerpt 1", post.Excerpt)
	assert.Contains(t, post.Body, "wp-content/uploads/2020/1.jpg")
	assert.Equal(t, time.Date(2020, 5, 4, 10, 0, 0, 0, time.UTC), post.PublishedAt)
}

func TestFeedClient_FetchPostsPage_GUIDFallback(t *testing.T) {
	feed := `<?xml version="1.0"?>
<rss version="2.0">
	<channel>
		<title>Plain</title>
		<item>
			<title>No export ID</title>
			<guid>https://legacy.example/?p=7</guid>
			<description><![CDATA[<p>Only a description</p>]]></description>
		</item>
	</channel>
</rss>`
	client := NewFeedClient(&http.Client{}, writeFeedFile(t, feed), "post-migrate-test", 5*time.Second)

	posts, err := client.FetchPostsPage(context.Background(), 0, 10)

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "https://legacy.example/?p=7", posts[0].ID)
	assert.Equal(t, "<p>Only a description</p>", posts[0].Body)
	assert.Empty(t, posts[0].Excerpt)
}

func TestFeedClient_FetchPostsPage_PastEnd(t *testing.T) {
	client := NewFeedClient(&http.Client{}, writeFeedFile(t, exportFeed(3)), "post-migrate-test", 5*time.Second)

	posts, err := client.FetchPostsPage(context.Background(), 4, 2)

	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestFeedClient_FetchPostsPage_LoadsOnceOverHTTP(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "post-migrate-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(exportFeed(4)))
	}))
	defer server.Close()

	client := NewFeedClient(&http.Client{}, server.URL+"/export.xml", "post-migrate-test", 5*time.Second)
	ctx := context.Background()

	first, err := client.FetchPostsPage(ctx, 0, 2)
	require.NoError(t, err)
	second, err := client.FetchPostsPage(ctx, 1, 2)
	require.NoError(t, err)

	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFeedClient_FetchPostsPage_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewFeedClient(&http.Client{}, server.URL, "post-migrate-test", 5*time.Second)

	_, err := client.FetchPostsPage(context.Background(), 0, 2)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestFeedClient_FetchPostsPage_InvalidFeed(t *testing.T) {
	client := NewFeedClient(&http.Client{}, writeFeedFile(t, "not a feed"), "post-migrate-test", 5*time.Second)

	_, err := client.FetchPostsPage(context.Background(), 0, 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse feed")
}

func TestFeedClient_FetchPostsPage_MissingFile(t *testing.T) {
	client := NewFeedClient(&http.Client{}, filepath.Join(t.TempDir(), "missing.xml"), "post-migrate-test", 5*time.Second)

	_, err := client.FetchPostsPage(context.Background(), 0, 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read feed file")
}
