package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContentStore(t *testing.T) *ContentStore {
	t.Helper()
	text, image, audio, _ := newTestStores(t)
	return NewContentStore(text, image, audio)
}

func TestSaveRoutesByKind(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	_, mod, err := cs.Save(ctx, "alice", KindText, "plain note", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModalityText, mod)

	_, mod, err = cs.Save(ctx, "alice", KindImage, dataURI("image/png", []byte("pngbytes")), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModalityImage, mod)

	_, _, err = cs.Save(ctx, "alice", Kind("video"), "whatever", nil, nil)
	require.ErrorIs(t, err, ErrUnsupportedType)

	// The rejected save left nothing behind.
	all, err := cs.ListAll(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, all[ModalityText], 1)
	assert.Len(t, all[ModalityImage], 1)
	assert.Empty(t, all[ModalityAudio])
}

func TestSaveTagsTravelInMetadata(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	_, _, err := cs.Save(ctx, "alice", KindText, "tagged note", []string{"work", "urgent"}, nil)
	require.NoError(t, err)

	items, err := cs.Text().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, `["work","urgent"]`, items[0].Metadata["tags"])
}

func TestSavePageDistillsHTML(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	html := `<html><head><title>Roadmap</title><script>x()</script></head>
<body><p>Ship the   importer in Q3.</p></body></html>`
	_, mod, err := cs.Save(ctx, "alice", KindPage, html, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModalityText, mod)

	items, err := cs.Text().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ship the importer in Q3.", items[0].Content)
	assert.Equal(t, "Roadmap", items[0].Metadata["title"])
}

func TestSaveLinkFetchesAndDistills(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Post</title></head><body><p>Linked content body.</p></body></html>`))
	}))
	defer srv.Close()

	cs := newTestContentStore(t)
	ctx := context.Background()

	id, mod, err := cs.Save(ctx, "alice", KindLink, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModalityText, mod)

	items, err := cs.Text().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "Linked content body.", items[0].Content)
	assert.Equal(t, srv.URL, items[0].Metadata["source_url"])
}

func TestSaveVideoIndexesTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Script-rendered video pages often carry nothing but a title.
		w.Write([]byte(`<html><head><title>Concert Highlights</title></head><body><script>render()</script></body></html>`))
	}))
	defer srv.Close()

	cs := newTestContentStore(t)
	ctx := context.Background()

	id, mod, err := cs.Save(ctx, "alice", KindVideo, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ModalityText, mod)

	items, err := cs.Text().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "Concert Highlights "+srv.URL, items[0].Content)
	assert.Equal(t, "Concert Highlights", items[0].Metadata["title"])
	assert.Equal(t, srv.URL, items[0].Metadata["source_url"])
}

func TestSaveLinkFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cs := newTestContentStore(t)
	_, _, err := cs.Save(context.Background(), "alice", KindLink, srv.URL, nil, nil)
	var ierr *IngestionError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, StageDecode, ierr.Stage)
}

func TestSearchFansOutAcrossModalities(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	textID, _, err := cs.Save(ctx, "alice", KindText, "mountain hiking trip notes", nil, nil)
	require.NoError(t, err)
	imageID, _, err := cs.Save(ctx, "alice", KindImage, dataURI("image/png", []byte("mountain-photo-bytes")), nil, nil)
	require.NoError(t, err)

	byModality, err := cs.Search(ctx, "alice", "mountain", nil, 5)
	require.NoError(t, err)

	require.Len(t, byModality[ModalityText], 1)
	assert.Equal(t, textID, byModality[ModalityText][0].ID)
	require.Len(t, byModality[ModalityImage], 1)
	assert.Equal(t, imageID, byModality[ModalityImage][0].ID)
	// Empty partitions still answer, with no hits.
	assert.Empty(t, byModality[ModalityAudio])

	// A types filter restricts which partitions are consulted.
	textOnly, err := cs.Search(ctx, "alice", "mountain", []Modality{ModalityText}, 5)
	require.NoError(t, err)
	require.Len(t, textOnly[ModalityText], 1)
	_, queried := textOnly[ModalityImage]
	assert.False(t, queried)
}

func TestDeleteAcrossModalities(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	id, _, err := cs.Save(ctx, "alice", KindImage, dataURI("image/png", []byte("to-delete")), nil, nil)
	require.NoError(t, err)

	require.NoError(t, cs.Delete(ctx, "alice", id))
	assert.ErrorIs(t, cs.Delete(ctx, "alice", id), ErrNotFound)
}

func TestUpdateTextViaFacade(t *testing.T) {
	cs := newTestContentStore(t)
	ctx := context.Background()

	id, _, err := cs.Save(ctx, "alice", KindText, "original wording", nil, nil)
	require.NoError(t, err)

	require.NoError(t, cs.UpdateText(ctx, "alice", id, "revised wording", nil))
	items, err := cs.Text().List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "revised wording", items[0].Content)
}
