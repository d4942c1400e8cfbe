package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allVariants() []Node {
	emb := EmbeddingID("emb_1")
	title := "Go"
	loaded := int64(5)
	return []Node{
		&Chat{NodeID: "chat_1", Title: "T", Topic: "golang", EmbeddingID: &emb},
		&Message{NodeID: "msg_1", ChatID: "chat_1", Sender: "user", Timestamp: 42, TextContent: "hi"},
		&Summary{NodeID: "sum_1", ChatID: "chat_1", Content: "short"},
		&Attachment{NodeID: "att_1", MessageID: "msg_1", MimeType: "image/png"},
		&Entity{NodeID: "ent_1", Label: "Gopher", EntityType: "animal"},
		&WebSearch{NodeID: "ws_1", Query: "badger db"},
		&ScrapedPage{NodeID: "page_1", URL: "https://go.dev", Title: &title},
		&Bookmark{NodeID: "bm_1", URL: "https://go.dev", Tags: []string{"go", "", "docs"}},
		&ImageMetadata{NodeID: "img_1", FilePath: "/tmp/a.png"},
		&AudioTranscript{NodeID: "aud_1", FilePath: "/tmp/a.wav", Transcript: "hello"},
		&ModelInfo{NodeID: "model_1", Name: "mini", Format: "gguf", LoadedAt: &loaded},
		&ActionOutcome{NodeID: "act_1", ActionType: "search", ConversationContext: "ctx",
			UserFeedback: &UserFeedback{FeedbackType: FeedbackApproval, Timestamp: 9}},
	}
}

func TestNodeRoundTrip(t *testing.T) {
	for _, n := range allVariants() {
		t.Run(string(n.Kind()), func(t *testing.T) {
			b, err := MarshalNode(n)
			require.NoError(t, err)

			kind, err := PeekKind(b)
			require.NoError(t, err)
			assert.Equal(t, n.Kind(), kind)

			got, err := UnmarshalNode(b)
			require.NoError(t, err)
			assert.Equal(t, n, got)
			assert.Equal(t, n.ID(), got.ID())
		})
	}
}

func TestUnmarshalNodeErrors(t *testing.T) {
	_, err := UnmarshalNode([]byte(`{"kind":"spaceship","data":{}}`))
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = UnmarshalNode([]byte(`not json`))
	assert.Error(t, err)

	_, err = MarshalNode(nil)
	assert.Error(t, err)
}

func TestIndexedFields(t *testing.T) {
	t.Run("node_type_first", func(t *testing.T) {
		for _, n := range allVariants() {
			f := n.IndexedFields()
			require.NotEmpty(t, f)
			assert.Equal(t, IndexedField{Property: PropNodeType, Value: string(n.Kind())}, f[0])
		}
	})

	t.Run("message_fields", func(t *testing.T) {
		m := &Message{NodeID: "m", ChatID: "chat_123", Sender: "assistant"}
		assert.Equal(t, []IndexedField{
			{PropNodeType, "message"},
			{"chat_id", "chat_123"},
			{"sender", "assistant"},
		}, m.IndexedFields())
	})

	t.Run("empty_values_skipped", func(t *testing.T) {
		m := &Message{NodeID: "m"}
		assert.Len(t, m.IndexedFields(), 1)
	})

	t.Run("bookmark_tags", func(t *testing.T) {
		b := &Bookmark{NodeID: "b", Tags: []string{"go", "", "docs"}}
		var tags []string
		for _, f := range b.IndexedFields() {
			if f.Property == "tag" {
				tags = append(tags, f.Value)
			}
		}
		assert.Equal(t, []string{"go", "docs"}, tags)
	})

	t.Run("metadata_never_indexed", func(t *testing.T) {
		e := &Entity{NodeID: "e", EntityType: "person", Metadata: Metadata{"secret": "x"}}
		for _, f := range e.IndexedFields() {
			assert.NotEqual(t, "secret", f.Property)
		}
	})
}

func TestEmbeddingRef(t *testing.T) {
	emb := EmbeddingID("emb_9")
	empty := EmbeddingID("")

	got, ok := (&Message{EmbeddingID: &emb}).EmbeddingRef()
	assert.True(t, ok)
	assert.Equal(t, emb, got)

	_, ok = (&Message{EmbeddingID: &empty}).EmbeddingRef()
	assert.False(t, ok)

	_, ok = (&ActionOutcome{}).EmbeddingRef()
	assert.False(t, ok)
}

func TestNewIDs(t *testing.T) {
	a := NewNodeID("msg")
	b := NewNodeID("msg")
	assert.True(t, strings.HasPrefix(a.String(), "msg_"))
	assert.NotEqual(t, a, b)
	assert.Len(t, NewEdgeID("").String(), 36)
	assert.True(t, strings.HasPrefix(NewEmbeddingID("emb").String(), "emb_"))
	assert.True(t, NodeID("a") < NodeID("b"))
}

func TestEdgeRoundTrip(t *testing.T) {
	e := &Edge{ID: "e1", FromNode: "a", ToNode: "b", EdgeType: "MENTIONS", CreatedAt: 7,
		Metadata: Metadata{"weight": 0.5}}
	b, err := MarshalEdge(e)
	require.NoError(t, err)
	got, err := UnmarshalEdge(b)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
