package models

// NodeKind names a node variant. It is also the value of the "node_type"
// structural index property.
type NodeKind string

const (
	KindChat            NodeKind = "chat"
	KindMessage         NodeKind = "message"
	KindSummary         NodeKind = "summary"
	KindAttachment      NodeKind = "attachment"
	KindEntity          NodeKind = "entity"
	KindWebSearch       NodeKind = "web_search"
	KindScrapedPage     NodeKind = "scraped_page"
	KindBookmark        NodeKind = "bookmark"
	KindImageMetadata   NodeKind = "image_metadata"
	KindAudioTranscript NodeKind = "audio_transcript"
	KindModelInfo       NodeKind = "model_info"
	KindActionOutcome   NodeKind = "action_outcome"
)

// PropNodeType is indexed for every node.
const PropNodeType = "node_type"

// IndexedField is one (property, value) pair a structural index records
// for a node.
type IndexedField struct {
	Property string
	Value    string
}

// Node is implemented by exactly the twelve variant types in this package.
type Node interface {
	ID() NodeID
	Kind() NodeKind

	// IndexedFields lists the structural index entries for the node,
	// node_type first. Empty values are omitted. Metadata never appears.
	IndexedFields() []IndexedField

	// EmbeddingRef returns the node's embedding, if it carries one.
	EmbeddingRef() (EmbeddingID, bool)

	node()
}

func fields(kind NodeKind, kv ...string) []IndexedField {
	out := make([]IndexedField, 0, 1+len(kv)/2)
	out = append(out, IndexedField{Property: PropNodeType, Value: string(kind)})
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			out = append(out, IndexedField{Property: kv[i], Value: kv[i+1]})
		}
	}
	return out
}

func embeddingRef(id *EmbeddingID) (EmbeddingID, bool) {
	if id == nil || *id == "" {
		return "", false
	}
	return *id, true
}

// Chat is a conversation thread.
type Chat struct {
	NodeID      NodeID       `json:"id"`
	Title       string       `json:"title"`
	Topic       string       `json:"topic"`
	CreatedAt   int64        `json:"created_at"`
	UpdatedAt   int64        `json:"updated_at"`
	MessageIDs  []NodeID     `json:"message_ids,omitempty"`
	SummaryIDs  []NodeID     `json:"summary_ids,omitempty"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *Chat) ID() NodeID                        { return n.NodeID }
func (n *Chat) Kind() NodeKind                    { return KindChat }
func (n *Chat) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Chat) IndexedFields() []IndexedField     { return fields(KindChat, "topic", n.Topic) }
func (*Chat) node()                               {}

// Message is one turn in a chat.
type Message struct {
	NodeID        NodeID       `json:"id"`
	ChatID        NodeID       `json:"chat_id"`
	Sender        string       `json:"sender"`
	Timestamp     int64        `json:"timestamp"`
	TextContent   string       `json:"text_content"`
	AttachmentIDs []NodeID     `json:"attachment_ids,omitempty"`
	EmbeddingID   *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata      Metadata     `json:"metadata,omitempty"`
}

func (n *Message) ID() NodeID                        { return n.NodeID }
func (n *Message) Kind() NodeKind                    { return KindMessage }
func (n *Message) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Message) IndexedFields() []IndexedField {
	return fields(KindMessage, "chat_id", string(n.ChatID), "sender", n.Sender)
}
func (*Message) node() {}

// Summary condenses a run of messages.
type Summary struct {
	NodeID      NodeID       `json:"id"`
	ChatID      NodeID       `json:"chat_id"`
	CreatedAt   int64        `json:"created_at"`
	Content     string       `json:"content"`
	MessageIDs  []NodeID     `json:"message_ids,omitempty"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *Summary) ID() NodeID                        { return n.NodeID }
func (n *Summary) Kind() NodeKind                    { return KindSummary }
func (n *Summary) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Summary) IndexedFields() []IndexedField {
	return fields(KindSummary, "chat_id", string(n.ChatID))
}
func (*Summary) node() {}

// Attachment is a file attached to a message.
type Attachment struct {
	NodeID          NodeID       `json:"id"`
	MessageID       NodeID       `json:"message_id"`
	MimeType        string       `json:"mime_type"`
	CreatedAt       int64        `json:"created_at"`
	Filename        string       `json:"filename"`
	SizeBytes       uint64       `json:"size_bytes"`
	StoragePath     string       `json:"storage_path"`
	ExtractedText   *string      `json:"extracted_text,omitempty"`
	DetectedObjects []string     `json:"detected_objects,omitempty"`
	EmbeddingID     *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata        Metadata     `json:"metadata,omitempty"`
}

func (n *Attachment) ID() NodeID                        { return n.NodeID }
func (n *Attachment) Kind() NodeKind                    { return KindAttachment }
func (n *Attachment) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Attachment) IndexedFields() []IndexedField {
	return fields(KindAttachment, "message_id", string(n.MessageID), "mime_type", n.MimeType)
}
func (*Attachment) node() {}

// Entity is a knowledge-graph entity extracted from conversations.
type Entity struct {
	NodeID      NodeID       `json:"id"`
	Label       string       `json:"label"`
	EntityType  string       `json:"entity_type"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *Entity) ID() NodeID                        { return n.NodeID }
func (n *Entity) Kind() NodeKind                    { return KindEntity }
func (n *Entity) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Entity) IndexedFields() []IndexedField {
	return fields(KindEntity, "entity_type", n.EntityType, "label", n.Label)
}
func (*Entity) node() {}

// WebSearch records a search query and the URLs it returned.
type WebSearch struct {
	NodeID      NodeID       `json:"id"`
	Query       string       `json:"query"`
	Timestamp   int64        `json:"timestamp"`
	ResultsURLs []string     `json:"results_urls,omitempty"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *WebSearch) ID() NodeID                        { return n.NodeID }
func (n *WebSearch) Kind() NodeKind                    { return KindWebSearch }
func (n *WebSearch) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *WebSearch) IndexedFields() []IndexedField {
	return fields(KindWebSearch, "query", n.Query)
}
func (*WebSearch) node() {}

// ScrapedPage is the extracted content of a fetched web page.
type ScrapedPage struct {
	NodeID      NodeID       `json:"id"`
	URL         string       `json:"url"`
	ScrapedAt   int64        `json:"scraped_at"`
	ContentHash string       `json:"content_hash"`
	Title       *string      `json:"title,omitempty"`
	TextContent string       `json:"text_content"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	StoragePath string       `json:"storage_path"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *ScrapedPage) ID() NodeID                        { return n.NodeID }
func (n *ScrapedPage) Kind() NodeKind                    { return KindScrapedPage }
func (n *ScrapedPage) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *ScrapedPage) IndexedFields() []IndexedField {
	return fields(KindScrapedPage, "url", n.URL, "content_hash", n.ContentHash)
}
func (*ScrapedPage) node() {}

// Bookmark is a saved URL.
type Bookmark struct {
	NodeID      NodeID       `json:"id"`
	URL         string       `json:"url"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	CreatedAt   int64        `json:"created_at"`
	Tags        []string     `json:"tags,omitempty"`
	EmbeddingID *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`
}

func (n *Bookmark) ID() NodeID                        { return n.NodeID }
func (n *Bookmark) Kind() NodeKind                    { return KindBookmark }
func (n *Bookmark) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *Bookmark) IndexedFields() []IndexedField {
	out := fields(KindBookmark, "url", n.URL)
	for _, tag := range n.Tags {
		if tag != "" {
			out = append(out, IndexedField{Property: "tag", Value: tag})
		}
	}
	return out
}
func (*Bookmark) node() {}

// ImageMetadata describes an analyzed image file.
type ImageMetadata struct {
	NodeID          NodeID       `json:"id"`
	FilePath        string       `json:"file_path"`
	DetectedObjects []string     `json:"detected_objects,omitempty"`
	DetectedFaces   []string     `json:"detected_faces,omitempty"`
	OCRText         *string      `json:"ocr_text,omitempty"`
	EmbeddingID     *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata        Metadata     `json:"metadata,omitempty"`
}

func (n *ImageMetadata) ID() NodeID                        { return n.NodeID }
func (n *ImageMetadata) Kind() NodeKind                    { return KindImageMetadata }
func (n *ImageMetadata) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *ImageMetadata) IndexedFields() []IndexedField {
	return fields(KindImageMetadata, "file_path", n.FilePath)
}
func (*ImageMetadata) node() {}

// AudioTranscript is the transcription of an audio file.
type AudioTranscript struct {
	NodeID             NodeID       `json:"id"`
	FilePath           string       `json:"file_path"`
	TranscribedAt      int64        `json:"transcribed_at"`
	Transcript         string       `json:"transcript"`
	SpeakerDiarization *string      `json:"speaker_diarization,omitempty"`
	EmbeddingID        *EmbeddingID `json:"embedding_id,omitempty"`
	Metadata           Metadata     `json:"metadata,omitempty"`
}

func (n *AudioTranscript) ID() NodeID                        { return n.NodeID }
func (n *AudioTranscript) Kind() NodeKind                    { return KindAudioTranscript }
func (n *AudioTranscript) EmbeddingRef() (EmbeddingID, bool) { return embeddingRef(n.EmbeddingID) }
func (n *AudioTranscript) IndexedFields() []IndexedField {
	return fields(KindAudioTranscript, "file_path", n.FilePath)
}
func (*AudioTranscript) node() {}

// ModelInfo describes a locally available model file.
type ModelInfo struct {
	NodeID    NodeID   `json:"id"`
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	SizeBytes uint64   `json:"size_bytes"`
	Format    string   `json:"format"`
	LoadedAt  *int64   `json:"loaded_at,omitempty"`
	Metadata  Metadata `json:"metadata,omitempty"`
}

func (n *ModelInfo) ID() NodeID                      { return n.NodeID }
func (n *ModelInfo) Kind() NodeKind                  { return KindModelInfo }
func (*ModelInfo) EmbeddingRef() (EmbeddingID, bool) { return "", false }
func (n *ModelInfo) IndexedFields() []IndexedField {
	return fields(KindModelInfo, "name", n.Name, "format", n.Format)
}
func (*ModelInfo) node() {}

// ActionOutcome records an agent action, its result and any user feedback.
type ActionOutcome struct {
	NodeID              NodeID        `json:"id"`
	ActionType          string        `json:"action_type"`
	ActionArgs          Metadata      `json:"action_args,omitempty"`
	Result              Metadata      `json:"result,omitempty"`
	UserFeedback        *UserFeedback `json:"user_feedback,omitempty"`
	Timestamp           int64         `json:"timestamp"`
	ConversationContext string        `json:"conversation_context"`
}

func (n *ActionOutcome) ID() NodeID                      { return n.NodeID }
func (n *ActionOutcome) Kind() NodeKind                  { return KindActionOutcome }
func (*ActionOutcome) EmbeddingRef() (EmbeddingID, bool) { return "", false }
func (n *ActionOutcome) IndexedFields() []IndexedField {
	return fields(KindActionOutcome, "action_type", n.ActionType, "conversation_context", n.ConversationContext)
}
func (*ActionOutcome) node() {}

// FeedbackType classifies user feedback on an action.
type FeedbackType string

const (
	FeedbackCorrection FeedbackType = "correction"
	FeedbackApproval   FeedbackType = "approval"
	FeedbackRejection  FeedbackType = "rejection"
	FeedbackNeutral    FeedbackType = "neutral"
)

// UserFeedback is attached to an ActionOutcome after the fact.
type UserFeedback struct {
	FeedbackType FeedbackType `json:"feedback_type"`
	UserComment  *string      `json:"user_comment,omitempty"`
	Correction   *string      `json:"correction,omitempty"`
	Timestamp    int64        `json:"timestamp"`
}
