package model

import (
	"time"
)

// FileMetadata describes an uploaded file. Immutable after creation.
type FileMetadata struct {
	FileID           string    `json:"file_id" bson:"_id"`
	UserID           string    `json:"user_id" bson:"user_id"`
	ConversationID   string    `json:"conversation_id" bson:"conversation_id"`
	OriginalFilename string    `json:"original_filename" bson:"original_filename"`
	UploadTime       time.Time `json:"upload_time" bson:"upload_time"`
	FileType         string    `json:"filetype" bson:"filetype"`
	ChunkCount       int       `json:"chunk_count" bson:"chunk_count"`
	BlobKey          string    `json:"-" bson:"blob_key,omitempty"`
}

// FileListing is the list view of an uploaded file.
type FileListing struct {
	FileID         string    `json:"file_id"`
	Filename       string    `json:"filename"`
	UploadTime     time.Time `json:"upload_time"`
	ConversationID string    `json:"conversation_id,omitempty"`
	FileType       string    `json:"filetype,omitempty"`
}

// Listing returns the list view of the metadata.
func (m *FileMetadata) Listing() FileListing {
	return FileListing{
		FileID:         m.FileID,
		Filename:       m.OriginalFilename,
		UploadTime:     m.UploadTime,
		ConversationID: m.ConversationID,
		FileType:       m.FileType,
	}
}

// DocumentChunk is a bounded slice of a file's text, keyed by file id and index.
type DocumentChunk struct {
	FileID string `json:"file_id" bson:"file_id"`
	Index  int    `json:"chunk_index" bson:"chunk_index"`
	Text   string `json:"text" bson:"text"`
}

// FileContent is the response of a file content read.
type FileContent struct {
	FileID           string        `json:"file_id"`
	Filename         string        `json:"filename"`
	Content          string        `json:"content"`
	ContentTruncated bool          `json:"content_truncated"`
	Metadata         *FileMetadata `json:"metadata"`
}
