package model

import (
	"fmt"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/kart-io/moktashif/pkg/utils/json"
)

// ReplyTo references the message a user is replying to. On the wire it is either a
// bare string (the literal content) or an object; it is written back in the shape it
// arrived in.
type ReplyTo struct {
	// Index is the position of the referenced message, when known.
	Index *int `json:"index,omitempty" bson:"index,omitempty"`
	// Content is the referenced content, possibly an edited version.
	Content string `json:"content,omitempty" bson:"content,omitempty"`
	// IsCurrentVersion marks Content as the version currently displayed.
	IsCurrentVersion bool `json:"isCurrentVersion,omitempty" bson:"isCurrentVersion,omitempty"`
	// MessageID is the stable id of the referenced message.
	MessageID string `json:"messageId,omitempty" bson:"messageId,omitempty"`

	literal bool
}

// NewLiteralReply returns a reference given only by content.
func NewLiteralReply(content string) *ReplyTo {
	return &ReplyTo{Content: content, literal: true}
}

// IsLiteral reports whether the reference arrived as a bare string.
func (r *ReplyTo) IsLiteral() bool {
	return r != nil && r.literal
}

// replyObject is the object form with a lenient index.
type replyObject struct {
	Index            json.RawMessage `json:"index,omitempty"`
	Content          string          `json:"content,omitempty"`
	IsCurrentVersion bool            `json:"isCurrentVersion,omitempty"`
	MessageID        string          `json:"messageId,omitempty"`
}

// UnmarshalJSON accepts a string or an object. A non-numeric index is dropped.
func (r *ReplyTo) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = ReplyTo{Content: s, literal: true}
		return nil
	}

	var obj replyObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("replyTo must be a string or an object: %w", err)
	}
	*r = ReplyTo{
		Index:            parseIndex(obj.Index),
		Content:          obj.Content,
		IsCurrentVersion: obj.IsCurrentVersion,
		MessageID:        obj.MessageID,
	}
	return nil
}

// MarshalJSON writes the reference in the shape it arrived in.
func (r ReplyTo) MarshalJSON() ([]byte, error) {
	if r.literal {
		return json.Marshal(r.Content)
	}
	type plain ReplyTo
	return json.Marshal(plain(r))
}

// MarshalBSONValue stores literal references as strings and the rest as sub-documents.
func (r ReplyTo) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if r.literal {
		return bson.MarshalValue(r.Content)
	}
	type plain ReplyTo
	return bson.MarshalValue(plain(r))
}

// UnmarshalBSONValue is the inverse of MarshalBSONValue.
func (r *ReplyTo) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.String:
		*r = ReplyTo{Content: raw.StringValue(), literal: true}
		return nil
	case bsontype.EmbeddedDocument:
		type plain ReplyTo
		var p plain
		if err := raw.Unmarshal(&p); err != nil {
			return err
		}
		*r = ReplyTo(p)
		return nil
	case bsontype.Null:
		return nil
	default:
		return fmt.Errorf("unexpected bson type %s for replyTo", t)
	}
}

func parseIndex(raw json.RawMessage) *int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return &i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		i := int(f)
		return &i
	}
	return nil
}
