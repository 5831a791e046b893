package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Error frame codes sent back to the originating connection.
const (
	CodeInvalidFrame  = "invalid_frame"
	CodePersistFailed = "persist_failed"
)

// MaxMessageLength is the default cap on message content, in characters.
const MaxMessageLength = 5000

// InboundFrame is a chat frame received from a client.
type InboundFrame struct {
	ReceiverID *int64 `json:"receiver_id" validate:"required"`
	Content    string `json:"content" validate:"required"`
	PropertyID *int64 `json:"property_id"`
}

// ErrorFrame is sent to the sender when its frame could not be handled.
type ErrorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Decoder parses and validates inbound frames.
type Decoder struct {
	validate  *validator.Validate
	maxLength int
}

// NewDecoder creates a decoder that rejects content longer than maxLength.
// A non-positive maxLength uses MaxMessageLength.
func NewDecoder(maxLength int) *Decoder {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	return &Decoder{
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		maxLength: maxLength,
	}
}

// Decode parses data into an InboundFrame. Any failure wraps ErrDecode.
func (d *Decoder) Decode(data []byte) (InboundFrame, error) {
	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := d.validate.Struct(f); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := d.validate.Var(f.Content, fmt.Sprintf("max=%d", d.maxLength)); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: content exceeds %d characters", ErrDecode, d.maxLength)
	}
	return f, nil
}

func encodeError(code, msg string) []byte {
	data, _ := json.Marshal(ErrorFrame{Error: code, Message: msg})
	return data
}
