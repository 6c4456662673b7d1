package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldComponent names the engine part that produced the entry.
	FieldComponent = "component"
	// FieldProvider is the draft provider ("gemini" or "fallback").
	FieldProvider = "ai_provider"
	// FieldModel is the draft provider model identifier.
	FieldModel = "ai_model"
	// FieldLeadID identifies the lead an entry refers to.
	FieldLeadID = "lead_id"
	// FieldCampaignID identifies the campaign an entry refers to.
	FieldCampaignID = "campaign_id"
	// FieldMessageID is the mail provider message id.
	FieldMessageID = "message_id"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and dropping entries with an empty key or value.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns the provider/model pair of a draft call.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// OutreachFields returns the lead/campaign/message triple used across the engine.
// Empty values are omitted to keep entries compact.
func OutreachFields(leadID, campaignID, messageID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldLeadID, Value: leadID},
		StringField{Key: FieldCampaignID, Value: campaignID},
		StringField{Key: FieldMessageID, Value: messageID},
	)
}

// WithCommonFields attaches the provider/model pair to the logger.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}
