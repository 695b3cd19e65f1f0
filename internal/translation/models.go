package translation

import "time"

// CacheEntry caches a translation by raw text and locale pair.
// Written once per unique key, never invalidated. The unique index is
// on a sha256 of the text (TextHash) because the text column itself is
// unbounded and cannot be composite-indexed on MySQL.
type CacheEntry struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	TextHash       string    `gorm:"type:char(64);not null;uniqueIndex:uniq_translation_key,priority:1" json:"-"`
	Text           string    `gorm:"type:text;not null" json:"text"`
	SourceLanguage string    `gorm:"type:varchar(10);not null;uniqueIndex:uniq_translation_key,priority:2" json:"source_language"`
	TargetLanguage string    `gorm:"type:varchar(10);not null;uniqueIndex:uniq_translation_key,priority:3" json:"target_language"`
	TranslatedText string    `gorm:"type:text;not null" json:"translated_text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (CacheEntry) TableName() string { return "translation_cache" }

// MessageTranslation caches a translation by message id and target
// locale, independent of the raw-text cache. The message id may be a
// synthetic key (e.g. per-field prescription ids), so it is wider than
// a ULID.
type MessageTranslation struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	MessageID      string    `gorm:"type:varchar(191);not null;uniqueIndex:uniq_message_translation,priority:1" json:"message_id"`
	TargetLanguage string    `gorm:"type:varchar(10);not null;uniqueIndex:uniq_message_translation,priority:2" json:"target_language"`
	SourceLanguage string    `gorm:"type:varchar(10);not null" json:"source_language"`
	OriginalText   string    `gorm:"type:text;not null" json:"original_text"`
	TranslatedText string    `gorm:"type:text;not null" json:"translated_text"`
	CreatedAt      time.Time `json:"created_at"`
}

func (MessageTranslation) TableName() string { return "message_translations" }
