package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// GetCached returns the cached translation for (text, src, dst), or
// (nil, nil) when there is no entry.
func (r *Repo) GetCached(ctx context.Context, text, sourceLang, targetLang string) (*CacheEntry, error) {
	var e CacheEntry
	err := r.db.WithContext(ctx).
		Where("text_hash = ? AND source_language = ? AND target_language = ?",
			textHash(text), sourceLang, targetLang).
		First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// PutCached writes a cache entry. Two requests racing on the same key
// both translate and both insert; the loser's duplicate-key error is
// resolved by re-reading the winner's row.
func (r *Repo) PutCached(ctx context.Context, text, sourceLang, targetLang, translated string) error {
	e := CacheEntry{
		TextHash:       textHash(text),
		Text:           text,
		SourceLanguage: sourceLang,
		TargetLanguage: targetLang,
		TranslatedText: translated,
	}
	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		if existing, lookupErr := r.GetCached(ctx, text, sourceLang, targetLang); lookupErr == nil && existing != nil {
			return nil
		}
		return err
	}
	return nil
}

// GetMessageTranslation returns the per-message cached translation, or
// (nil, nil) when there is no entry.
func (r *Repo) GetMessageTranslation(ctx context.Context, messageID, targetLang string) (*MessageTranslation, error) {
	var mt MessageTranslation
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND target_language = ?", messageID, targetLang).
		First(&mt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &mt, nil
}

func (r *Repo) PutMessageTranslation(ctx context.Context, mt *MessageTranslation) error {
	if err := r.db.WithContext(ctx).Create(mt).Error; err != nil {
		if existing, lookupErr := r.GetMessageTranslation(ctx, mt.MessageID, mt.TargetLanguage); lookupErr == nil && existing != nil {
			return nil
		}
		return err
	}
	return nil
}
