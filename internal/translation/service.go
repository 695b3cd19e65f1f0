package translation

import (
	"context"
	"log"
)

// Service is the cache-aside translation layer. Provider failures never
// propagate: chat delivery degrades to the original text instead of
// blocking on a translation outage.
type Service struct {
	repo     *Repo
	provider Provider
}

func NewService(repo *Repo, provider Provider) *Service {
	return &Service{repo: repo, provider: provider}
}

// Translate returns text translated from sourceLang to targetLang,
// serving repeats of the same (text, locale pair) from the raw-text
// cache. Same-locale calls return the text untouched with no cache IO.
// On provider failure the original text is returned and nothing is
// cached, so a later retry reaches the provider again.
func (s *Service) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}

	cached, err := s.repo.GetCached(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}
	if cached != nil {
		return cached.TranslatedText, nil
	}

	translated, err := s.provider.LocalizeText(ctx, text, sourceLang, targetLang)
	if err != nil {
		log.Printf("translation failed src=%s dst=%s err=%v", sourceLang, targetLang, err)
		return text, nil
	}

	if err := s.repo.PutCached(ctx, text, sourceLang, targetLang, translated); err != nil {
		return "", err
	}
	return translated, nil
}

// TranslateMessage is the message-scoped variant: the cache key is
// (messageID, targetLang), checked independently of the raw-text cache,
// so repeated fetches of the same message skip even the text lookup.
func (s *Service) TranslateMessage(ctx context.Context, messageID, text, sourceLang, targetLang string) (string, error) {
	if sourceLang == targetLang {
		return text, nil
	}

	existing, err := s.repo.GetMessageTranslation(ctx, messageID, targetLang)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.TranslatedText, nil
	}

	translated, err := s.provider.LocalizeText(ctx, text, sourceLang, targetLang)
	if err != nil {
		log.Printf("translation failed message=%s src=%s dst=%s err=%v", messageID, sourceLang, targetLang, err)
		return text, nil
	}

	mt := &MessageTranslation{
		MessageID:      messageID,
		TargetLanguage: targetLang,
		SourceLanguage: sourceLang,
		OriginalText:   text,
		TranslatedText: translated,
	}
	if err := s.repo.PutMessageTranslation(ctx, mt); err != nil {
		return "", err
	}
	return translated, nil
}

// MessageInput identifies one message for batch translation.
type MessageInput struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	SenderID string `json:"sender_id"`
}

// TranslatedMessage is one batch translation result.
type TranslatedMessage struct {
	ID             string `json:"id"`
	OriginalText   string `json:"original_text"`
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
}

// TranslateMessages translates a batch into targetLang, resolving each
// message's source locale from its sender. Unknown senders default to
// "en".
func (s *Service) TranslateMessages(ctx context.Context, messages []MessageInput, targetLang string, senderLocales map[string]string) ([]TranslatedMessage, error) {
	out := make([]TranslatedMessage, 0, len(messages))
	for _, m := range messages {
		sourceLang := senderLocales[m.SenderID]
		if sourceLang == "" {
			sourceLang = "en"
		}
		translated, err := s.TranslateMessage(ctx, m.ID, m.Content, sourceLang, targetLang)
		if err != nil {
			return nil, err
		}
		out = append(out, TranslatedMessage{
			ID:             m.ID,
			OriginalText:   m.Content,
			TranslatedText: translated,
			SourceLanguage: sourceLang,
		})
	}
	return out, nil
}
