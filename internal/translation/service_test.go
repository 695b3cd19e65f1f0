package translation

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) LocalizeText(ctx context.Context, text, sourceLocale, targetLocale string) (string, error) {
	_ = ctx
	p.calls++
	if p.fail {
		return "", errors.New("provider unavailable")
	}
	return "[" + targetLocale + "] " + text, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&CacheEntry{}, &MessageTranslation{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTranslate_SameLocaleIsNoOp(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	got, err := svc.Translate(context.Background(), "bonjour", "fr", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "bonjour" {
		t.Fatalf("expected original text, got %q", got)
	}
	if prov.calls != 0 {
		t.Fatalf("expected no provider call, got %d", prov.calls)
	}

	var count int64
	if err := db.Model(&CacheEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no cache write, found %d rows", count)
	}
}

func TestTranslate_SecondCallServedFromCache(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	first, err := svc.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("first translate: %v", err)
	}
	second, err := svc.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("second translate: %v", err)
	}

	if first != second {
		t.Fatalf("cache returned different value: %q vs %q", first, second)
	}
	if prov.calls != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", prov.calls)
	}
}

func TestTranslate_SameTextDifferentPairsCachedSeparately(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	fr, err := svc.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("en->fr: %v", err)
	}
	es, err := svc.Translate(context.Background(), "hello", "en", "es")
	if err != nil {
		t.Fatalf("en->es: %v", err)
	}

	if fr == es {
		t.Fatalf("expected distinct translations per target locale")
	}
	if prov.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", prov.calls)
	}
}

func TestTranslate_ProviderFailureFallsBackWithoutCaching(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{fail: true}
	svc := NewService(NewRepo(db), prov)

	got, err := svc.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected original text on failure, got %q", got)
	}

	var count int64
	if err := db.Model(&CacheEntry{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed translation must not be cached, found %d rows", count)
	}

	// Provider recovers: the retry must reach the provider, not a stale
	// cache row.
	prov.fail = false
	got, err = svc.Translate(context.Background(), "hello", "en", "fr")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != "[fr] hello" {
		t.Fatalf("expected fresh translation on retry, got %q", got)
	}
	if prov.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", prov.calls)
	}
}

func TestTranslateMessage_KeyedByMessageID(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	first, err := svc.TranslateMessage(context.Background(), "m1", "hello", "en", "fr")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.TranslateMessage(context.Background(), "m1", "hello", "en", "fr")
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first != second {
		t.Fatalf("message cache returned different value: %q vs %q", first, second)
	}
	if prov.calls != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", prov.calls)
	}

	// Same literal text from a different message is cached on its own key.
	if _, err := svc.TranslateMessage(context.Background(), "m2", "hello", "en", "fr"); err != nil {
		t.Fatalf("m2: %v", err)
	}
	if prov.calls != 2 {
		t.Fatalf("expected independent cache entry per message, got %d calls", prov.calls)
	}
}

func TestTranslateMessage_SameLocaleShortCircuit(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	got, err := svc.TranslateMessage(context.Background(), "m1", "hello", "en", "en")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "hello" || prov.calls != 0 {
		t.Fatalf("expected short-circuit, got %q with %d calls", got, prov.calls)
	}
}

func TestTranslateMessages_ResolvesSenderLocales(t *testing.T) {
	db := openTestDB(t)
	prov := &countingProvider{}
	svc := NewService(NewRepo(db), prov)

	msgs := []MessageInput{
		{ID: "m1", Content: "bonjour", SenderID: "doctor-1"},
		{ID: "m2", Content: "hello", SenderID: "patient-1"},
	}
	locales := map[string]string{"doctor-1": "fr"}

	out, err := svc.TranslateMessages(context.Background(), msgs, "en", locales)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	if out[0].SourceLanguage != "fr" {
		t.Fatalf("expected sender locale fr, got %q", out[0].SourceLanguage)
	}
	// patient-1 is unknown -> defaults to en, which matches the target
	// and short-circuits.
	if out[1].TranslatedText != "hello" {
		t.Fatalf("expected same-locale passthrough, got %q", out[1].TranslatedText)
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", prov.calls)
	}
}
