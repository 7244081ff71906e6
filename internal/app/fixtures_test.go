package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edtechhub/kerkoapp/internal/cache"
	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.FromEnv([]string{
		"KERKOAPP_SECRET_KEY=s3cr3t",
		"KERKOAPP_ZOTERO__API_KEY=key",
		"KERKOAPP_ZOTERO__LIBRARY_ID=2405685",
	})
	require.NoError(t, err)

	cfg.DataDir = t.TempDir()
	cfg.Assets.Debug = true
	cfg.Assets.StaticDir = t.TempDir()
	cfg.Index.RefreshInterval = 0

	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()

	a, err := New(cfg, Options{BuildVersion: "build-1", GitCommit: "abc123", SkipLogging: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return a
}

// newLoadedApp is an app whose index holds testLibrary.
func newLoadedApp(t *testing.T) *App {
	t.Helper()

	a := newTestApp(t, testConfig(t))

	ctx := context.Background()
	require.NoError(t, a.store.Replace(ctx, testLibrary()))
	require.NoError(t, a.Reindex(ctx))

	return a
}

func hubItem() map[string]any {
	return map[string]any{
		"key":      "AAAA1111",
		"version":  10,
		"meta":     map[string]any{"parsedDate": "2020-03-01"},
		"citation": "<span>Doe, J. (2020). Learning at home.</span>",
		"bib":      `<div class="csl-bib-body">Doe, J. (2020).</div>`,
		"data": map[string]any{
			"key":      "AAAA1111",
			"itemType": "journalArticle",
			"title":    "Learning at home",
			"creators": []any{
				map[string]any{"creatorType": "author", "lastName": "Doe", "firstName": "Jane"},
			},
			"date":         "March 2020",
			"url":          "https://example.org/a",
			"abstractNote": "Remote schooling during closures.",
			"collections":  []any{hubCollection, oursCollection, "TH1"},
			"tags":         []any{map[string]any{"tag": "_internal"}, map[string]any{"tag": "schools"}},
			"extra":        "EdTechHub.ItemAlsoKnownAs: ID1;ID2\nKerkoCite.ItemAlsoKnownAs: KC1 KC2\nOther: kept",
		},
	}
}

func testLibrary() cache.Library {
	return cache.Library{
		Items: []map[string]any{
			hubItem(),
			{
				"key": "CHLD0001",
				"data": map[string]any{
					"key":        "CHLD0001",
					"itemType":   "attachment",
					"parentItem": "AAAA1111",
					"title":      "Full text PDF",
					"filename":   "a.pdf",
					"tags":       []any{map[string]any{"tag": "publishPDF"}},
				},
			},
			{
				"key": "CHLD0002",
				"data": map[string]any{
					"key":        "CHLD0002",
					"itemType":   "attachment",
					"parentItem": "AAAA1111",
					"title":      "Unpublished draft",
				},
			},
			{
				"key":  "BBBB2222",
				"meta": map[string]any{"parsedDate": "2019"},
				"data": map[string]any{
					"key":         "BBBB2222",
					"itemType":    "book",
					"title":       "Mobile learning",
					"creators":    []any{map[string]any{"creatorType": "author", "name": "World Bank"}},
					"date":        "2019",
					"collections": []any{referencesCollection},
				},
			},
		},
		Collections: []composer.Collection{
			{Key: themesCollection, Name: "Themes"},
			{Key: "TH1", Name: "Remote learning", ParentKey: themesCollection},
			{Key: referencesCollection, Name: "References"},
			{Key: hubCollection, Name: "EdTech Hub"},
		},
		ItemTypes: map[string]string{"journalArticle": "Journal Article", "book": "Book"},
		Version:   42,
	}
}
