package app

import (
	"fmt"

	"github.com/edtechhub/kerkoapp/internal/composer"
	"github.com/edtechhub/kerkoapp/internal/config"
)

// Zotero collections the library setup depends on.
const (
	themesCollection     = "23WS6R2T"
	oursCollection       = "SGAGGGLK"
	referencesCollection = "GQH9J3MJ"
	hubCollection        = "BFS3UXT4"
)

const hubBoostFactor = 5.0

// badgeMessageIDs are the messages used by inline badge templates.
var badgeMessageIDs = []string{"BadgeOurs"}

// newComposer builds the library defaults, applies the deployment changes,
// then finalizes.
func newComposer(cfg config.ComposerConfig) (*composer.Composer, error) {
	c := composer.New(composer.Options{
		Language:             cfg.Language,
		ExcludeDefaultFields: cfg.ExcludeDefaultFields,
		ExcludeDefaultFacets: cfg.ExcludeDefaultFacets,
		ExcludeDefaultSorts:  cfg.ExcludeDefaultSorts,
		ExcludeDefaultBadges: cfg.ExcludeDefaultBadges,
		ChildIncludeRE:       cfg.ChildIncludeRE,
		ChildExcludeRE:       cfg.ChildExcludeRE,
	})

	if err := updateComposer(c); err != nil {
		return nil, fmt.Errorf("updating composer: %w", err)
	}

	if err := c.Finalize(); err != nil {
		return nil, fmt.Errorf("finalizing composer: %w", err)
	}

	return c, nil
}

// updateComposer registers the fields, facets, badges and sorts specific to
// this library.
func updateComposer(c *composer.Composer) error {
	steps := []func(*composer.Composer) error{
		addFacets,
		addOurs,
		cleanData,
		addPreview,
		extendAlternateID,
		addFlags,
		addBoost,
		addHubSort,
	}

	for _, step := range steps {
		if err := step(c); err != nil {
			return err
		}
	}

	return nil
}

func addFacets(c *composer.Composer) error {
	if err := c.AddFacet(composer.CollectionFacet("facet_themes", "theme", "FacetThemes", 10, themesCollection)); err != nil {
		return err
	}

	return c.AddFacet(composer.CollectionFacet("facet_references", "ref", "FacetReferences", 20, referencesCollection))
}

func addOurs(c *composer.Composer) error {
	facet := composer.FlatFacet("facet_ours", "ours", "FacetOurs", 1,
		composer.InCollectionExtractor{CollectionKey: oursCollection},
		composer.BooleanFacetCodec{TrueLabel: "FacetOursTrue"})
	facet.SortBy = []string{"label"}
	facet.ItemView = false

	if err := c.AddFacet(facet); err != nil {
		return err
	}

	if err := c.AddField(&composer.FieldSpec{
		Key:       "ours",
		Type:      composer.Boolean,
		Extractor: composer.InCollectionExtractor{CollectionKey: oursCollection},
	}); err != nil {
		return err
	}

	star, err := composer.NewTemplateStringRenderer(
		`<span class="fas fa-star" title="{{ call .T "BadgeOurs" }}" aria-hidden="true"></span>`)
	if err != nil {
		return err
	}

	return c.AddBadge(&composer.BadgeSpec{
		Key:       "ours",
		Field:     c.Fields["ours"],
		Activator: composer.ActivateIfTruthy,
		Renderer:  star,
		Weight:    0,
	})
}

// cleanData strips the lines of the Extra field that only matter to the
// library's own tooling from the stored data.
func cleanData(c *composer.Composer) error {
	c.Fields[composer.FieldData].Extractor = &composer.TransformerExtractor{
		Extractor:    composer.RawDataExtractor{},
		Transformers: []composer.Transformer{composer.ExtraFieldCleaner},
	}

	return nil
}

// addPreview stores the citation shown on search result pages. Zotero wraps
// the citation in a <span>, swapped here for the markup of the bib format.
func addPreview(c *composer.Composer) error {
	openSpan, err := composer.Replace(`^<span>`, `<div class="csl-entry">`)
	if err != nil {
		return err
	}

	closeSpan, err := composer.Replace(`</span>$`, `</div>`)
	if err != nil {
		return err
	}

	return c.AddField(&composer.FieldSpec{
		Key:  "preview",
		Type: composer.Stored,
		Extractor: &composer.TransformerExtractor{
			Extractor:    composer.ItemExtractor{Key: "citation", Format: "citation"},
			Transformers: []composer.Transformer{openSpan, closeSpan},
		},
	})
}

func extendAlternateID(c *composer.Composer) error {
	alsoKnownAs, err := composer.Find(`(?im)^\s*EdTechHub.ItemAlsoKnownAs\s*:\s*(.*)$`, 1, 1)
	if err != nil {
		return err
	}

	kerkoCite, err := composer.Find(`(?im)^\s*KerkoCite.ItemAlsoKnownAs\s*:\s*(.*)$`, 1, 1)
	if err != nil {
		return err
	}

	shortDOI, err := composer.Find(`(?im)^\s*shortDOI\s*:\s*(\S+)\s*$`, 1, 0)
	if err != nil {
		return err
	}

	extra := composer.ItemDataExtractor{Key: "extra"}

	return c.ExtendField(composer.FieldAlternateID,
		&composer.TransformerExtractor{
			Extractor:    extra,
			Transformers: []composer.Transformer{alsoKnownAs, composer.Split(";")},
		},
		&composer.TransformerExtractor{
			Extractor:    extra,
			Transformers: []composer.Transformer{kerkoCite, composer.Split(" ")},
		},
		&composer.TransformerExtractor{
			Extractor:    extra,
			Transformers: []composer.Transformer{shortDOI},
		},
	)
}

// addFlags registers the boolean fields and the badges they drive.
func addFlags(c *composer.Composer) error {
	internal, err := composer.MatchesTag(`^_internal$`)
	if err != nil {
		return err
	}

	comingSoon, err := composer.MatchesTag(`^_comingsoon$`)
	if err != nil {
		return err
	}

	flags := []struct {
		key       string
		extractor composer.Extractor
		activator composer.Activator
		renderer  composer.Renderer
		weight    int
	}{
		{
			key:       "edtechhub",
			extractor: composer.InCollectionExtractor{CollectionKey: hubCollection},
			activator: composer.ActivateIfTruthy,
			renderer:  composer.TemplateRenderer{Name: "badge-hub", Data: map[string]any{"title": "BadgeHub"}},
			weight:    100,
		},
		{
			key:       "internal",
			extractor: internal,
			activator: composer.ActivateIfTrue,
			renderer:  composer.TemplateRenderer{Name: "badge-text", Data: map[string]any{"text": "BadgeInternal"}},
			weight:    10,
		},
		{
			key:       "comingsoon",
			extractor: comingSoon,
			activator: composer.ActivateIfTrue,
			renderer:  composer.TemplateRenderer{Name: "badge-text", Data: map[string]any{"text": "BadgeComingSoon"}},
			weight:    20,
		},
	}

	for _, f := range flags {
		if err := c.AddField(&composer.FieldSpec{Key: f.key, Type: composer.Boolean, Extractor: f.extractor}); err != nil {
			return err
		}

		if err := c.AddBadge(&composer.BadgeSpec{
			Key:       f.key,
			Field:     c.Fields[f.key],
			Activator: f.activator,
			Renderer:  f.renderer,
			Weight:    f.weight,
		}); err != nil {
			return err
		}
	}

	return nil
}

// addBoost ranks the hub's own publications higher in relevance order.
func addBoost(c *composer.Composer) error {
	return c.AddField(&composer.FieldSpec{
		Key:       composer.FieldBoost,
		Type:      composer.NotInSchema,
		Extractor: composer.InCollectionBoostExtractor{CollectionKey: hubCollection, BoostFactor: hubBoostFactor},
	})
}

func addHubSort(c *composer.Composer) error {
	return c.AddSort(&composer.SortSpec{
		Key:    "hub_desc",
		Label:  "SortHubFirst",
		Weight: 5,
		Fields: []*composer.FieldSpec{
			c.Fields["edtechhub"],
			c.Fields[composer.FieldSortDate],
			c.Fields[composer.FieldSortCreator],
			c.Fields[composer.FieldSortTitle],
		},
		Reverse: []bool{true, true, false, false},
	})
}
