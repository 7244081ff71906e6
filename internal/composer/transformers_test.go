package composer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFind(t *testing.T) {
	text := "a: 1\nb: 2\na: 3"

	one, err := Find(`(?m)^a:\s*(\d)$`, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", one(text))

	all, err := Find(`(?m)^a:\s*(\d)$`, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, all(text))

	assert.Nil(t, all("nothing"))

	_, err = Find(`(a)`, 2, 0)
	assert.Error(t, err)
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"ID1", "ID2"}, Split(" ")("ID1  ID2 "))
	assert.Equal(t, []string{"a", "b", "c"}, Split(";")([]string{"a; b", ";c;"}))
	assert.Equal(t, []string{"x", "y"}, Split("")("x\t y\n"))
	assert.Nil(t, Split(";")(" ; "))
}

func TestReplace(t *testing.T) {
	open, err := Replace(`^<span>`, `<div class="csl-entry">`)
	require.NoError(t, err)

	assert.Equal(t, `<div class="csl-entry">Smith (2020)</span>`, open("<span>Smith (2020)</span>"))
	assert.Equal(t, 42, open(42))
}

func TestCleanExtra(t *testing.T) {
	in := "EdTechHub.ItemAlsoKnownAs: X\nKerkoCite.ItemAlsoKnownAs: Y\nNormal line"
	assert.Equal(t, "Normal line", CleanExtra(in))

	assert.Equal(t, "keep\nthis", CleanExtra("  keep\n  kerkocite.x: y\nthis\n"))
}

func TestExtraFieldCleaner(t *testing.T) {
	data := map[string]any{
		"title": "Paper",
		"extra": "EdTechHub.ItemAlsoKnownAs: X\nKerkoCite.ItemAlsoKnownAs: Y\nNormal line",
	}

	cleaned, ok := ExtraFieldCleaner(data).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Normal line", cleaned["extra"])
	assert.Equal(t, "Paper", cleaned["title"])

	assert.Contains(t, data["extra"], "KerkoCite", "the source record is left alone")

	noExtra := map[string]any{"title": "x"}
	assert.Equal(t, noExtra, ExtraFieldCleaner(noExtra))
}

func TestPresentAndLowercase(t *testing.T) {
	assert.Equal(t, true, Present("https://example.org"))
	assert.Equal(t, false, Present("  "))
	assert.Equal(t, "abc", Lowercase("AbC"))
	assert.Equal(t, []string{"a", "b"}, Lowercase([]string{"A", "B"}))
}
