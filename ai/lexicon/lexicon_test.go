package lexicon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_BuiltinLocales(t *testing.T) {
	for _, locale := range []string{LocaleEN, LocaleZH} {
		t.Run(locale, func(t *testing.T) {
			lex, err := Load(locale, "")
			require.NoError(t, err)

			assert.Equal(t, locale, lex.Locale)
			assert.Equal(t, []string{"physical", "emotional", "social", "information", "spiritual"}, lex.NeedTypes())
			for _, rule := range lex.Needs {
				assert.Len(t, rule.Compiled(), len(rule.Patterns), rule.Type)
				assert.Len(t, lex.Catalog[rule.Type], 3, rule.Type)
			}
			assert.Len(t, lex.StageNames, 4)
			assert.Empty(t, lex.Questions["terminal"])
			assert.Len(t, lex.FollowUps, 5)
		})
	}
}

func TestDefault(t *testing.T) {
	lex := Default()
	assert.Same(t, lex, Default())
	assert.Equal(t, "Middle Stage", lex.StageName("middle"))
	assert.Equal(t, "unknown", lex.StageName("unknown"))
	// Keywords are normalized to lower case at load time.
	assert.Contains(t, lex.Needs[4].Keywords, "god")
}

func TestStageMultiplier(t *testing.T) {
	lex := Default()
	tests := []struct {
		stage, need string
		want        float64
	}{
		{"early", "information", 1.2},
		{"early", "emotional", 1.1},
		{"middle", "physical", 1.2},
		{"middle", "emotional", 1},
		{"advanced", "physical", 1.3},
		{"terminal", "spiritual", 1.4},
		{"terminal", "emotional", 1.3},
		{"unknown", "physical", 1},
	}
	for _, tt := range tests {
		t.Run(tt.stage+"/"+tt.need, func(t *testing.T) {
			assert.InDelta(t, tt.want, lex.StageMultiplier(tt.stage, tt.need), 1e-9)
		})
	}
}

func TestFollowUpQuestion(t *testing.T) {
	lex := Default()
	q, ok := lex.FollowUpQuestion("symptom_mentioned")
	require.True(t, ok)
	assert.Equal(t, "How long have you been experiencing this symptom?", q)

	_, ok = lex.FollowUpQuestion("weather_mentioned")
	assert.False(t, ok)
}

func TestLoad_Override(t *testing.T) {
	dir := t.TempDir()
	data := `locale: en
needs:
  - type: physical
    keywords: [Cramp]
    patterns: ['leg.*cramp']
stage_names: {early: Early}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(data), 0o600))

	lex, err := Load(LocaleEN, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"cramp"}, lex.Needs[0].Keywords)

	// zh is not overridden and still loads from the binary.
	zh, err := Load(LocaleZH, dir)
	require.NoError(t, err)
	assert.Equal(t, "中期", zh.StageName("middle"))
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"bad pattern", "needs:\n  - type: physical\n    patterns: ['(']\nstage_names: {early: E}\n"},
		{"duplicate type", "needs:\n  - type: physical\n  - type: physical\nstage_names: {early: E}\n"},
		{"no needs", "stage_names: {early: E}\n"},
		{"no stage names", "needs:\n  - type: physical\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(tt.data), 0o600))
			_, err := Load(LocaleEN, dir)
			assert.Error(t, err)
		})
	}

	_, err := Load("fr", "")
	assert.Error(t, err)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("i use a wheelchair now", []string{"walker", "wheelchair"}))
	assert.False(t, ContainsAny("all good", []string{"walker", ""}))
}

func TestFollowUp_Matches(t *testing.T) {
	en := Default()
	family := en.FollowUps[3]
	require.Equal(t, "family_mentioned", family.Topic)

	assert.True(t, family.Matches("my son called"))
	assert.True(t, family.Matches("my parents know"))
	assert.False(t, family.Matches("no reason to worry"))
	assert.False(t, family.Matches("a kind person"))

	zh, err := Load(LocaleZH, "")
	require.NoError(t, err)
	assert.True(t, zh.FollowUps[3].Matches("我儿子很担心"))

	assert.False(t, FollowUp{Topic: "empty"}.Matches("anything"))
}
