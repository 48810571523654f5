package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsValidate(t *testing.T) {
	tcs := []struct {
		name      string
		settings  Settings
		expectErr bool
	}{
		{
			name:     "empty settings are valid",
			settings: Settings{},
		},
		{
			name:     "defaults are valid",
			settings: DefaultSettings(),
		},
		{
			name: "subset is valid",
			settings: Settings{
				CategoryEmail: {Enabled: true},
			},
		},
		{
			name: "unknown category rejected",
			settings: Settings{
				Category("ssn"): {Enabled: true},
			},
			expectErr: true,
		},
		{
			name: "mixed known and unknown rejected",
			settings: Settings{
				CategoryEmail:        {Enabled: true},
				Category("passport"): {Enabled: true},
			},
			expectErr: true,
		},
	}

	for _, tc := range tcs {
		err := tc.settings.Validate()
		if tc.expectErr {
			assert.Error(t, err, tc.name)
		} else {
			assert.NoError(t, err, tc.name)
		}
	}
}

func TestSettingsValidateNamesEveryUnknown(t *testing.T) {
	s := Settings{
		Category("ssn"):      {Enabled: true},
		Category("passport"): {Enabled: false},
	}
	err := s.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ssn")
	assert.Contains(t, err.Error(), "passport")
}

func TestEnabledCategoriesStableOrder(t *testing.T) {
	s := Settings{
		CategoryAccount: {Enabled: true},
		CategoryEmail:   {Enabled: true},
		CategoryPhone:   {Enabled: false},
		CategoryRRN:     {Enabled: true},
	}

	enabled := s.EnabledCategories()
	assert.Equal(t, []Category{CategoryRRN, CategoryEmail, CategoryAccount}, enabled)
}

func TestEnabledCategoriesEmpty(t *testing.T) {
	assert.Nil(t, Settings{}.EnabledCategories())

	allOff := Settings{
		CategoryEmail: {Enabled: false},
		CategoryName:  {Enabled: false},
	}
	assert.Nil(t, allOff.EnabledCategories())
}

func TestSettingsSymbol(t *testing.T) {
	s := Settings{
		CategoryEmail: {Enabled: true, Symbol: "#"},
		CategoryRRN:   {Enabled: true},
	}

	assert.Equal(t, "#", s.Symbol(CategoryEmail))
	assert.Equal(t, DefaultSymbol, s.Symbol(CategoryRRN), "empty symbol falls back")
	assert.Equal(t, DefaultSymbol, s.Symbol(CategoryPhone), "absent category falls back")
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Len(t, s, len(Categories()))
	for _, c := range Categories() {
		assert.True(t, s[c].Enabled, c)
		assert.Equal(t, DefaultSymbol, s[c].Symbol, c)
	}
	assert.NoError(t, s.Validate())
}
