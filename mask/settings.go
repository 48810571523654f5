package mask

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Category names a kind of sensitive information the pipeline can detect.
type Category string

const (
	CategoryName    Category = "name"
	CategoryRRN     Category = "rrn"
	CategoryPhone   Category = "phone"
	CategoryEmail   Category = "email"
	CategoryAddress Category = "address"
	CategoryAccount Category = "account"
)

// DefaultSymbol is the mask glyph used when a setting does not name one.
const DefaultSymbol = "*"

// Categories returns every supported category in a stable order.
func Categories() []Category {
	return []Category{
		CategoryName,
		CategoryRRN,
		CategoryPhone,
		CategoryEmail,
		CategoryAddress,
		CategoryAccount,
	}
}

// ValidCategory reports whether c is a member of the supported set.
func ValidCategory(c Category) bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Setting controls one category's handling for a request.
type Setting struct {
	Enabled bool   `json:"enabled"`
	Symbol  string `json:"symbol"`
}

// Settings maps each category to its per-request setting. Categories absent
// from the map are treated as disabled.
type Settings map[Category]Setting

// DefaultSettings enables every category with the default mask symbol.
func DefaultSettings() Settings {
	s := make(Settings, len(Categories()))
	for _, c := range Categories() {
		s[c] = Setting{Enabled: true, Symbol: DefaultSymbol}
	}
	return s
}

// Validate checks that every key is a supported category, accumulating one
// error per unknown key.
func (s Settings) Validate() error {
	var errs *multierror.Error
	for c := range s {
		if !ValidCategory(c) {
			errs = multierror.Append(errs, fmt.Errorf("unknown category in settings, category=%s", c))
		}
	}
	return errs.ErrorOrNil()
}

// EnabledCategories returns the enabled categories in the stable
// Categories() order.
func (s Settings) EnabledCategories() []Category {
	var enabled []Category
	for _, c := range Categories() {
		if setting, ok := s[c]; ok && setting.Enabled {
			enabled = append(enabled, c)
		}
	}
	return enabled
}

// Symbol returns the mask glyph for a category, falling back to
// DefaultSymbol when the setting does not name one.
func (s Settings) Symbol(c Category) string {
	if setting, ok := s[c]; ok && setting.Symbol != "" {
		return setting.Symbol
	}
	return DefaultSymbol
}
