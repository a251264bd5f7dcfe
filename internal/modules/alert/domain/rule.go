package domain

// Rule describes one alert pattern: a single canonical keyword plus its
// matching semantics. Casing variants of the same keyword are collapsed
// into one case-insensitive rule at configuration-load time.
type Rule struct {
	Keyword       string
	CaseSensitive bool
	WholeWordOnly bool
	Description   string
}
