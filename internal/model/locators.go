package model

// Locators are the CSS selectors that bind the scraper to the search site's
// markup. They change whenever the site is redesigned, so they are loaded
// from configuration rather than hard-coded in the scraper.
type Locators struct {
	SearchTrigger  string `json:"search_trigger" yaml:"search_trigger"`
	SearchInput    string `json:"search_input" yaml:"search_input"`
	SearchSubmit   string `json:"search_submit" yaml:"search_submit"`
	ResultsSummary string `json:"results_summary" yaml:"results_summary"`
	SortSelect     string `json:"sort_select" yaml:"sort_select"`
	SortLabel      string `json:"sort_label" yaml:"sort_label"`
	ResultItem     string `json:"result_item" yaml:"result_item"`
	ShowMore       string `json:"show_more" yaml:"show_more"`
	Title          string `json:"title" yaml:"title"`
	Description    string `json:"description" yaml:"description"`
	Image          string `json:"image" yaml:"image"`
	ScrollScript   string `json:"scroll_script" yaml:"scroll_script"`
}

// DefaultLocators returns selectors for the current Al Jazeera search page.
func DefaultLocators() Locators {
	return Locators{
		SearchTrigger:  ".site-header__search-trigger .no-styles-button",
		SearchInput:    ".search-bar__input",
		SearchSubmit:   ".css-sp7gd",
		ResultsSummary: "div.search-summary",
		SortSelect:     "#search-sort-option",
		SortLabel:      "Date",
		ResultItem:     "div.search-result__list > article",
		ShowMore:       "button[data-testid='show-more-button']",
		Title:          "h3",
		Description:    "p",
		Image:          "img",
		ScrollScript:   "window.scrollTo(0, document.body.scrollHeight);",
	}
}

// Merge returns l with every empty field taken from defaults.
func (l Locators) Merge(defaults Locators) Locators {
	pick := func(v, d string) string {
		if v == "" {
			return d
		}
		return v
	}
	return Locators{
		SearchTrigger:  pick(l.SearchTrigger, defaults.SearchTrigger),
		SearchInput:    pick(l.SearchInput, defaults.SearchInput),
		SearchSubmit:   pick(l.SearchSubmit, defaults.SearchSubmit),
		ResultsSummary: pick(l.ResultsSummary, defaults.ResultsSummary),
		SortSelect:     pick(l.SortSelect, defaults.SortSelect),
		SortLabel:      pick(l.SortLabel, defaults.SortLabel),
		ResultItem:     pick(l.ResultItem, defaults.ResultItem),
		ShowMore:       pick(l.ShowMore, defaults.ShowMore),
		Title:          pick(l.Title, defaults.Title),
		Description:    pick(l.Description, defaults.Description),
		Image:          pick(l.Image, defaults.Image),
		ScrollScript:   pick(l.ScrollScript, defaults.ScrollScript),
	}
}
