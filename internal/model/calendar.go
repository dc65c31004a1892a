package model

// CalendarDay is one cell of a month grid.
type CalendarDay struct {
	Date     string `json:"date"`
	Day      int    `json:"day"`
	InMonth  bool   `json:"inMonth"`
	IsToday  bool   `json:"isToday"`
	Disabled bool   `json:"disabled"`
}

type CalendarMonth struct {
	Month string          `json:"month"`
	Weeks [][]CalendarDay `json:"weeks"`
}
