package ui

import (
	"github.com/cineflix/cineflix/internal/catalog"
)

// Sections are the home page rows and how each is filled
var Sections = map[string]catalog.SectionSpec{
	"hero":           {Category: catalog.CategoryPopular, StartPage: 1, PageCeiling: 2, Limit: 4},
	"featured":       {Category: catalog.CategoryPopular, StartPage: 1, PageCeiling: 3, Skip: 4, Limit: 20},
	"top_rated":      {Category: catalog.CategoryTopRated, StartPage: 1, PageCeiling: 3, Limit: 20},
	"now_playing":    {Category: catalog.CategoryNowPlaying, StartPage: 1, PageCeiling: 3, Limit: 20},
	"upcoming":       {Category: catalog.CategoryUpcoming, StartPage: 1, PageCeiling: 3, Limit: 20},
	"must_watch":     {Category: catalog.CategoryTopRated, StartPage: 2, PageCeiling: 4, Limit: 20},
	"fan_favorites":  {Category: catalog.CategoryPopular, StartPage: 2, PageCeiling: 4, Limit: 20},
	"critics_choice": {Category: catalog.CategoryTopRated, StartPage: 3, PageCeiling: 5, Limit: 20},
	"trending_now":   {Category: catalog.CategoryNowPlaying, StartPage: 2, PageCeiling: 4, Limit: 20},
}
