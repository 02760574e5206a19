//go:build testutils

package testutils

import "github.com/sleevescan/sleevescan/pkg/models"

// TestReferenceItems is a small fixed corpus for store and search tests.
// Embeddings are left nil; tests assign vectors of the width they need.
var TestReferenceItems = []models.ReferenceItem{
	{
		AlbumID:    24047,
		Title:      "Unknown Pleasures",
		Artist:     "Joy Division",
		CoverURL:   "https://img.discogs.com/24047.jpg",
		Year:       1979,
		Style:      "Post-Punk",
		DiscogsURL: "https://www.discogs.com/release/24047",
	},
	{
		AlbumID:    1475,
		Title:      "Blue Train",
		Artist:     "John Coltrane",
		CoverURL:   "https://img.discogs.com/1475.jpg",
		Year:       1958,
		Style:      "Hard Bop",
		DiscogsURL: "https://www.discogs.com/release/1475",
	},
	{
		AlbumID:    6543,
		Title:      "Selected Ambient Works 85-92",
		Artist:     "Aphex Twin",
		CoverURL:   "https://img.discogs.com/6543.jpg",
		Year:       1992,
		Style:      "Ambient",
		DiscogsURL: "https://www.discogs.com/release/6543",
	},
	{
		AlbumID:    9902,
		Title:      "Remain in Light",
		Artist:     "Talking Heads",
		CoverURL:   "https://img.discogs.com/9902.jpg",
		Year:       1980,
		Style:      "New Wave",
		DiscogsURL: "https://www.discogs.com/release/9902",
	},
	{
		AlbumID:    3310,
		Title:      "Maggot Brain",
		Artist:     "Funkadelic",
		CoverURL:   "https://img.discogs.com/3310.jpg",
		Year:       1971,
		Style:      "Funk",
		DiscogsURL: "https://www.discogs.com/release/3310",
	},
	{
		AlbumID:    7781,
		Title:      "Endtroducing.....",
		Artist:     "DJ Shadow",
		CoverURL:   "https://img.discogs.com/7781.jpg",
		Year:       1996,
		Style:      "Trip Hop",
		DiscogsURL: "https://www.discogs.com/release/7781",
	},
}
