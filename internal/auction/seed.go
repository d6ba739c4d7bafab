package auction

import (
	"time"
)

// DefaultSeed returns the catalogue loaded at start-up, relative to now
func DefaultSeed(now time.Time) []Item {
	return []Item{
		{
			ID:            "1",
			Title:         "MacBook Pro",
			ImageURL:      "https://images.unsplash.com/photo-1517336714731-489689fd1ca8?w=400&h=300&fit=crop",
			StartingPrice: 100000,
			CurrentBid:    100000,
			EndAt:         now.Add(1 * time.Hour),
		},
		{
			ID:            "2",
			Title:         "iPhone 14 Pro Max",
			ImageURL:      "https://images.unsplash.com/photo-1679014539437-b925a3f95da3?w=600&auto=format&fit=crop&q=60",
			StartingPrice: 75000,
			CurrentBid:    75000,
			EndAt:         now.Add(1 * time.Hour),
		},
		{
			ID:            "3",
			Title:         "iPhone 15 Pro Max",
			ImageURL:      "https://images.unsplash.com/photo-1592750475338-74b7b21085ab?w=600&auto=format&fit=crop&q=60",
			StartingPrice: 85000,
			CurrentBid:    85000,
			EndAt:         now.Add(2 * time.Hour),
		},
		{
			ID:            "4",
			Title:         "Samsung S22 Ultra",
			ImageURL:      "https://images.unsplash.com/photo-1610945415295-d9bbf067e59c?w=600&auto=format&fit=crop&q=60",
			StartingPrice: 80000,
			CurrentBid:    80000,
			EndAt:         now.Add(3*time.Hour + 30*time.Minute),
		},
	}
}
