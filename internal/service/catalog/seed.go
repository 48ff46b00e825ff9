package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const unsplash = "https://images.unsplash.com/"

// SampleProducts: стартовый каталог магазина.
func SampleProducts() []domain.Product {
	return []domain.Product{
		{
			Title:         "Premium Wireless Headphones",
			Description:   "High-quality wireless headphones with noise cancellation and premium sound quality.",
			PriceMinor:    29999,
			Image:         unsplash + "photo-1505740420928-5e560c06d30e?w=400&h=400&fit=crop",
			Category:      "Electronics",
			Rating:        4.8,
			StockQuantity: 50,
			Features: []string{
				"Active Noise Cancellation",
				"30-hour battery life",
				"Premium leather headband",
				"Quick charge (10 min = 3 hours)",
				"Bluetooth 5.0 connectivity",
			},
			Specifications: map[string]string{
				"Battery Life":       "30 hours",
				"Charging Time":      "2 hours",
				"Connectivity":       "Bluetooth 5.0",
				"Weight":             "250g",
				"Frequency Response": "20Hz - 20kHz",
				"Driver Size":        "40mm",
			},
		},
		sample("Smart Fitness Watch", "Advanced fitness tracking with heart rate monitoring, GPS, and water resistance.",
			19999, "photo-1523275335684-37898b6baf30", "Electronics", 4.6, 30),
		sample("Organic Coffee Beans", "Premium organic coffee beans from sustainable farms. Rich, full-bodied flavor.",
			2499, "photo-1559056199-641a0ac8b55e", "Food & Beverage", 4.9, 100),
		sample("Minimalist Backpack", "Sleek, lightweight backpack perfect for daily use and travel adventures.",
			8999, "photo-1553062407-98eeb64c6a62", "Accessories", 4.7, 40),
		sample("Bluetooth Speaker", "Portable Bluetooth speaker with 360-degree sound and 12-hour battery life.",
			7999, "photo-1608043152269-423dbba4e7e1", "Electronics", 4.5, 60),
		sample("Artisan Ceramic Mug", "Handcrafted ceramic mug with unique glazing. Perfect for coffee or tea.",
			1899, "photo-1544787219-7f47ccb76574", "Home & Kitchen", 4.8, 80),
		sample("Wireless Phone Charger", "Fast wireless charging pad compatible with all Qi-enabled devices.",
			4599, "photo-1583394838336-acd977736f90", "Electronics", 4.4, 70),
		sample("Natural Skincare Set", "Complete skincare routine with natural ingredients for healthy, glowing skin.",
			6499, "photo-1556228720-195a672e8a03", "Beauty", 4.9, 35),
		sample("Ergonomic Office Chair", "Comfortable ergonomic chair with lumbar support and adjustable height.",
			24999, "photo-1586023492125-27b2c045efd7", "Furniture", 4.6, 20),
		sample("Beach Umbrella", "Large beach umbrella with UV protection and wind-resistant design.",
			4999, "photo-1507525428034-b723cf961d3e", "Summer Collection", 4.7, 25),
		sample("Sunglasses", "Stylish polarized sunglasses with 100% UV protection and lightweight frame.",
			8999, "photo-1511499767150-a48a237f0083", "Summer Collection", 4.8, 45),
		sample("Swim Shorts", "Quick-dry swim shorts with comfortable fit and multiple pockets.",
			3499, "photo-1506629905607-6e8c3b5f4c3a", "Summer Collection", 4.5, 55),
		sample("Classic Denim Jacket", "Timeless denim jacket with vintage wash and modern fit.",
			7999, "photo-1544022613-e87ca75a784a", "Men's Fashion", 4.6, 40),
		sample("Leather Dress Shoes", "Premium leather dress shoes with comfortable sole and elegant design.",
			14999, "photo-1549298916-b41d501d3772", "Men's Fashion", 4.9, 30),
		sample("Cotton Polo Shirt", "Premium cotton polo shirt with classic fit and breathable fabric.",
			3999, "photo-1521572163474-6864f9cf17ab", "Men's Fashion", 4.4, 65),
		sample("Elegant Evening Dress", "Sophisticated evening dress with flowing silhouette and premium fabric.",
			19999, "photo-1515372039744-b8f02a3ae446", "Women's Fashion", 4.8, 15),
		sample("Designer Handbag", "Luxury designer handbag with premium leather and spacious compartments.",
			29999, "photo-1553062407-98eeb64c6a62", "Women's Fashion", 4.9, 25),
		sample("High Heel Sandals", "Elegant high heel sandals with comfortable padding and stylish design.",
			8999, "photo-1543163521-1bf539c55dd2", "Women's Fashion", 4.5, 50),
	}
}

func sample(title, description string, priceMinor int64, photo, category string, rating float64, stock int32) domain.Product {
	return domain.Product{
		Title:         title,
		Description:   description,
		PriceMinor:    priceMinor,
		Image:         unsplash + photo + "?w=400&h=400&fit=crop",
		Category:      category,
		Rating:        rating,
		StockQuantity: stock,
	}
}

// SeedIfEmpty заполняет пустой каталог стартовыми товарами и возвращает их количество.
// Непустой каталог не трогается.
func (s *Service) SeedIfEmpty(ctx context.Context) (int, error) {
	count, err := s.products.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	base := s.now()
	products := SampleProducts()
	for i := range products {
		p := products[i]
		p.ID = uuid.NewString()
		p.InStock = true
		// Разносим created_at, чтобы список сохранял порядок каталога.
		p.CreatedAt = base.Add(time.Duration(i) * time.Millisecond)
		p.UpdatedAt = p.CreatedAt
		if err := s.products.Create(ctx, p); err != nil {
			return i, fmt.Errorf("seed product %q: %w", p.Title, err)
		}
	}

	s.logger.WithField("products", len(products)).Info("catalog seeded")
	return len(products), nil
}
