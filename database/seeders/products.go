package seeders

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/driftmarket/driftmarket/app/models"
	"github.com/driftmarket/driftmarket/config"
)

const seedProductCount = 24

var seedCollections = []string{"vintage", "electronics", "furniture", "fashion", "books", "outdoors"}
var seedConditions = []string{"like new", "good", "fair", "well loved"}

func init() {
	Register("products", SeedProducts)
}

// SeedProducts fills an empty catalogue with demo listings. Re-running
// against a seeded database is a no-op.
func SeedProducts(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	faker := gofakeit.New(42) // deterministic demo data
	sellers := config.ListedByAllowList()

	for i := 0; i < seedProductCount; i++ {
		name := faker.ProductName()
		slug := fmt.Sprintf("%s-%d", slugify(name), i+1)

		p := models.Product{
			Slug:         slug,
			Title:        name,
			Description:  faker.ProductDescription(),
			Price:        decimal.NewFromFloat(faker.Price(200, 15000)).Round(2),
			Currency:     "INR",
			Condition:    seedConditions[i%len(seedConditions)],
			Category:     faker.ProductCategory(),
			Brand:        faker.Company(),
			Images: models.StringList{
				fmt.Sprintf("https://picsum.photos/seed/%s/800/600", slug),
			},
			PayeeEmail:   faker.Email(),
			CheckoutLink: "https://pay.example.com/" + slug,
			Rating:       float64(faker.Number(30, 50)) / 10,
			ReviewCount:  faker.Number(0, 120),
			InStock:      i%7 != 0,
			IsFeatured:   i < 4,
			ListedBy:     sellers[i%len(sellers)],
			Collections: models.StringList{
				seedCollections[i%len(seedCollections)],
			},
		}
		if err := db.Create(&p).Error; err != nil {
			return err
		}
	}
	return nil
}

func slugify(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
