package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndertimnet/leadengine/internal/models"
)

func TestTextRenderer_Render(t *testing.T) {
	price := 2500.0
	doc := Document{
		JobTitle:     "Ремонт крыши",
		CompanyName:  "Bygg AB",
		CustomerName: "Анна Иванова",
		Version: &models.OfferVersion{
			VersionNumber:    3,
			PresentationText: "Полный ремонт с материалами",
			DurationText:     "2 недели",
			PriceType:        models.PriceTypeFixed,
			PriceAmount:      &price,
			Currency:         "EUR",
			IncludesText:     "материалы",
			ExcludesText:     "вывоз мусора",
			PaymentTerms:     "50% аванс",
		},
		IdentityMasked: "******-5678",
		SignedAt:       time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC),
	}

	body, contentType, err := NewTextRenderer().Render(context.Background(), doc)
	assert.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", contentType)

	text := string(body)
	assert.Contains(t, text, "Ремонт крыши")
	assert.Contains(t, text, "Bygg AB")
	assert.Contains(t, text, "версия 3")
	assert.Contains(t, text, "2500.00 EUR (fixed)")
	assert.Contains(t, text, "******-5678")
	assert.Contains(t, text, "14.03.2026")
}

func TestTextRenderer_NoPrice(t *testing.T) {
	doc := Document{
		JobTitle: "Покраска забора",
		Version: &models.OfferVersion{
			VersionNumber: 1,
			PriceType:     models.PriceTypeHourly,
			Currency:      "EUR",
		},
		SignedAt: time.Now(),
	}

	body, _, err := NewTextRenderer().Render(context.Background(), doc)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "по договорённости")
}

func TestTextRenderer_MissingVersion(t *testing.T) {
	_, _, err := NewTextRenderer().Render(context.Background(), Document{JobTitle: "Без версии"})
	assert.Error(t, err)
}
