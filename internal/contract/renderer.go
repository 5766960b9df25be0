package contract

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/ndertimnet/leadengine/internal/models"
)

// Document данные для рендеринга договора по подписанной оферте.
type Document struct {
	JobTitle       string
	CompanyName    string
	CustomerName   string
	Version        *models.OfferVersion
	IdentityMasked string
	SignedAt       time.Time
}

// Renderer превращает подписанную оферту в документ договора. Продакшен
// использует внешний PDF-сервис, для разработки и тестов есть текстовая
// реализация.
type Renderer interface {
	Render(ctx context.Context, doc Document) ([]byte, string, error)
}

// TextRenderer простой текстовый рендер договора.
type TextRenderer struct {
	tmpl *template.Template
}

type contractView struct {
	Document
	PriceLine    string
	SignedAtText string
}

var contractTemplate = template.Must(template.New("contract").Parse(
	`ДОГОВОР ПОДРЯДА

Заявка: {{.JobTitle}}
Исполнитель: {{.CompanyName}}
Заказчик: {{.CustomerName}}

Условия (версия {{.Version.VersionNumber}}):
{{.Version.PresentationText}}

Цена: {{.PriceLine}}
Сроки: {{.Version.DurationText}}
Включено: {{.Version.IncludesText}}
Не включено: {{.Version.ExcludesText}}
Порядок оплаты: {{.Version.PaymentTerms}}

Подписано: {{.IdentityMasked}}, {{.SignedAtText}}
`))

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{tmpl: contractTemplate}
}

// Render возвращает документ и его content type.
func (r *TextRenderer) Render(ctx context.Context, doc Document) ([]byte, string, error) {
	if doc.Version == nil {
		return nil, "", fmt.Errorf("contract: версия оферты не задана")
	}

	view := contractView{
		Document:     doc,
		PriceLine:    priceLine(doc.Version),
		SignedAtText: doc.SignedAt.Format("02.01.2006 15:04"),
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, "", fmt.Errorf("contract: render %w", err)
	}
	return buf.Bytes(), "text/plain; charset=utf-8", nil
}

func priceLine(v *models.OfferVersion) string {
	if v.PriceAmount == nil {
		return "по договорённости"
	}
	return fmt.Sprintf("%.2f %s (%s)", *v.PriceAmount, v.Currency, v.PriceType)
}
