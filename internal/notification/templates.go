package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

var statusLabels = map[string]string{
	"pending":   "待處理",
	"paid":      "已付款",
	"completed": "已完成",
	"cancelled": "已取消",
}

var taipei = time.FixedZone("Asia/Taipei", 8*60*60)

// Templates renders the customer emails.
type Templates struct {
	storeName string
	set       *template.Template
}

// NewTemplates parses the embedded templates.
func NewTemplates(storeName string) (*Templates, error) {
	set, err := template.New("").Funcs(template.FuncMap{
		"money": formatMoney,
		"status": func(s string) string {
			if label, ok := statusLabels[s]; ok {
				return label
			}
			return s
		},
		"when": func(t time.Time) string { return t.In(taipei).Format("2006/01/02 15:04") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &Templates{storeName: storeName, set: set}, nil
}

func (t *Templates) OrderConfirmed(c OrderConfirmation) (Message, error) {
	body, err := t.render("order_confirmed.html", struct {
		Store string
		OrderConfirmation
	}{t.storeName, c})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      c.To,
		Subject: fmt.Sprintf("訂單確認 #%s - %s", shortID(c.OrderID.String()), t.storeName),
		HTML:    body,
	}, nil
}

// formatMoney drops the cents only when there are none.
func formatMoney(d decimal.Decimal) string {
	if d.IsInteger() {
		return "NT$ " + d.StringFixed(0)
	}
	return "NT$ " + d.StringFixed(2)
}

func (t *Templates) StatusChanged(c StatusChange) (Message, error) {
	body, err := t.render("status_changed.html", struct {
		Store string
		StatusChange
	}{t.storeName, c})
	if err != nil {
		return Message{}, err
	}
	label := statusLabels[c.Status]
	if label == "" {
		label = c.Status
	}
	return Message{
		To:      c.To,
		Subject: fmt.Sprintf("訂單 #%s %s - %s", shortID(c.OrderID.String()), label, t.storeName),
		HTML:    body,
	}, nil
}

func (t *Templates) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.set.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func shortID(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
