// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

import "math"

// PageContent is the decoded locale JSON of a single page. Every section is
// optional, a page kind only reads the parts it renders.
type PageContent struct {
	Title      string         `json:"title"`
	Subtitle   string         `json:"subtitle"`
	Intro      string         `json:"intro"`
	Label      string         `json:"label"`
	Message    string         `json:"message"`
	Breadcrumb *Breadcrumb    `json:"breadcrumb,omitempty"`
	Roles      []RoleOption   `json:"roles,omitempty"`
	Blocks     []Block        `json:"blocks,omitempty"`
	Cards      []Card         `json:"cards,omitempty"`
	Apps       []App          `json:"apps,omitempty"`
	Details    []Detail       `json:"details,omitempty"`
	Issue      *IssueCopy     `json:"issue,omitempty"`
	Verify     *VerifyCopy    `json:"verify,omitempty"`
	Checklist  *ChecklistCopy `json:"checklist,omitempty"`
	Shop       *ShopCopy      `json:"shop,omitempty"`
	Buttons    Buttons        `json:"buttons"`
}

type Breadcrumb struct {
	Prefix    string `json:"prefix"`
	Area      string `json:"area"`
	Separator string `json:"separator"`
	Current   string `json:"current"`
}

type RoleOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Video       string `json:"video"`
}

type Block struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Instructions []string `json:"instructions"`
	Video        string   `json:"video"`
	Poster       string   `json:"poster"`
	Image        string   `json:"image"`
}

type Card struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Href        string `json:"href"`
	Image       string `json:"image"`
	Video       string `json:"video"`
}

// App is a wallet application the visitor is asked to install. Stores maps a
// store id (appstore, play) to the download link encoded in its QR code.
type App struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Logo   string            `json:"logo"`
	Stores map[string]string `json:"stores"`
}

type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type IssueCopy struct {
	Title         string   `json:"title"`
	Instructions  []string `json:"instructions"`
	Generating    string   `json:"generating"`
	Preparing     string   `json:"preparing"`
	ErrorPrefix   string   `json:"error_prefix"`
	QRHeaderImage string   `json:"qr_header_image"`
}

type VerifyCopy struct {
	Title           string    `json:"title"`
	CredentialTitle string    `json:"credential_title"`
	StartTitle      string    `json:"start_title"`
	StartDesc       string    `json:"start_desc"`
	Start           string    `json:"start"`
	Loading         string    `json:"loading"`
	HowToUseTitle   string    `json:"how_to_use_title"`
	Steps           []string  `json:"steps"`
	Waiting         string    `json:"waiting"`
	Verifying       string    `json:"verifying"`
	VerifySteps     []string  `json:"verify_steps"`
	Completed       string    `json:"completed"`
	Redirecting     string    `json:"redirecting"`
	Error           ErrorCopy `json:"error"`
}

type ErrorCopy struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Retry   string `json:"retry"`
}

type ChecklistCopy struct {
	Title     string   `json:"title"`
	Steps     []string `json:"steps"`
	Completed string   `json:"completed"`
	CTA       string   `json:"cta"`
}

// ShopCopy is the storefront of a verify page on which a verified credential
// unlocks a discount.
type ShopCopy struct {
	Heading     string           `json:"heading"`
	Shipping    string           `json:"shipping"`
	Reminder    string           `json:"reminder"`
	Product     Product          `json:"product"`
	Subtotal    string           `json:"subtotal"`
	Discount    string           `json:"discount"`
	Delivery    string           `json:"delivery"`
	Total       string           `json:"total"`
	VATIncluded string           `json:"vat_included"`
	Buy         string           `json:"buy"`
	Discounts   string           `json:"discounts"`
	Options     []DiscountOption `json:"options"`
	Applied     string           `json:"applied"`
	Apply       string           `json:"apply"`
}

type Product struct {
	Brand  string  `json:"brand"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Color  string  `json:"color"`
	Size   string  `json:"size"`
	Image  string  `json:"image"`
	Seller string  `json:"seller"`
}

// DiscountOption is an entry of the discount menu. Only available options
// start a verification.
type DiscountOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Available   bool   `json:"available"`
}

type Totals struct {
	Subtotal float64
	Discount float64
	Total    float64
}

// Totals prices qty units of the product with percent off. Amounts are
// rounded to cents.
func (s *ShopCopy) Totals(qty, percent int) Totals {
	cents := func(v float64) float64 { return math.Round(v*100) / 100 }
	subtotal := cents(s.Product.Price * float64(qty))
	discount := cents(subtotal * float64(percent) / 100)
	return Totals{Subtotal: subtotal, Discount: discount, Total: cents(subtotal - discount)}
}

// MissingKey is a content key present in one locale of a page but absent in
// another.
type MissingKey struct {
	Locale string `json:"locale"`
	Key    string `json:"key"`
}

type Buttons struct {
	Back   string `json:"back"`
	Next   string `json:"next"`
	Home   string `json:"home"`
	Finish string `json:"finish"`
}

// Role returns the role option with the given id.
func (p *PageContent) Role(id string) (RoleOption, bool) {
	for _, r := range p.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return RoleOption{}, false
}

// VerifyStepCount is the number of checklist entries animated after a
// successful verification.
func (p *PageContent) VerifyStepCount() int {
	if p.Verify == nil {
		return 0
	}
	return len(p.Verify.VerifySteps)
}
