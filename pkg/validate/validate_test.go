package validate_test

import (
	"testing"

	"github.com/driftmarket/driftmarket/pkg/validate"
)

type listingInput struct {
	Slug         string   `json:"slug"          validate:"required,max=255"`
	Title        string   `json:"title"         validate:"required"`
	CheckoutLink string   `json:"checkout_link" validate:"required,url"`
	PayeeEmail   string   `json:"payee_email"   validate:"omitempty,email"`
	Rating       float64  `json:"rating"        validate:"gte=0,lte=5"`
	Collections  []string `json:"collections"   validate:"required,min=1"`
}

func TestValidInput(t *testing.T) {
	errs := validate.Struct(listingInput{
		Slug:         "walnut-desk",
		Title:        "Walnut writing desk",
		CheckoutLink: "https://pay.example.com/walnut-desk",
		PayeeEmail:   "", // optional
		Rating:       4.5,
		Collections:  []string{"furniture"},
	})
	if validate.HasErrors(errs) {
		t.Errorf("expected no errors, got: %v", errs)
	}
}

func TestRequiredFails(t *testing.T) {
	errs := validate.Struct(listingInput{})
	if !validate.HasErrors(errs) {
		t.Fatal("expected required errors")
	}
	for _, field := range []string{"slug", "title", "checkout_link", "collections"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("expected %s to be required", field)
		}
	}
}

func TestFieldNamesUseJSONTags(t *testing.T) {
	errs := validate.Struct(listingInput{
		Slug:         "x",
		Title:        "x",
		CheckoutLink: "not a url",
		Collections:  []string{"a"},
	})
	if _, ok := errs["checkout_link"]; !ok {
		t.Errorf("expected error keyed by json tag, got: %v", errs)
	}
}

func TestBoundsChecked(t *testing.T) {
	errs := validate.Struct(listingInput{
		Slug:         "x",
		Title:        "x",
		CheckoutLink: "https://pay.example.com/x",
		Rating:       7,
		Collections:  []string{"a"},
	})
	if _, ok := errs["rating"]; !ok {
		t.Errorf("expected rating bound error, got: %v", errs)
	}
}
