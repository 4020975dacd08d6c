package reviews

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kalambet/reviewlens/internal/storage"
)

func rowsFor(asin string, n int, p Product) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = Row{
			Review:  Review{ParentASIN: asin, Text: fmt.Sprintf("%s-%d", asin, i), Rating: 5},
			Product: p,
		}
	}
	return rows
}

func TestNewStore_ProductFromFirstRow(t *testing.T) {
	rows := []Row{
		{Review: Review{ParentASIN: "A", Text: "one"}, Product: Product{Title: "First Title", RatingCount: 10}},
		{Review: Review{ParentASIN: "A", Text: "two"}, Product: Product{Title: "Other Title", RatingCount: 99}},
	}
	s := NewStore(rows, MenuOptions{})

	p, ok := s.Product("A")
	if !ok {
		t.Fatal("product A not found")
	}
	if p.Title != "First Title" || p.RatingCount != 10 || p.ASIN != "A" {
		t.Errorf("Product = %+v, want first row's metadata", p)
	}
	if got := s.Reviews("A"); len(got) != 2 || got[0].Text != "one" {
		t.Errorf("Reviews = %+v", got)
	}
	if s.ReviewCount() != 2 || s.ProductCount() != 1 {
		t.Errorf("counts = %d/%d", s.ReviewCount(), s.ProductCount())
	}
}

func TestNewStore_UnknownASIN(t *testing.T) {
	s := NewStore(nil, MenuOptions{})
	if got := s.Reviews("nope"); len(got) != 0 {
		t.Errorf("Reviews = %v, want empty", got)
	}
	if _, ok := s.Product("nope"); ok {
		t.Error("Product found for unknown ASIN")
	}
}

func TestMenu_FiltersRanksAndCaps(t *testing.T) {
	var rows []Row
	rows = append(rows, rowsFor("FEW", 4, Product{Title: "Few", RatingCount: 10000})...)
	rows = append(rows, rowsFor("MID", 5, Product{Title: "Mid", RatingCount: 50})...)
	rows = append(rows, rowsFor("TOP", 6, Product{Title: "Top", RatingCount: 900, ImageURL: "https://img/top.jpg"})...)
	rows = append(rows, rowsFor("TIE", 5, Product{Title: "Tie", RatingCount: 50})...)

	s := NewStore(rows, MenuOptions{Size: 2})
	menu := s.Menu()

	if len(menu) != 2 {
		t.Fatalf("menu len = %d, want 2", len(menu))
	}
	if menu[0].ASIN != "TOP" || menu[0].ImageURL != "https://img/top.jpg" {
		t.Errorf("menu[0] = %+v, want TOP with image", menu[0])
	}
	// MID and TIE share a rating count; MID appeared first.
	if menu[1].ASIN != "MID" {
		t.Errorf("menu[1] = %+v, want MID", menu[1])
	}
}

func TestMenu_ReturnsCopy(t *testing.T) {
	s := NewStore(rowsFor("A", 5, Product{Title: "A"}), MenuOptions{})
	m := s.Menu()
	m[0].Title = "changed"
	if s.Menu()[0].Title != "A" {
		t.Error("Menu exposes internal slice")
	}
}

func TestGeneration_Increases(t *testing.T) {
	a := NewStore(nil, MenuOptions{})
	b := NewStore(nil, MenuOptions{})
	if b.Generation() <= a.Generation() {
		t.Errorf("generations %d then %d, want increasing", a.Generation(), b.Generation())
	}
}

type fakeSource struct {
	rows []storage.ReviewRow
	err  error
}

func (f fakeSource) LoadReviewRows(context.Context) ([]storage.ReviewRow, error) {
	return f.rows, f.err
}

func TestLoad_MapsRows(t *testing.T) {
	src := fakeSource{rows: []storage.ReviewRow{{
		ParentASIN: "B1", Text: "nice", Rating: 4, HelpfulVote: 2, Timestamp: 77,
		ProductTitle: "Serum", ImageURL: "u", AverageRating: 4.5, RatingNumber: 12,
	}}}

	s, err := Load(context.Background(), src, MenuOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	r := s.Reviews("B1")
	if len(r) != 1 || r[0].Rating != 4 || r[0].HelpfulVote != 2 || r[0].Timestamp != 77 {
		t.Errorf("Reviews = %+v", r)
	}
	p, _ := s.Product("B1")
	if p.Title != "Serum" || p.AverageRating != 4.5 || p.RatingCount != 12 || p.ImageURL != "u" {
		t.Errorf("Product = %+v", p)
	}
}

func TestLoad_PropagatesError(t *testing.T) {
	boom := errors.New("disk gone")
	_, err := Load(context.Background(), fakeSource{err: boom}, MenuOptions{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
}
