package inventory

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-bakery-orders/internal/apperr"
	"github.com/ariefcatur/go-bakery-orders/internal/auth"
	"github.com/ariefcatur/go-bakery-orders/internal/catalog"
)

type fakeLedger struct {
	stock map[string]int
	calls [][]Line
}

func (f *fakeLedger) DecrementStock(_ context.Context, lines []Line) ([]apperr.Shortage, error) {
	f.calls = append(f.calls, lines)
	var out []apperr.Shortage
	for _, l := range lines {
		if f.stock[l.ProductID] < l.Quantity {
			out = append(out, apperr.Shortage{ProductID: l.ProductID, Requested: l.Quantity, Available: f.stock[l.ProductID]})
		}
	}
	if len(out) > 0 {
		return out, nil
	}
	for _, l := range lines {
		f.stock[l.ProductID] -= l.Quantity
	}
	return nil, nil
}

func (f *fakeLedger) SetStock(_ context.Context, id string, n int) (catalog.Product, error) {
	f.stock[id] = n
	return catalog.Product{ID: id, Stock: n}, nil
}

func TestReserveMergesDuplicates(t *testing.T) {
	l := &fakeLedger{stock: map[string]int{"cake": 5}}
	err := Reserve(context.Background(), l, []Line{{"cake", 2}, {"cake", 3}})
	if err != nil {
		t.Fatal(err)
	}
	if len(l.calls) != 1 || len(l.calls[0]) != 1 || l.calls[0][0].Quantity != 5 {
		t.Fatalf("ledger calls = %+v", l.calls)
	}
	if l.stock["cake"] != 0 {
		t.Fatalf("stock = %d", l.stock["cake"])
	}
}

func TestReserveShortage(t *testing.T) {
	l := &fakeLedger{stock: map[string]int{"cake": 5, "bread": 1}}
	err := Reserve(context.Background(), l, []Line{{"cake", 2}, {"bread", 2}})
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("err = %v", err)
	}
	if l.stock["cake"] != 5 {
		t.Fatalf("cake stock changed to %d", l.stock["cake"])
	}
}

func TestReserveValidates(t *testing.T) {
	for _, lines := range [][]Line{{{"", 1}}, {{"cake", 0}}, {{"cake", -2}}} {
		l := &fakeLedger{stock: map[string]int{"cake": 5}}
		if err := Reserve(context.Background(), l, lines); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("%+v: err = %v", lines, err)
		}
		if len(l.calls) != 0 {
			t.Fatal("ledger called for invalid lines")
		}
	}
	if err := Reserve(context.Background(), &fakeLedger{}, nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

type fakeCatalog map[string]catalog.Product

func (f fakeCatalog) Product(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product", id)
	}
	return p, nil
}

func (f fakeCatalog) ProductsByIDs(context.Context, []string) (map[string]catalog.Product, error) {
	return f, nil
}

func (f fakeCatalog) Vendor(_ context.Context, id string) (catalog.Vendor, error) {
	return catalog.Vendor{ID: id}, nil
}

func TestSetStock(t *testing.T) {
	l := &fakeLedger{stock: map[string]int{"cake": 5}}
	svc := &Service{Ledger: l, Catalog: fakeCatalog{"cake": {ID: "cake", VendorID: "v1"}}}
	ctx := context.Background()

	tests := []struct {
		name  string
		p     auth.Principal
		id    string
		stock int
		want  apperr.Kind
	}{
		{"owner", auth.Principal{ID: "v1", Role: auth.RoleBakery}, "cake", 12, ""},
		{"negative", auth.Principal{ID: "v1", Role: auth.RoleBakery}, "cake", -1, apperr.KindValidation},
		{"other bakery", auth.Principal{ID: "v2", Role: auth.RoleBakery}, "cake", 3, apperr.KindAuthorization},
		{"client", auth.Principal{ID: "c1", Role: auth.RoleClient}, "cake", 3, apperr.KindAuthorization},
		{"unknown product", auth.Principal{ID: "v1", Role: auth.RoleBakery}, "pie", 3, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SetStock(ctx, tt.p, tt.id, tt.stock)
			if tt.want == "" && err != nil {
				t.Fatal(err)
			}
			if tt.want != "" && apperr.KindOf(err) != tt.want {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
		})
	}
	if l.stock["cake"] != 12 {
		t.Fatalf("stock = %d, want 12", l.stock["cake"])
	}
}
