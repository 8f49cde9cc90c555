package combo

import (
	"fmt"
	"slices"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Pick описывает выбранный пользователем товар внутри комбо.
type Pick struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Builder проверяет выбор по selectionRules и собирает CartProduct для корзины.
type Builder struct {
	products map[string]domain.Product
}

// NewBuilder индексирует товары каталога.
func NewBuilder(products []domain.Product) *Builder {
	index := make(map[string]domain.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return &Builder{products: index}
}

// Build проверяет выбор и возвращает CartProduct с заполненным составом.
// Каждое правило должно получить ровно UnitsRequired единиц своей категории,
// а все товары должны относиться к категориям комбо. Повторные выборы одного
// товара складываются, порядок состава соответствует первому появлению.
func (b *Builder) Build(combo domain.Combo, picks []Pick) (domain.CartProduct, error) {
	if combo.ID == "" {
		return domain.CartProduct{}, domain.ErrComboNotFound
	}
	if len(picks) == 0 {
		return domain.CartProduct{}, fmt.Errorf("%w: nothing selected", domain.ErrComboSelectionInvalid)
	}

	details := make([]domain.ComboDetail, 0, len(picks))
	perCategory := make(map[string]int, len(combo.SelectionRules))

	for _, pick := range picks {
		if pick.Quantity <= 0 {
			return domain.CartProduct{}, fmt.Errorf("%w: product %q has quantity %d", domain.ErrComboSelectionInvalid, pick.ProductID, pick.Quantity)
		}
		p, ok := b.products[pick.ProductID]
		if !ok {
			return domain.CartProduct{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, pick.ProductID)
		}
		if !slices.Contains(combo.CategoryIDs, p.Category) {
			return domain.CartProduct{}, fmt.Errorf("%w: product %q is not part of combo %q", domain.ErrComboSelectionInvalid, p.ID, combo.ID)
		}
		perCategory[p.Category] += pick.Quantity

		if idx := slices.IndexFunc(details, func(d domain.ComboDetail) bool { return d.ProductID == p.ID }); idx >= 0 {
			details[idx].Quantity += pick.Quantity
			continue
		}
		details = append(details, domain.ComboDetail{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  pick.Quantity,
			SKU:       p.SKU,
		})
	}

	for _, rule := range combo.SelectionRules {
		if got := perCategory[rule.CategoryID]; got != rule.UnitsRequired {
			return domain.CartProduct{}, fmt.Errorf("%w: category %q needs %d units, got %d",
				domain.ErrComboSelectionInvalid, rule.CategoryID, rule.UnitsRequired, got)
		}
		delete(perCategory, rule.CategoryID)
	}
	for category := range perCategory {
		return domain.CartProduct{}, fmt.Errorf("%w: category %q has no selection rule", domain.ErrComboSelectionInvalid, category)
	}

	return domain.CartProduct{
		ID:           combo.ID,
		Name:         combo.Name,
		PriceMinor:   combo.PriceMinor,
		Image:        combo.Image,
		Category:     "combos",
		ComboID:      combo.ID,
		ComboDetails: details,
	}, nil
}
