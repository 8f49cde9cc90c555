// Package combo раскрывает комбо корзины в плоские позиции заказа и собирает
// комбо из выбора пользователя по правилам каталога.
package combo

import "github.com/vladislavdragonenkov/storefront/internal/domain"

// Expansion — результат раскрытия корзины.
type Expansion struct {
	Items []domain.OrderItem
	// EmptyCombos — id строк-комбо без состава. Их цена попадает в totalAmount,
	// но в разбивке заказа они отсутствуют.
	EmptyCombos []string
}

// Expand превращает позиции корзины в позиции заказа, сохраняя порядок.
// Комбо даёт по позиции на каждый элемент состава, обычная строка ровно одну.
// Функция чистая: повторный вызов на тех же данных даёт тот же результат.
func Expand(items []domain.LineItem) Expansion {
	out := Expansion{Items: make([]domain.OrderItem, 0, len(items))}

	for _, item := range items {
		if item.IsCombo {
			if len(item.ComboDetails) == 0 {
				out.EmptyCombos = append(out.EmptyCombos, item.ID)
				continue
			}
			for _, detail := range item.ComboDetails {
				out.Items = append(out.Items, domain.OrderItem{
					ProductID: detail.ProductID,
					Name:      detail.Name,
					Quantity:  detail.Quantity,
					SKU:       detail.SKU,
				})
			}
			continue
		}

		price := item.PriceMinor
		out.Items = append(out.Items, domain.OrderItem{
			ProductID: item.ID,
			Name:      item.Name,
			UnitPrice: &price,
			Quantity:  item.Quantity,
			SKU:       item.SKU,
		})
	}

	return out
}
