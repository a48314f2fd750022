// Package checkout считает строки заказа и бонусы по содержимому корзины.
package checkout

import "github.com/linemk/shop-bot/internal/domain/models"

const (
	// FirstUsageBonus — сколько единиц промо-товара дарится при первом заказе
	FirstUsageBonus = 2
	// BulkThreshold — каждые BulkThreshold оплаченных единиц промо-товара дают одну бесплатную
	BulkThreshold = 5
)

// ComputeCheckout превращает корзину в строки заказа.
//
// Для каждой строки корзины (в порядке корзины) создаётся оплачиваемая строка по текущей цене.
// Если товар промо, сразу за ней идёт бесплатная строка: при первом заказе FirstUsageBonus
// единиц, иначе quantity/BulkThreshold единиц (если это не ноль). Правила взаимоисключающие.
// Строки с удалённым товаром пропускаются. Функция не имеет побочных эффектов;
// третье значение всегда false — после оформления заказа признак первого заказа снимается.
func ComputeCheckout(cart []models.CartLine, isFirstUsage bool) ([]models.OrderLine, int64, bool) {
	lines := make([]models.OrderLine, 0, len(cart))
	var total int64

	for _, item := range cart {
		if !item.Available || item.Quantity <= 0 {
			continue
		}
		productID := item.ProductID

		paid := models.OrderLine{
			ProductID: &productID,
			NameRU:    item.NameRU,
			NameUZ:    item.NameUZ,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		lines = append(lines, paid)
		total += paid.Subtotal()

		if !item.IsPromo {
			continue
		}
		free := bonusQuantity(item.Quantity, isFirstUsage)
		if free == 0 {
			continue
		}
		lines = append(lines, models.OrderLine{
			ProductID: &productID,
			NameRU:    item.NameRU,
			NameUZ:    item.NameUZ,
			Quantity:  free,
			Price:     0,
			IsBonus:   true,
		})
	}

	return lines, total, false
}

func bonusQuantity(quantity int, isFirstUsage bool) int {
	if isFirstUsage {
		return FirstUsageBonus
	}
	return quantity / BulkThreshold
}

// Bonus возвращает только бонусные строки — для предпросмотра в корзине.
// Бесплатный по цене товар бонусом не считается.
func Bonus(lines []models.OrderLine) []models.OrderLine {
	var bonus []models.OrderLine
	for _, l := range lines {
		if l.IsBonus {
			bonus = append(bonus, l)
		}
	}
	return bonus
}
