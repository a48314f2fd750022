package models

import "time"

// OrderStatus статус заказа
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// допустимые переходы; из delivered и cancelled выхода нет
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusDelivered},
}

// ParseOrderStatus разбирает статус из строки
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderStatusNew, OrderStatusProcessing, OrderStatusDelivered, OrderStatusCancelled:
		return st, true
	}
	return "", false
}

// CanTransitionTo сообщает, разрешён ли переход в next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Order представляет оформленный заказ. Строки заказа неизменяемы, меняется только статус.
type Order struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	TotalAmount int64       `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	Address     string      `json:"address"`
	Lines       []OrderLine `json:"items"`
}

// OrderLine строка заказа; цена зафиксирована на момент оформления (0 для бонусных строк)
type OrderLine struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"order_id"`
	ProductID *int64 `json:"product_id"` // nil, если товар удалён из каталога
	NameRU    string `json:"name_ru"`
	NameUZ    string `json:"name_uz"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	// IsBonus отмечает бесплатную строку, посчитанную при оформлении; в БД не хранится
	IsBonus bool `json:"is_bonus,omitempty"`
}

// Subtotal стоимость строки
func (l OrderLine) Subtotal() int64 {
	return int64(l.Quantity) * l.Price
}

// Name название товара на момент заказа
func (l OrderLine) Name(lang Language) string {
	if lang == LanguageUZ && l.NameUZ != "" {
		return l.NameUZ
	}
	return l.NameRU
}
