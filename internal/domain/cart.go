package domain

import "time"

// CartLine: позиция корзины. ID стабилен и используется в PUT/DELETE /cart/:id.
type CartLine struct {
	ID        string
	ProductID string
	Quantity  int32
	AddedAt   time.Time
}

// Cart: изменяемый документ корзины, по одному на пользователя.
// Version используется для optimistic locking: каждая запись увеличивает её на 1.
type Cart struct {
	UserID    string
	Lines     []CartLine
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCart создаёт пустую корзину пользователя.
func NewCart(userID string, now time.Time) Cart {
	return Cart{
		UserID:    userID,
		Lines:     []CartLine{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// LineIndexByProduct возвращает индекс позиции с товаром или -1.
func (c *Cart) LineIndexByProduct(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// LineIndex возвращает индекс позиции по её id или -1.
func (c *Cart) LineIndex(lineID string) int {
	for i, line := range c.Lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

// RemoveLine удаляет позицию по индексу, сохраняя порядок остальных.
func (c *Cart) RemoveLine(idx int) {
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
}

// IsEmpty сообщает, что в корзине нет позиций.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Clone возвращает копию корзины с отдельным срезом позиций.
func (c Cart) Clone() Cart {
	dst := c
	dst.Lines = append([]CartLine{}, c.Lines...)
	return dst
}

// ClampQuantity ограничивает количество диапазоном [1, max].
func ClampQuantity(qty, max int32) int32 {
	if qty > max {
		return max
	}
	if qty < 1 {
		return 1
	}
	return qty
}

// AddQuantity увеличивает current на delta и ограничивает результат max.
// Сумма считается в int64, поэтому переполнение int32 невозможно.
func AddQuantity(current, delta, max int32) int32 {
	sum := int64(current) + int64(delta)
	if sum > int64(max) {
		return max
	}
	if sum < 1 {
		return 1
	}
	return int32(sum)
}
