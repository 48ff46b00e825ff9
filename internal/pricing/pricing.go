// Package pricing считает итоги корзины и заказа в центах.
// Все вычисления целочисленные; в десятичный вид суммы переводятся только на границе JSON.
package pricing

const (
	// FreeShippingThresholdMinor: подытог, начиная с которого (строго больше) доставка бесплатна.
	FreeShippingThresholdMinor int64 = 10000
	// ShippingFlatMinor: стоимость доставки ниже порога.
	ShippingFlatMinor int64 = 999
	// TaxRatePercent: ставка налога с подытога.
	TaxRatePercent int64 = 8
)

// Line: цена за единицу и количество одной позиции.
type Line struct {
	UnitPriceMinor int64
	Quantity       int32
}

// Subtotal возвращает цену позиции.
func (l Line) Subtotal() int64 {
	return l.UnitPriceMinor * int64(l.Quantity)
}

// Summary: результат расчёта.
type Summary struct {
	SubtotalMinor              int64
	ShippingMinor              int64
	TaxMinor                   int64
	TotalMinor                 int64
	ItemCount                  int
	FreeShippingThresholdMinor int64
	FreeShippingRemainingMinor int64
}

// Calculate считает подытог, доставку, налог и итог. Пустой список даёт нулевой подытог
// с платной доставкой; вызывающий код решает, допустима ли пустая корзина.
func Calculate(lines []Line) Summary {
	var (
		subtotal int64
		count    int
	)
	for _, line := range lines {
		subtotal += line.Subtotal()
		count += int(line.Quantity)
	}

	shipping := Shipping(subtotal)
	tax := Tax(subtotal)

	return Summary{
		SubtotalMinor:              subtotal,
		ShippingMinor:              shipping,
		TaxMinor:                   tax,
		TotalMinor:                 subtotal + shipping + tax,
		ItemCount:                  count,
		FreeShippingThresholdMinor: FreeShippingThresholdMinor,
		FreeShippingRemainingMinor: FreeShippingRemaining(subtotal),
	}
}

// Shipping возвращает 0, если подытог строго больше порога, иначе фиксированную ставку.
func Shipping(subtotalMinor int64) int64 {
	if subtotalMinor > FreeShippingThresholdMinor {
		return 0
	}
	return ShippingFlatMinor
}

// Tax округляет subtotal*8% до цента по правилу half-up.
func Tax(subtotalMinor int64) int64 {
	if subtotalMinor <= 0 {
		return 0
	}
	return (subtotalMinor*TaxRatePercent + 50) / 100
}

// FreeShippingRemaining сколько ещё нужно добавить до порога.
func FreeShippingRemaining(subtotalMinor int64) int64 {
	if remaining := FreeShippingThresholdMinor - subtotalMinor; remaining > 0 {
		return remaining
	}
	return 0
}
