package domain

// reversedOrderType mapea cada tipo soportado a su opuesto.
var reversedOrderType = map[OrderType]OrderType{
	OrderTypeBuy:       OrderTypeSell,
	OrderTypeSell:      OrderTypeBuy,
	OrderTypeBuyLimit:  OrderTypeSellLimit,
	OrderTypeSellLimit: OrderTypeBuyLimit,
	OrderTypeBuyStop:   OrderTypeSellStop,
	OrderTypeSellStop:  OrderTypeBuyStop,
}

// ReverseOrder invierte el lado de la orden y refleja SL/TP alrededor del
// precio ancla usando sl_points/tp_points.
//
// Con price == 0 el ancla se deriva primero del SL (o del TP) y su offset
// según la geometría del lado original. El campo price no se modifica.
func ReverseOrder(o *Order) error {
	reversed, ok := reversedOrderType[o.OrderType]
	if !ok {
		return NewError(ErrUnsupportedTransform, "reverse is not supported for order type").
			WithDetail("order_type", o.OrderType.String())
	}
	if o.SL != nil && o.SLPoints == nil {
		return NewError(ErrUnsupportedTransform, "sl is set without sl_points")
	}
	if o.TP != nil && o.TPPoints == nil {
		return NewError(ErrUnsupportedTransform, "tp is set without tp_points")
	}

	wasBuy := o.OrderType.IsBuySide()
	anchor := o.Price
	if anchor == 0 {
		anchor = deriveAnchor(o, wasBuy)
	}

	// Lado nuevo: BUY → SL debajo y TP arriba; SELL → al revés.
	nowBuy := !wasBuy
	if o.SL != nil {
		offset := float64(*o.SLPoints)
		if nowBuy {
			o.SL = Ptr(anchor - offset)
		} else {
			o.SL = Ptr(anchor + offset)
		}
	}
	if o.TP != nil {
		offset := float64(*o.TPPoints)
		if nowBuy {
			o.TP = Ptr(anchor + offset)
		} else {
			o.TP = Ptr(anchor - offset)
		}
	}

	o.OrderType = reversed
	return nil
}

func deriveAnchor(o *Order, buy bool) float64 {
	switch {
	case o.SL != nil:
		if buy {
			return *o.SL + float64(*o.SLPoints)
		}
		return *o.SL - float64(*o.SLPoints)
	case o.TP != nil:
		if buy {
			return *o.TP - float64(*o.TPPoints)
		}
		return *o.TP + float64(*o.TPPoints)
	}
	return 0
}
