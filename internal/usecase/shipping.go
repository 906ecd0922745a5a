package usecase

const (
	ShippingMethodStandard = "standard"
	ShippingMethodExpress  = "express"

	standardShippingCost int64 = 500
	expressShippingCost  int64 = 1200
)

type ShippingMethod struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Cost          int64  `json:"cost"`
	EstimatedDays int    `json:"estimated_days"`
}

// 小計から配送方法と送料を出す。standard は freeThreshold 以上で無料。
func quoteShippingMethods(subtotal int64, freeThreshold int64) []ShippingMethod {
	standard := standardShippingCost
	if freeThreshold > 0 && subtotal >= freeThreshold {
		standard = 0
	}
	return []ShippingMethod{
		{ID: ShippingMethodStandard, Name: "Standard", Cost: standard, EstimatedDays: 5},
		{ID: ShippingMethodExpress, Name: "Express", Cost: expressShippingCost, EstimatedDays: 2},
	}
}

func findShippingMethod(methods []ShippingMethod, id string) (ShippingMethod, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return ShippingMethod{}, false
}
