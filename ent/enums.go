package ent

type ComponentType string

const (
	ComponentCPU         ComponentType = "cpu"
	ComponentGPU         ComponentType = "gpu"
	ComponentRAM         ComponentType = "ram"
	ComponentMotherboard ComponentType = "motherboard"
	ComponentCase        ComponentType = "case"
	ComponentPSU         ComponentType = "psu"
	ComponentStorage     ComponentType = "storage"
	ComponentOther       ComponentType = "other"
)

var componentLabels = map[ComponentType]string{
	ComponentCPU:         "Процессор",
	ComponentGPU:         "Видеокарта",
	ComponentRAM:         "Оперативная память",
	ComponentMotherboard: "Материнская плата",
	ComponentCase:        "Корпус",
	ComponentPSU:         "Блок питания",
	ComponentStorage:     "Накопитель",
	ComponentOther:       "Другое",
}

// Label returns the display name, or the raw value for unknown types.
func (t ComponentType) Label() string {
	if l, ok := componentLabels[t]; ok {
		return l
	}
	return string(t)
}

func (t ComponentType) Valid() bool {
	_, ok := componentLabels[t]
	return ok
}

type Delivery string

const (
	DeliveryStandard Delivery = "standard"
	DeliveryExpress  Delivery = "express"
	DeliveryPickup   Delivery = "pickup"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCancelled OrderStatus = "Cancelled"
)
