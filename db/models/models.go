package models

var registeredModels []interface{}

func registerModel(model interface{}) {
	registeredModels = append(registeredModels, model)
}

func GetModels() []interface{} {
	return registeredModels
}
