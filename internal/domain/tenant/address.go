package tenant

import "strings"

const defaultCountry = "BR"

// Address é o endereço do prestador, gravado como jsonb
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	Country    string `json:"country"`
}

// NewAddress monta o endereço já normalizado: UF em maiúsculas, CEP só com dígitos
// e país BR quando não informado
func NewAddress(street, number, complement, district, city, state, zipCode, country string) Address {
	country = strings.ToUpper(strings.TrimSpace(country))
	if country == "" {
		country = defaultCountry
	}
	return Address{
		Street:     strings.TrimSpace(street),
		Number:     strings.TrimSpace(number),
		Complement: strings.TrimSpace(complement),
		District:   strings.TrimSpace(district),
		City:       strings.TrimSpace(city),
		State:      strings.ToUpper(strings.TrimSpace(state)),
		ZipCode:    OnlyDigits(zipCode),
		Country:    country,
	}
}
