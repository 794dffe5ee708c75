package enums

import "fmt"

// ProducerLegalType decides the base commission a producer pays.
type ProducerLegalType string

const (
	LegalTypeSelfEmployed           ProducerLegalType = "self_employed"
	LegalTypeIndividualEntrepreneur ProducerLegalType = "individual_entrepreneur"
)

func (t ProducerLegalType) IsValid() bool {
	return t == LegalTypeSelfEmployed || t == LegalTypeIndividualEntrepreneur
}

func ParseProducerLegalType(value string) (ProducerLegalType, error) {
	t := ProducerLegalType(value)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid producer legal type %q", value)
	}
	return t, nil
}
