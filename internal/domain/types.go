package domain

import "time"

// ABGroup is the experiment arm the scan service assigned to a result.
// Values outside the two known constants are possible and must be tolerated.
type ABGroup string

const (
	GroupControl   ABGroup = "CONTROL"
	GroupTreatment ABGroup = "TREATMENT"
)

type ScanRequest struct {
	Base64EncodedImage string `json:"base64EncodedImage" validate:"required,notblank"`
	OriginLanguageName string `json:"originLanguageName,omitempty"`
	UserLanguageName   string `json:"userLanguageName" validate:"required,notblank"`
	OriginCurrencyName string `json:"originCurrencyName,omitempty"`
	UserCurrencyName   string `json:"userCurrencyName" validate:"required,notblank"`
}

type ScanResult struct {
	ScanID         string
	ABGroup        ABGroup
	Items          []MenuItem
	ProcessingTime time.Duration
}

type MenuItem struct {
	ID              string
	OriginalName    string
	TranslatedName  string
	Description     string
	ImageURL        string
	Price           PriceInfo
	MatchConfidence *float64
}

type PriceInfo struct {
	OriginalAmount     float64
	OriginalCurrency   string
	OriginalFormatted  string
	ConvertedAmount    float64
	ConvertedCurrency  string
	ConvertedFormatted string
}

// HasConversion reports whether the converted side of the price pair is usable.
func (p PriceInfo) HasConversion() bool {
	return p.ConvertedFormatted != ""
}

type SurveySubmission struct {
	ScanID        string `json:"scanId"`
	HasConfidence bool   `json:"hasConfidence"`
}

type Language struct {
	Name string
}

type Currency struct {
	Name string
	Code string
}
