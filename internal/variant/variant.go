// Package variant maps the server-assigned experiment group of a scan result
// to a rendering policy and builds the view model for that policy.
package variant

import (
	"log/slog"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/domain"
)

// Policy is the closed set of rendering policies.
type Policy int

const (
	TextOnly Policy = iota
	Visual
)

func (p Policy) String() string {
	if p == Visual {
		return "visual"
	}
	return "text_only"
}

// PlaceholderImage is shown when a visual item has no image or its image
// fails to load.
const PlaceholderImage = "/static/placeholder.svg"

// Dispatch resolves the policy for group. An unrecognised group falls back
// to TextOnly and returns a KindUnknownGroup error for the caller to log.
func Dispatch(group domain.ABGroup) (Policy, error) {
	switch group {
	case domain.GroupControl:
		return TextOnly, nil
	case domain.GroupTreatment:
		return Visual, nil
	default:
		return TextOnly, apperr.Newf(apperr.KindUnknownGroup, "unknown ab group %q", group)
	}
}

// View is what a renderer needs for one result.
type View struct {
	ScanID         string
	Policy         Policy
	Group          domain.ABGroup
	Items          []ItemView
	Empty          bool
	ProcessingTime float64
}

// ItemView is one menu entry. ImageURL and Description are only ever set
// under the Visual policy.
type ItemView struct {
	OriginalName   string
	TranslatedName string
	Price          string
	ImageURL       string
	Description    string
}

// Render dispatches result and builds its view. Unknown groups are logged
// and rendered text-only.
func Render(result *domain.ScanResult, logger *slog.Logger) View {
	policy, err := Dispatch(result.ABGroup)
	if err != nil {
		logger.Warn("falling back to text-only view", "scan_id", result.ScanID, "ab_group", string(result.ABGroup), "error", err)
	}
	return Build(result, policy)
}

// Build produces the view for result under policy.
func Build(result *domain.ScanResult, policy Policy) View {
	v := View{
		ScanID:         result.ScanID,
		Policy:         policy,
		Group:          result.ABGroup,
		Empty:          len(result.Items) == 0,
		ProcessingTime: result.ProcessingTime.Seconds(),
	}
	if v.Empty {
		return v
	}

	v.Items = make([]ItemView, 0, len(result.Items))
	for _, it := range result.Items {
		iv := ItemView{
			OriginalName:   it.OriginalName,
			TranslatedName: it.TranslatedName,
			Price:          PriceDisplay(it.Price),
		}
		if policy == Visual {
			iv.ImageURL = it.ImageURL
			if iv.ImageURL == "" {
				iv.ImageURL = PlaceholderImage
			}
			iv.Description = it.Description
		}
		v.Items = append(v.Items, iv)
	}
	return v
}

// PriceDisplay renders "original (converted)", or just the original when the
// conversion is missing.
func PriceDisplay(p domain.PriceInfo) string {
	if !p.HasConversion() {
		return p.OriginalFormatted
	}
	return p.OriginalFormatted + " (" + p.ConvertedFormatted + ")"
}
